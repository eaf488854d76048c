// Package parsers extracts structured site-profile fields from raw HTML.
// Every parser tolerates malformed markup and returns zero values instead
// of failing.
package parsers

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/htmltext"
)

var (
	emailRE          = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRE          = regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
	nonDigitRE       = regexp.MustCompile(`\D`)
	contactSectionRE = regexp.MustCompile(`(?i)international|admissions|contact`)
)

// ParseContact extracts the international office email and phone.
func ParseContact(raw string) crawler.Contact {
	doc, err := htmltext.Document(raw)
	if err != nil {
		return crawler.Contact{}
	}
	return crawler.Contact{
		Email: parseEmail(doc),
		Phone: parsePhone(doc),
	}
}

func parseEmail(doc *goquery.Document) string {
	var mailto string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.HasPrefix(strings.ToLower(href), "mailto:") {
			return true
		}
		addr := href[len("mailto:"):]
		if i := strings.Index(addr, "?"); i >= 0 {
			addr = addr[:i]
		}
		mailto = strings.TrimSpace(addr)
		return mailto == ""
	})
	if mailto != "" {
		return mailto
	}

	for _, text := range contactSectionTexts(doc) {
		if email := preferInternational(emailRE.FindAllString(text, -1)); email != "" {
			return email
		}
	}
	return preferInternational(emailRE.FindAllString(htmltext.Text(doc.Selection), -1))
}

func parsePhone(doc *goquery.Document) string {
	for _, text := range contactSectionTexts(doc) {
		if phone := phoneRE.FindString(text); phone != "" {
			return NormalizePhone(phone)
		}
	}
	if phone := phoneRE.FindString(htmltext.Text(doc.Selection)); phone != "" {
		return NormalizePhone(phone)
	}
	return ""
}

// contactSectionTexts returns the full text of div, section and article
// elements whose own text mentions admissions, international or contact.
func contactSectionTexts(doc *goquery.Document) []string {
	var texts []string
	doc.Find("div, section, article").Each(func(_ int, s *goquery.Selection) {
		if contactSectionRE.MatchString(htmltext.OwnText(s)) {
			texts = append(texts, htmltext.Text(s))
		}
	})
	return texts
}

func preferInternational(emails []string) string {
	if len(emails) == 0 {
		return ""
	}
	for _, e := range emails {
		if strings.Contains(strings.ToLower(e), "international") {
			return e
		}
	}
	return emails[0]
}

// NormalizePhone formats North American numbers as +1-XXX-XXX-XXXX and
// returns anything else unchanged.
func NormalizePhone(phone string) string {
	digits := nonDigitRE.ReplaceAllString(phone, "")
	if len(digits) == 10 {
		digits = "1" + digits
	}
	if len(digits) == 11 && digits[0] == '1' {
		return "+1-" + digits[1:4] + "-" + digits[4:7] + "-" + digits[7:]
	}
	return strings.TrimSpace(phone)
}

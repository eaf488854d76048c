package parsers

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/htmltext"
	"github.com/JakeFAU/campus-kg-crawler/internal/keywords"
)

const (
	descriptionLimit = 300
	majorMaxRunes    = 100
	majorLimit       = 20
)

var (
	eslDict = keywords.New([]string{
		"esl",
		"english as a second language",
		"english language",
		"ell",
		"english learner",
		"intensive english",
	})
	serviceDict = keywords.New([]string{
		"visa support",
		"housing assistance",
		"orientation",
		"tutoring",
		"counseling",
		"cultural activities",
		"career services",
		"academic advising",
	})

	eslSectionRE           = regexp.MustCompile(`(?i)esl|english.+second.+language`)
	majorSectionRE         = regexp.MustCompile(`(?i)programs|majors|degrees`)
	internationalSectionRE = regexp.MustCompile(`(?i)international.+student`)
)

// ParseESL reports whether the page mentions ESL instruction and, when an
// ESL section exists, its text cut to 300 runes.
func ParseESL(raw string) crawler.ESLInfo {
	doc, err := htmltext.Document(raw)
	if err != nil {
		return crawler.ESLInfo{}
	}
	if !eslDict.Contains(htmltext.Text(doc.Selection)) {
		return crawler.ESLInfo{}
	}
	info := crawler.ESLInfo{Available: true}
	if section := firstSection(doc, "div, section, article", eslSectionRE); section != nil {
		info.Description = crawler.Truncate(htmltext.Text(section), descriptionLimit)
	}
	return info
}

// ParseMajors lists li items under program, major or degree sections:
// each under 100 runes, deduplicated in first-seen order, at most 20.
func ParseMajors(raw string) []string {
	doc, err := htmltext.Document(raw)
	if err != nil {
		return nil
	}
	seen := map[string]bool{}
	var majors []string
	doc.Find("div, section, ul").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !majorSectionRE.MatchString(htmltext.OwnText(s)) {
			return true
		}
		s.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
			text := htmltext.Text(li)
			if text == "" || len([]rune(text)) >= majorMaxRunes || seen[text] {
				return true
			}
			seen[text] = true
			majors = append(majors, text)
			return len(majors) < majorLimit
		})
		return len(majors) < majorLimit
	})
	return majors
}

// ParseInternationalSupport inspects the first international-students
// section for the support services it offers.
func ParseInternationalSupport(raw string) crawler.SupportInfo {
	info := crawler.SupportInfo{Services: []string{}}
	doc, err := htmltext.Document(raw)
	if err != nil {
		return info
	}
	section := firstSection(doc, "div, section, article", internationalSectionRE)
	if section == nil {
		return info
	}
	text := htmltext.Text(section)
	info.Available = true
	if found := serviceDict.Found(text); found != nil {
		info.Services = found
	}
	info.Description = crawler.Truncate(text, descriptionLimit)
	return info
}

func firstSection(doc *goquery.Document, selector string, re *regexp.Regexp) *goquery.Selection {
	var match *goquery.Selection
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if re.MatchString(htmltext.OwnText(s)) {
			match = s
			return false
		}
		return true
	})
	return match
}

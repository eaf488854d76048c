package parsers

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/htmltext"
	"github.com/JakeFAU/campus-kg-crawler/internal/keywords"
)

// Facility types reported in a SiteProfile.
const (
	FacilityDormitory     = "dormitory"
	FacilityDining        = "dining"
	FacilityGym           = "gym"
	FacilityLibrary       = "library"
	FacilityLab           = "lab"
	FacilityEntertainment = "entertainment"
)

// FacilityTypes lists facility types in report order.
var FacilityTypes = []string{
	FacilityDormitory,
	FacilityDining,
	FacilityGym,
	FacilityLibrary,
	FacilityLab,
	FacilityEntertainment,
}

var facilityKeywords = map[string][]string{
	FacilityDormitory:     {"dormitory", "dorm", "housing", "residence hall"},
	FacilityDining:        {"dining", "cafeteria", "food service", "restaurant"},
	FacilityGym:           {"gym", "fitness", "recreation", "athletic", "sports center"},
	FacilityLibrary:       {"library", "learning resource"},
	FacilityLab:           {"laboratory", "lab", "computer lab"},
	FacilityEntertainment: {"theater", "cinema", "entertainment", "student center"},
}

const facilityDetailLimit = 200

var facilitySectionRE = regexp.MustCompile(`(?i)facilities|campus life|student life`)

// facilityDict maps dictionary indexes back to facility types.
var facilityDict, facilityOwners = func() (*keywords.Dictionary, []string) {
	var words, owners []string
	for _, kind := range FacilityTypes {
		for _, kw := range facilityKeywords[kind] {
			words = append(words, kw)
			owners = append(owners, kind)
		}
	}
	return keywords.New(words), owners
}()

func facilitiesIn(text string) map[string]bool {
	found := make(map[string]bool, len(FacilityTypes))
	for _, kind := range FacilityTypes {
		found[kind] = false
	}
	for _, idx := range facilityDict.Match(text) {
		if idx < len(facilityOwners) {
			found[facilityOwners[idx]] = true
		}
	}
	return found
}

// ParseFacilities reports which facility types the page mentions.
func ParseFacilities(raw string) map[string]bool {
	doc, err := htmltext.Document(raw)
	if err != nil {
		return facilitiesIn("")
	}
	return facilitiesIn(htmltext.Text(doc.Selection))
}

// ParseFacilityDetails returns, per facility type, the text of the last
// facilities or campus-life section mentioning it, cut to 200 runes plus "...".
func ParseFacilityDetails(raw string) map[string]string {
	doc, err := htmltext.Document(raw)
	if err != nil {
		return map[string]string{}
	}
	details := map[string]string{}
	doc.Find("div, section").Each(func(_ int, s *goquery.Selection) {
		if !facilitySectionRE.MatchString(htmltext.OwnText(s)) {
			return
		}
		content := htmltext.Text(s)
		if content == "" {
			return
		}
		summary := content
		if len([]rune(content)) > facilityDetailLimit {
			summary = crawler.Truncate(content, facilityDetailLimit) + "..."
		}
		for kind, present := range facilitiesIn(content) {
			if present {
				details[kind] = summary
			}
		}
	})
	return details
}

package parsers

import "github.com/JakeFAU/campus-kg-crawler/internal/crawler"

// ProfilePages holds the HTML a SiteProfile is built from. Empty fields mean
// the page was not found.
type ProfilePages struct {
	Homepage      string
	International string
	Programs      string
	CampusLife    string
}

// ParseProfile assembles a SiteProfile. Contact details come from the
// homepage unless the international page yields an email. ESL information
// prefers the international page and falls back to the programs page.
func ParseProfile(pages ProfilePages) crawler.SiteProfile {
	profile := crawler.SiteProfile{
		Facilities:           map[string]bool{},
		Majors:               []string{},
		InternationalSupport: crawler.SupportInfo{Services: []string{}},
	}
	if pages.Homepage != "" {
		profile.Contact = ParseContact(pages.Homepage)
	}

	eslSet := false
	if pages.International != "" {
		if contact := ParseContact(pages.International); contact.Email != "" {
			profile.Contact = contact
		}
		profile.InternationalSupport = ParseInternationalSupport(pages.International)
		profile.ESL = ParseESL(pages.International)
		eslSet = true
	}

	if pages.Programs != "" {
		if majors := ParseMajors(pages.Programs); len(majors) > 0 {
			profile.Majors = majors
		}
		if !eslSet {
			profile.ESL = ParseESL(pages.Programs)
		}
	}

	if pages.CampusLife != "" {
		profile.Facilities = ParseFacilities(pages.CampusLife)
		if details := ParseFacilityDetails(pages.CampusLife); len(details) > 0 {
			profile.FacilityDetails = details
		}
	}
	return profile
}

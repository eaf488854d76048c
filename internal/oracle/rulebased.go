package oracle

import (
	"context"
	"regexp"
	"strings"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
)

var (
	spaceRE    = regexp.MustCompile(`\s+`)
	programRE  = regexp.MustCompile(`(?i)([A-Z][A-Za-z& ]{2,40})\s+program`)
	locationRE = regexp.MustCompile(`(?i)(?:located in|in)\s+([A-Z][a-zA-Z]+(?:,\s*[A-Z][a-zA-Z]+){0,2})`)
	hiringRE   = regexp.MustCompile(`(?i)\bwork at\b|\bhired by\b|\bgraduates work at\b`)
	careerRE   = regexp.MustCompile(`(?i)\bcareer as\b|\bcareers as\b|\bprepares?\b`)
)

type termPattern struct {
	name string
	re   *regexp.Regexp
}

func wordPatterns(terms ...string) []termPattern {
	out := make([]termPattern, 0, len(terms))
	for _, term := range terms {
		out = append(out, termPattern{
			name: term,
			re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`),
		})
	}
	return out
}

var (
	skillTerms   = wordPatterns("Machine Learning", "Deep Learning", "Data Science", "Python", "Cloud Computing", "Algorithms")
	companyTerms = wordPatterns("Google", "Microsoft", "Amazon", "Tesla", "Meta", "Apple")
	jobTerms     = wordPatterns("Data Scientist", "AI Engineer", "Software Engineer")
)

// Rule confidences.
const (
	confidenceOffers    = 0.92
	confidenceDevelops  = 0.89
	confidenceHiresFrom = 0.88
	confidenceLocated   = 0.85
	confidenceLeadsTo   = 0.84
)

// UnknownSchool stands in for an empty context name.
const UnknownSchool = "Unknown School"

// RuleBased is a deterministic offline oracle covering the common program,
// skill, employer, location and job phrasings.
type RuleBased struct{}

var _ crawler.Oracle = RuleBased{}

// ExtractTriples implements crawler.Oracle. It never fails.
func (RuleBased) ExtractTriples(_ context.Context, text, contextName, _ string) ([]crawler.RawTriple, error) {
	return ExtractRuleBased(text, contextName), nil
}

// ExtractRuleBased applies the extraction rules to text.
func ExtractRuleBased(text, schoolName string) []crawler.RawTriple {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	src := cleanText(text)
	school := cleanText(schoolName)
	if school == "" {
		school = UnknownSchool
	}
	lowered := strings.ToLower(src)

	var triples []crawler.RawTriple
	add := func(head, relation, tail string, confidence float64) {
		triples = append(triples, crawler.RawTriple{Head: head, Relation: relation, Tail: tail, Confidence: confidence})
	}

	program := ""
	if m := programRE.FindStringSubmatch(src); m != nil {
		program = cleanText(m[1])
	}
	if program != "" {
		add(school, "OFFERS", program, confidenceOffers)
	}

	if program != "" && crawler.ContainsAnyLower(lowered, []string{"teaches", "focuses on", "emphasizes"}) {
		for _, skill := range skillTerms {
			if skill.re.MatchString(src) {
				add(program, "DEVELOPS", skill.name, confidenceDevelops)
			}
		}
	}

	if hiringRE.MatchString(src) {
		for _, company := range companyTerms {
			if company.re.MatchString(src) {
				add(company.name, "HIRES_FROM", school, confidenceHiresFrom)
			}
		}
	}

	if m := locationRE.FindStringSubmatch(src); m != nil {
		add(school, "LOCATED_IN", cleanText(m[1]), confidenceLocated)
	}

	if program != "" && careerRE.MatchString(src) {
		for _, job := range jobTerms {
			if job.re.MatchString(src) {
				add(program, "LEADS_TO", job.name, confidenceLeadsTo)
			}
		}
	}

	return dedupe(triples)
}

func cleanText(value string) string {
	cleaned := strings.TrimSpace(spaceRE.ReplaceAllString(value, " "))
	return strings.TrimRight(cleaned, ".,;: ")
}

func dedupe(triples []crawler.RawTriple) []crawler.RawTriple {
	type key struct{ head, relation, tail string }
	seen := make(map[key]struct{}, len(triples))
	out := triples[:0]
	for _, t := range triples {
		k := key{strings.ToLower(t.Head), t.Relation, strings.ToLower(t.Tail)}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

package resolver

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AliasLookup maps normalized keys to canonical entity names.
type AliasLookup interface {
	// Resolve returns the canonical name for a normalized key.
	Resolve(key string) (string, bool)
	// Keys lists every known normalized key, sorted and unique.
	Keys() []string
}

var (
	specialRE = regexp.MustCompile(`[^a-zA-Z0-9\s,&\-]`)
	spaceRE   = regexp.MustCompile(`\s+`)
)

// NormalizeKey lowercases value, drops dots, turns hyphens into spaces,
// folds accents, strips punctuation and collapses whitespace.
func NormalizeKey(value string) string {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.ReplaceAll(key, ".", "")
	key = strings.ReplaceAll(key, "-", " ")
	key = foldAccents(key)
	key = specialRE.ReplaceAllString(key, "")
	return strings.TrimSpace(spaceRE.ReplaceAllString(key, " "))
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// StaticAliases is an immutable in-memory alias table.
type StaticAliases struct {
	byKey map[string]string
	keys  []string
}

// NewStaticAliases indexes canonical names and their aliases. Later entries
// win when two canonicals share an alias key.
func NewStaticAliases(table map[string][]string) *StaticAliases {
	canonicals := make([]string, 0, len(table))
	for canonical := range table {
		canonicals = append(canonicals, canonical)
	}
	sort.Strings(canonicals)

	s := &StaticAliases{byKey: make(map[string]string)}
	for _, canonical := range canonicals {
		s.add(canonical, canonical)
		for _, alias := range table[canonical] {
			s.add(alias, canonical)
		}
	}
	s.keys = make([]string, 0, len(s.byKey))
	for key := range s.byKey {
		s.keys = append(s.keys, key)
	}
	sort.Strings(s.keys)
	return s
}

func (s *StaticAliases) add(name, canonical string) {
	key := NormalizeKey(name)
	if key == "" {
		return
	}
	s.byKey[key] = canonical
}

// Resolve implements AliasLookup.
func (s *StaticAliases) Resolve(key string) (string, bool) {
	canonical, ok := s.byKey[key]
	return canonical, ok
}

// Keys implements AliasLookup.
func (s *StaticAliases) Keys() []string {
	return s.keys
}

// DefaultAliasTable returns a copy of the built-in canonical alias table.
func DefaultAliasTable() map[string][]string {
	out := make(map[string][]string, len(defaultAliases))
	for canonical, aliases := range defaultAliases {
		out[canonical] = append([]string(nil), aliases...)
	}
	return out
}

// DefaultAliases returns the built-in lookup covering skills, programs, job
// titles, employers, universities, states and cities.
func DefaultAliases() *StaticAliases {
	return NewStaticAliases(defaultAliases)
}

var defaultAliases = map[string][]string{
	// Skills and programs.
	"Machine Learning":        {"ML", "machine learning", "machine-learning", "machinelearning"},
	"Deep Learning":           {"DL", "deep learning", "deep-learning"},
	"Computer Science":        {"CS", "CompSci", "Computer Sci", "Comp Sci"},
	"Data Science":            {"DS", "DataSci", "Data Sci"},
	"Cloud Computing":         {"Cloud", "Cloud Comp", "cloud computing"},
	"Software Engineering":    {"SE", "Software Eng", "Software Engineer Program"},
	"Artificial Intelligence": {"AI", "A.I.", "artificial intelligence"},

	// Jobs.
	"Data Scientist":    {"data scientist", "data-scientist"},
	"AI Engineer":       {"ai engineer", "ai-engineer"},
	"Software Engineer": {"software engineer", "swe"},
	"Product Manager":   {"PM", "product manager"},

	// Employers.
	"Google":    {"Google Inc", "Google LLC", "Alphabet", "Google, Inc."},
	"Microsoft": {"MSFT", "Microsoft Corp", "Microsoft Corporation"},
	"Amazon":    {"Amazon.com", "AWS", "Amazon Inc"},
	"Meta":      {"Facebook", "Meta Platforms", "Meta Inc"},
	"Apple":     {"Apple Inc", "Apple Computer"},
	"Tesla":     {"Tesla Inc", "Tesla Motors"},

	// Universities.
	"Stanford University":                   {"Stanford", "Stanford Univ", "SU"},
	"Massachusetts Institute of Technology": {"MIT", "M.I.T."},
	"Carnegie Mellon University":            {"CMU", "Carnegie Mellon"},
	"University of California, Berkeley":    {"UC Berkeley", "Berkeley", "UCB"},
	"University of California, Los Angeles": {"UCLA", "UC Los Angeles"},
	"University of Southern California":     {"USC", "Southern California University"},
	"New York University":                   {"NYU"},
	"San Jose State University":             {"SJSU", "San Jose State"},
	"Santa Monica College":                  {"SMC", "Santa Monica CC"},

	// Places.
	"California":            {"CA", "Calif."},
	"New York":              {"NY", "N.Y."},
	"Massachusetts":         {"MA", "Mass."},
	"Washington":            {"WA", "Wash."},
	"Palo Alto, California": {"Palo Alto CA"},
	"Seattle, Washington":   {"Seattle WA"},
}

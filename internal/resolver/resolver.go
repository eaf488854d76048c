// Package resolver canonicalizes entity names and relation labels and
// deduplicates the resulting triples.
package resolver

import (
	"strings"
	"unicode"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
)

// DefaultFuzzyCutoff is the minimum similarity for a fuzzy alias hit.
const DefaultFuzzyCutoff = 0.93

// RelatedTo is the catch-all relation for labels outside the ontology.
const RelatedTo = "RELATED_TO"

// Relations is the closed relation vocabulary.
var Relations = []string{
	"LOCATED_IN",
	"OFFERS",
	"DEVELOPS",
	"LEADS_TO",
	"HIRES_FROM",
	"REQUIRES",
	"PARTNERS_WITH",
}

var relationSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Relations))
	for _, r := range Relations {
		set[r] = struct{}{}
	}
	return set
}()

// titledTypes are entity types whose unresolved names are title-cased.
var titledTypes = map[string]bool{"skill": true, "program": true, "job": true}

// Resolver normalizes entities against an AliasLookup.
type Resolver struct {
	aliases AliasLookup
	cutoff  float64
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithFuzzyCutoff overrides the fuzzy match threshold. Values outside (0,1] are ignored.
func WithFuzzyCutoff(cutoff float64) Option {
	return func(r *Resolver) {
		if cutoff > 0 && cutoff <= 1 {
			r.cutoff = cutoff
		}
	}
}

// New returns a Resolver. A nil lookup uses DefaultAliases.
func New(aliases AliasLookup, opts ...Option) *Resolver {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	r := &Resolver{aliases: aliases, cutoff: DefaultFuzzyCutoff}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Normalize maps name to its canonical form. Unknown names are cleaned of
// punctuation, and title-cased when entityType is skill, program or job.
func (r *Resolver) Normalize(name, entityType string) string {
	raw := strings.TrimSpace(name)
	if raw == "" {
		return ""
	}
	key := NormalizeKey(raw)
	if canonical, ok := r.aliases.Resolve(key); ok {
		return canonical
	}
	if key != "" {
		if near, ok := closestKey(key, r.aliases.Keys(), r.cutoff); ok {
			if canonical, found := r.aliases.Resolve(near); found {
				return canonical
			}
		}
	}

	cleaned := specialRE.ReplaceAllString(foldAccents(raw), " ")
	cleaned = strings.TrimSpace(spaceRE.ReplaceAllString(cleaned, " "))
	if titledTypes[strings.ToLower(entityType)] {
		return titleCase(cleaned)
	}
	return cleaned
}

// NormalizeRelation uppercases label, maps hyphens and spaces to
// underscores, and falls back to RELATED_TO outside the vocabulary.
func NormalizeRelation(label string) string {
	normalized := strings.ToUpper(strings.TrimSpace(label))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	if _, ok := relationSet[normalized]; ok {
		return normalized
	}
	return RelatedTo
}

// NormalizeRelation is the method form of the package function.
func (r *Resolver) NormalizeRelation(label string) string {
	return NormalizeRelation(label)
}

// NormalizeTriples canonicalizes heads, tails and relations, clamps
// confidence to [0,1], drops triples with an empty endpoint and keeps the
// first occurrence of each (lower(head), relation, lower(tail)).
func (r *Resolver) NormalizeTriples(triples []crawler.RawTriple) []crawler.NormalizedTriple {
	type dedupKey struct{ head, relation, tail string }
	seen := make(map[dedupKey]struct{}, len(triples))
	out := make([]crawler.NormalizedTriple, 0, len(triples))
	for _, t := range triples {
		head := r.Normalize(t.Head, "")
		tail := r.Normalize(t.Tail, "")
		if head == "" || tail == "" {
			continue
		}
		nt := crawler.NormalizedTriple{
			Head:       head,
			Relation:   NormalizeRelation(t.Relation),
			Tail:       tail,
			Confidence: clamp(t.Confidence),
		}
		key := dedupKey{strings.ToLower(nt.Head), nt.Relation, strings.ToLower(nt.Tail)}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, nt)
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// titleCase upper-cases every letter that follows a non-letter and lowers the rest.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}

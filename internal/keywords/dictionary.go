// Package keywords matches fixed keyword dictionaries against text in a
// single pass using an Aho-Corasick automaton.
package keywords

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// Dictionary is a case-insensitive keyword set. The underlying matcher keeps
// per-call state, so Match calls are serialized.
type Dictionary struct {
	words   []string
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
}

// New builds a Dictionary. Keywords are lowercased; empty ones are dropped.
func New(words []string) *Dictionary {
	d := &Dictionary{}
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			d.words = append(d.words, w)
		}
	}
	if len(d.words) > 0 {
		d.matcher = ahocorasick.NewStringMatcher(d.words)
	}
	return d
}

// Words returns the normalized keywords in insertion order.
func (d *Dictionary) Words() []string {
	return d.words
}

// Match returns the indexes (into Words) of every keyword present in text.
func (d *Dictionary) Match(text string) []int {
	if d == nil || d.matcher == nil || text == "" {
		return nil
	}
	lowered := []byte(strings.ToLower(text))
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.matcher.Match(lowered)
}

// Contains reports whether any keyword occurs in text.
func (d *Dictionary) Contains(text string) bool {
	return len(d.Match(text)) > 0
}

// Found returns the matched keywords in dictionary order.
func (d *Dictionary) Found(text string) []string {
	hits := d.Match(text)
	if len(hits) == 0 {
		return nil
	}
	present := make(map[int]bool, len(hits))
	for _, idx := range hits {
		present[idx] = true
	}
	out := make([]string, 0, len(hits))
	for i, w := range d.words {
		if present[i] {
			out = append(out, w)
		}
	}
	return out
}

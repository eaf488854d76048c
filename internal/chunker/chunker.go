// Package chunker splits page text into overlapping, sentence-aligned chunks
// sized for the extraction oracle.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/campus-kg-crawler/internal/htmltext"
)

// ErrInvalidChunkConfig reports a size/overlap pair that cannot make progress.
var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// Default sizes, measured in runes.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

const minSectionRunes = 40

var (
	spaceRE    = regexp.MustCompile(`\s+`)
	sentenceRE = regexp.MustCompile(`[.!?]\s+`)
)

// Chunk is a window of normalized text. StartPos and EndPos are rune offsets
// into a virtual stream in which consecutive chunks share overlap runes.
type Chunk struct {
	Text     string `json:"text"`
	StartPos int    `json:"start_pos"`
	EndPos   int    `json:"end_pos"`
}

// Chunker carries a validated size/overlap pair.
type Chunker struct {
	size    int
	overlap int
}

// New validates the configuration and returns a Chunker.
func New(size, overlap int) (*Chunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the maximum chunk length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of runes carried between chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Text chunks plain text.
func (c *Chunker) Text(text string) []Chunk {
	return buildFromText(text, c.size, c.overlap)
}

// HTML extracts block text from raw HTML and chunks it.
func (c *Chunker) HTML(raw string) ([]Chunk, error) {
	return ChunkHTML(raw, c.size, c.overlap)
}

// ChunkText normalizes whitespace and splits text into chunks of at most size runes.
func ChunkText(text string, size, overlap int) ([]Chunk, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return buildFromText(text, size, overlap), nil
}

// ChunkHTML collects the text of section, article, div, p and li blocks with
// at least 40 runes, joins them with newlines, and chunks the result. Pages
// without qualifying blocks fall back to the whole document text.
func ChunkHTML(raw string, size, overlap int) ([]Chunk, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	sections, err := extractSections(raw)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, nil
	}
	return buildFromText(strings.Join(sections, "\n"), size, overlap), nil
}

func validate(size, overlap int) error {
	switch {
	case size <= 0:
		return fmt.Errorf("%w: chunk size must be > 0, got %d", ErrInvalidChunkConfig, size)
	case overlap < 0:
		return fmt.Errorf("%w: overlap must be >= 0, got %d", ErrInvalidChunkConfig, overlap)
	case overlap >= size:
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidChunkConfig, overlap, size)
	}
	return nil
}

func extractSections(raw string) ([]string, error) {
	doc, err := htmltext.Document(raw)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var sections []string
	doc.Find("section, article, div, p, li").Each(func(_ int, s *goquery.Selection) {
		text := htmltext.Text(s)
		if runeLen(text) >= minSectionRunes {
			sections = append(sections, text)
		}
	})
	if len(sections) > 0 {
		return sections, nil
	}
	if fallback := htmltext.Text(doc.Selection); fallback != "" {
		return []string{fallback}, nil
	}
	return nil, nil
}

func buildFromText(text string, size, overlap int) []Chunk {
	normalized := strings.TrimSpace(spaceRE.ReplaceAllString(text, " "))
	if normalized == "" {
		return nil
	}
	if n := runeLen(normalized); n <= size {
		return []Chunk{{Text: normalized, StartPos: 0, EndPos: n}}
	}
	b := &builder{size: size, overlap: overlap}
	for _, sentence := range splitSentences(normalized) {
		b.add(sentence)
	}
	if b.current != "" {
		b.flush(b.current)
	}
	return b.chunks
}

func splitSentences(text string) []string {
	var parts []string
	last := 0
	for _, loc := range sentenceRE.FindAllStringIndex(text, -1) {
		// Keep the punctuation with the sentence it ends.
		if part := strings.TrimSpace(text[last : loc[0]+1]); part != "" {
			parts = append(parts, part)
		}
		last = loc[1]
	}
	if part := strings.TrimSpace(text[last:]); part != "" {
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return []string{text}
	}
	return parts
}

type builder struct {
	size    int
	overlap int
	current string
	cursor  int
	chunks  []Chunk
}

func (b *builder) add(sentence string) {
	candidate := sentence
	if b.current != "" {
		candidate = b.current + " " + sentence
	}
	if runeLen(candidate) <= b.size {
		b.current = candidate
		return
	}

	if b.current != "" {
		b.flush(b.current)
		seed := ""
		if b.overlap > 0 {
			seed = strings.TrimSpace(tail(b.current, b.overlap))
		}
		if seed != "" {
			b.current = strings.TrimSpace(seed + " " + sentence)
		} else {
			b.current = sentence
		}
	} else {
		pieces := b.slice(sentence)
		for _, piece := range pieces[:max(0, len(pieces)-1)] {
			b.flush(piece)
		}
		b.current = ""
		if len(pieces) > 0 {
			b.current = pieces[len(pieces)-1]
		}
	}

	for runeLen(b.current) > b.size {
		pieces := b.slice(b.current)
		for _, piece := range pieces[:len(pieces)-1] {
			b.flush(piece)
		}
		b.current = pieces[len(pieces)-1]
	}
}

func (b *builder) flush(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	start := b.cursor
	end := start + runeLen(text)
	b.chunks = append(b.chunks, Chunk{Text: text, StartPos: start, EndPos: end})
	b.cursor = max(0, end-b.overlap)
}

// slice cuts text into windows of size runes advancing by size-overlap.
func (b *builder) slice(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	step := b.size - b.overlap
	if step <= 0 {
		step = b.size
	}
	var pieces []string
	for i := 0; i < len(runes); i += step {
		end := min(i+b.size, len(runes))
		if piece := strings.TrimSpace(string(runes[i:end])); piece != "" {
			pieces = append(pieces, piece)
		}
	}
	return pieces
}

func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func runeLen(s string) int {
	return len([]rune(s))
}

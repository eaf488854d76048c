package oracle

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
)

// DefaultConfidence is assigned when a reply omits confidence.
const DefaultConfidence = 0.8

type replyTriple struct {
	Head       string `json:"head"`
	Relation   string `json:"relation"`
	Tail       string `json:"tail"`
	Confidence any    `json:"confidence"`
}

type reply struct {
	Triples []replyTriple `json:"triples"`
}

// ParseResponse decodes a model reply of the form {"triples":[...]},
// optionally wrapped in a fenced json block. Entries missing a head,
// relation or tail are dropped.
func ParseResponse(text string) ([]crawler.RawTriple, error) {
	cleaned := stripFence(text)
	if cleaned == "" {
		return nil, fmt.Errorf("parse oracle reply: empty response")
	}
	var decoded reply
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, fmt.Errorf("parse oracle reply: %w", err)
	}

	out := make([]crawler.RawTriple, 0, len(decoded.Triples))
	for _, item := range decoded.Triples {
		head := strings.TrimSpace(item.Head)
		relation := strings.TrimSpace(item.Relation)
		tail := strings.TrimSpace(item.Tail)
		if head == "" || relation == "" || tail == "" {
			continue
		}
		confidence, err := confidenceValue(item.Confidence)
		if err != nil {
			return nil, fmt.Errorf("parse oracle reply: %w", err)
		}
		out = append(out, crawler.RawTriple{
			Head:       head,
			Relation:   relation,
			Tail:       tail,
			Confidence: confidence,
		})
	}
	return out, nil
}

func stripFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = strings.TrimPrefix(cleaned, "```")
	if strings.HasPrefix(cleaned, "json") {
		cleaned = strings.TrimSpace(cleaned[len("json"):])
	}
	if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
		cleaned = cleaned[:idx]
	}
	return strings.TrimSpace(cleaned)
}

func confidenceValue(v any) (float64, error) {
	switch c := v.(type) {
	case nil:
		return DefaultConfidence, nil
	case float64:
		return c, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return 0, fmt.Errorf("confidence %q: %w", c, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("confidence has unsupported type %T", v)
	}
}

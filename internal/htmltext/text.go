// Package htmltext extracts readable text from goquery selections.
package htmltext

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var spaceRE = regexp.MustCompile(`\s+`)

var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// Text returns the text under sel with every text node separated by a single
// space and surrounding whitespace collapsed. Script and style bodies are
// ignored.
func Text(sel *goquery.Selection) string {
	var parts []string
	for _, node := range sel.Nodes {
		collect(node, &parts)
	}
	return Collapse(strings.Join(parts, " "))
}

// OwnText returns only the text nodes that are direct children of sel.
func OwnText(sel *goquery.Selection) string {
	var parts []string
	for _, node := range sel.Nodes {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				parts = append(parts, child.Data)
			}
		}
	}
	return Collapse(strings.Join(parts, " "))
}

// Collapse squeezes runs of whitespace into one space and trims the result.
func Collapse(s string) string {
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}

// Document parses raw HTML. Malformed markup is tolerated by the parser, so
// only reader failures surface as errors.
func Document(raw string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(raw))
}

func collect(node *html.Node, parts *[]string) {
	switch node.Type {
	case html.TextNode:
		if text := strings.TrimSpace(node.Data); text != "" {
			*parts = append(*parts, text)
		}
		return
	case html.ElementNode:
		if skipped[node.Data] {
			return
		}
	case html.CommentNode:
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collect(child, parts)
	}
}

package web

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/couchcryptid/snow-emergency-monitor/internal/domain"
)

// Document is the part of a page the evidence rules look at.
type Document struct {
	Title    string
	Text     string
	Fragment *domain.DateFragment
}

// ParseDocument extracts visible text and the first structured date widget.
func ParseDocument(r io.Reader) (Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return Document{}, fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	var title string
	collectText(root, &sb, &title, 0)

	return Document{
		Title:    strings.TrimSpace(title),
		Text:     strings.Join(strings.Fields(sb.String()), " "),
		Fragment: findDateFragment(root),
	}, nil
}

func collectText(n *html.Node, sb *strings.Builder, title *string, depth int) {
	if depth > 200 {
		return
	}
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteString(" ")
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template", "svg", "iframe":
			return
		case "title":
			*title = textContent(n)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb, title, depth+1)
	}
}

// findDateFragment looks for a date widget like
//
//	<div class="date"><span class="month">Nov</span><span class="day">30</span></div>
//
// by locating a "month" element and searching up to three ancestors for a
// matching "day" element.
func findDateFragment(root *html.Node) *domain.DateFragment {
	month := findFirst(root, func(n *html.Node) bool { return hasClassToken(n, "month") })
	if month == nil {
		return nil
	}

	scope := month.Parent
	for i := 0; i < 3 && scope != nil; i++ {
		day := findFirst(scope, func(n *html.Node) bool { return n != month && hasClassToken(n, "day") })
		if day != nil {
			return &domain.DateFragment{
				Month: strings.TrimSpace(textContent(month)),
				Day:   strings.TrimSpace(textContent(day)),
			}
		}
		scope = scope.Parent
	}
	return nil
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// hasClassToken matches class tokens named want or ending in "-want" / "__want".
func hasClassToken(n *html.Node, want string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, tok := range strings.Fields(strings.ToLower(a.Val)) {
			if tok == want || strings.HasSuffix(tok, "-"+want) || strings.HasSuffix(tok, "__"+want) {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

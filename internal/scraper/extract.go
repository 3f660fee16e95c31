package scraper

import (
	"strings"

	"golang.org/x/net/html"
)

// contentSelectors are tried in order; the first element matching a
// selector supplies the page text. Supported forms: tag, .class, #id.
var contentSelectors = []string{
	"main",
	"article",
	".content",
	".documentation",
	".docs-content",
	"#content",
	".page-content",
}

// Extract returns the page title and its main text. Script and style
// content is ignored, whitespace is collapsed and the text is truncated
// to MaxContentRunes.
func Extract(root *html.Node) (title, content string) {
	title = "Untitled"
	if t := findFirst(root, func(n *html.Node) bool { return isElement(n, "title") }); t != nil {
		if text := collapse(textOf(t)); text != "" {
			title = text
		}
	}

	for _, sel := range contentSelectors {
		if n := findFirst(root, matcher(sel)); n != nil {
			content = collapse(textOf(n))
			break
		}
	}
	if content == "" {
		if body := findFirst(root, func(n *html.Node) bool { return isElement(n, "body") }); body != nil {
			content = collapse(textOf(body))
		}
	}

	return title, truncate(content, MaxContentRunes)
}

func matcher(sel string) func(*html.Node) bool {
	switch {
	case strings.HasPrefix(sel, "."):
		class := sel[1:]
		return func(n *html.Node) bool {
			if n.Type != html.ElementNode {
				return false
			}
			v, _ := attr(n, "class")
			for _, c := range strings.Fields(v) {
				if c == class {
					return true
				}
			}
			return false
		}
	case strings.HasPrefix(sel, "#"):
		id := sel[1:]
		return func(n *html.Node) bool {
			if n.Type != html.ElementNode {
				return false
			}
			v, ok := attr(n, "id")
			return ok && v == id
		}
	default:
		return func(n *html.Node) bool { return isElement(n, sel) }
	}
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

// findFirst returns the first node in document order that satisfies match.
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// textOf concatenates the text nodes under n, skipping script and style.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package sources

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"golang.org/x/net/html"
)

var (
	tagRe            = regexp.MustCompile(`<[^>]+>`)
	excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

	converterMu sync.Mutex
	converter   = md.NewConverter("", true, nil)
)

// HTMLToText converts an HTML fragment to compact markdown text. Plain text
// passes through with its whitespace collapsed.
func HTMLToText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "<") {
		return collapseSpaces(html.UnescapeString(s))
	}

	converterMu.Lock()
	markdown, err := converter.ConvertString(s)
	converterMu.Unlock()
	if err != nil {
		return collapseSpaces(html.UnescapeString(tagRe.ReplaceAllString(s, " ")))
	}
	return cleanMarkdown(markdown)
}

func cleanMarkdown(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseHTML(body []byte) (*html.Node, error) {
	return html.Parse(bytes.NewReader(body))
}

// findAll returns every element below n for which match is true, in document
// order. Matching elements are not searched further.
func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var result []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && match(node) {
			result = append(result, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return result
}

// findFirst returns the first element below n matching any of the matchers,
// trying matchers in order.
func findFirst(n *html.Node, matchers ...func(*html.Node) bool) *html.Node {
	for _, match := range matchers {
		var found *html.Node
		var walk func(*html.Node) bool
		walk = func(node *html.Node) bool {
			if node.Type == html.ElementNode && match(node) {
				found = node
				return true
			}
			for c := node.FirstChild; c != nil; c = c.NextSibling {
				if walk(c) {
					return true
				}
			}
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return found
			}
		}
	}
	return nil
}

func tag(name string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == name }
}

// tagWithClass matches an element whose class attribute contains any of the fragments.
func tagWithClass(name string, fragments ...string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if name != "" && n.Data != name {
			return false
		}
		class := strings.ToLower(attr(n, "class"))
		for _, f := range fragments {
			if strings.Contains(class, f) {
				return true
			}
		}
		return false
	}
}

func linkWithHref(n *html.Node) bool {
	return n.Data == "a" && attr(n, "href") != ""
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textOf returns the visible text of n with whitespace collapsed.
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			sb.WriteString(node.Data)
			sb.WriteByte(' ')
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" {
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return collapseSpaces(sb.String())
}

// textLines renders an HTML fragment to text keeping paragraph and line
// breaks as newlines.
func textLines(fragment string) []string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{Type: html.ElementNode, Data: "div"})
	if err != nil {
		return []string{collapseSpaces(tagRe.ReplaceAllString(fragment, " "))}
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			sb.WriteString(node.Data)
		case html.ElementNode:
			if node.Data == "p" || node.Data == "br" || node.Data == "div" || node.Data == "li" {
				sb.WriteByte('\n')
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if line = collapseSpaces(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// absoluteURL resolves href against base. Empty or unparsable input yields "".
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

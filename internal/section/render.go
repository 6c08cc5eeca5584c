package section

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

var md = goldmark.New()

// CleanMarkdown strips an outer code fence that some models wrap their answer in
func CleanMarkdown(input string) string {
	cleaned := strings.TrimSpace(input)

	for _, fence := range []string{"```markdown", "```md", "```"} {
		if strings.HasPrefix(cleaned, fence) && strings.HasSuffix(cleaned, "```") && len(cleaned) >= len(fence)+3 {
			cleaned = strings.TrimPrefix(cleaned, fence)
			cleaned = strings.TrimSuffix(cleaned, "```")
			return strings.TrimSpace(cleaned)
		}
	}
	return cleaned
}

// RenderMarkdown converts markdown to HTML
func RenderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// PlainText returns the visible text of a markdown document, one line per block
func PlainText(markdown string) (string, error) {
	rendered, err := RenderMarkdown(markdown)
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(strings.NewReader(rendered))
	if err != nil {
		return "", fmt.Errorf("parse rendered html: %w", err)
	}
	return visibleText(doc), nil
}

var blockElements = map[string]bool{
	"p": true, "li": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "pre": true, "blockquote": true, "tr": true, "br": true,
}

// visibleText walks the tree collecting text nodes, skipping scripts and styles
func visibleText(n *html.Node) string {
	var lines []string
	var current strings.Builder

	flush := func() {
		if line := strings.Join(strings.Fields(current.String()), " "); line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}

		if n.Type == html.TextNode {
			current.WriteString(n.Data)
			current.WriteString(" ")
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			flush()
		}
	}

	walk(n)
	flush()
	return strings.Join(lines, "\n")
}

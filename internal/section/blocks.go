package section

import (
	"regexp"
	"strings"

	"github.com/ppiankov/reportlens/internal/model"
)

const blockDelimiter = "###"

var (
	blankLine     = regexp.MustCompile(`\n[ \t]*\n`)
	leadingHashes = regexp.MustCompile(`^#+\s*`)
)

// SplitBlocks splits a narrative summary into titled blocks on "###".
// The first non-empty line of a block is its title and the rest its body.
func SplitBlocks(summary string) []model.Block {
	summary = strings.ReplaceAll(summary, "\r\n", "\n")

	var blocks []model.Block
	for _, part := range strings.Split(summary, blockDelimiter) {
		if strings.TrimSpace(part) == "" {
			continue
		}

		title, body := splitTitle(part)
		blocks = append(blocks, model.Block{
			Title:      title,
			Body:       body,
			Paragraphs: Paragraphs(body),
		})
	}
	return blocks
}

// Paragraphs splits body text on blank lines, dropping empty paragraphs
func Paragraphs(body string) []string {
	paragraphs := []string{}
	for _, p := range blankLine.Split(body, -1) {
		p = strings.TrimSpace(leadingHashes.ReplaceAllString(strings.TrimSpace(p), ""))
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// RenderBlocks fills in the HTML of each block body
func RenderBlocks(blocks []model.Block) ([]model.Block, error) {
	out := make([]model.Block, len(blocks))
	for i, b := range blocks {
		rendered, err := RenderMarkdown(b.Body)
		if err != nil {
			return nil, err
		}
		b.HTML = rendered
		out[i] = b
	}
	return out, nil
}

func splitTitle(part string) (string, string) {
	lines := strings.Split(part, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		title := strings.TrimSpace(leadingHashes.ReplaceAllString(strings.TrimSpace(line), ""))
		body := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		return title, body
	}
	return "", ""
}

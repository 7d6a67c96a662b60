package skills

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// summaryMaxLen caps the listing summary length.
const summaryMaxLen = 120

// Summary extracts a one-line plain-text summary from a markdown
// instruction body: the text of the first paragraph, headings skipped.
// Returns "" for bodies with no paragraph content.
func Summary(markdown string) string {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var summary string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Kind() == ast.KindParagraph {
			summary = string(n.Text(src))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	summary = strings.Join(strings.Fields(summary), " ")
	if len(summary) > summaryMaxLen {
		summary = summary[:summaryMaxLen-3] + "..."
	}
	return summary
}

package cleaner

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	gmtext "github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var mdParser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

// PlainText renders Markdown as plain text: inline syntax, link targets,
// heading markers and raw HTML are dropped, block boundaries become blank
// lines and code block contents are kept verbatim.
func PlainText(markdown string) string {
	src := []byte(markdown)
	doc := mdParser.Parse(gmtext.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				value := node.Segment.Value(src)
				if _, code := n.Parent().(*ast.CodeSpan); !code {
					value = util.ResolveEntityNames(util.ResolveNumericReferences(util.UnescapePunctuations(value)))
				}
				b.Write(value)
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
			return ast.WalkContinue, nil
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
			return ast.WalkContinue, nil
		case *ast.AutoLink:
			if entering {
				b.Write(node.Label(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
				b.WriteString("\n\n")
			}
			return ast.WalkSkipChildren, nil
		case *east.TableCell:
			if !entering {
				b.WriteByte('\t')
			}
			return ast.WalkContinue, nil
		case *east.TableRow, *east.TableHeader:
			if !entering {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		case *ast.ListItem:
			if !entering {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		case *ast.ThematicBreak:
			return ast.WalkContinue, nil
		}

		if !entering && n.Type() == ast.TypeBlock {
			b.WriteString("\n\n")
		}
		return ast.WalkContinue, nil
	})

	return normalizeText(b.String())
}

// normalizeText trims each line and collapses runs of blank lines.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

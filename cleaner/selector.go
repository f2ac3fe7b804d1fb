package cleaner

import (
	"bytes"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// narrowToSelector keeps the document head and replaces the body with the
// elements matching selector, in document order. Nested matches are kept
// once, through their outermost ancestor. ok is false when nothing matches
// and the caller should use the whole document.
func narrowToSelector(rawHTML, selector string) (narrowed string, ok bool, err error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return "", false, err
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", false, err
	}

	matches := outermost(cascadia.QueryAll(doc, sel))
	if len(matches) == 0 {
		return "", false, nil
	}

	var buf bytes.Buffer
	buf.WriteString("<html>")
	if head := cascadia.Query(doc, cascadia.MustCompile("head")); head != nil {
		if err := html.Render(&buf, head); err != nil {
			return "", false, err
		}
	}
	buf.WriteString("<body>")
	for _, n := range matches {
		if err := html.Render(&buf, n); err != nil {
			return "", false, err
		}
	}
	buf.WriteString("</body></html>")
	return buf.String(), true, nil
}

// outermost drops nodes that have an ancestor in nodes.
func outermost(nodes []*html.Node) []*html.Node {
	set := make(map[*html.Node]struct{}, len(nodes))
	for _, n := range nodes {
		set[n] = struct{}{}
	}
	out := nodes[:0]
	for _, n := range nodes {
		nested := false
		for p := n.Parent; p != nil && p.DataAtom != atom.Html; p = p.Parent {
			if _, hit := set[p]; hit {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, n)
		}
	}
	return out
}

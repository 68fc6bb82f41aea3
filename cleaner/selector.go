package cleaner

import (
	"bytes"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ApplyCSSSelector keeps only the elements of rawHTML matched by selector,
// rendered back to back in document order. selector may be a group
// ("main, .content"). An element nested inside another match is emitted
// once, as part of its outermost matching ancestor. If nothing matches,
// rawHTML is returned as is.
func ApplyCSSSelector(rawHTML, selector string) (string, error) {
	group, err := cascadia.ParseGroup(selector)
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	matches := outermost(cascadia.QueryAll(doc, group))
	if len(matches) == 0 {
		return rawHTML, nil
	}

	var buf bytes.Buffer
	for _, node := range matches {
		if err := html.Render(&buf, node); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// outermost drops every node that has an ancestor in nodes.
func outermost(nodes []*html.Node) []*html.Node {
	matched := make(map[*html.Node]struct{}, len(nodes))
	for _, n := range nodes {
		matched[n] = struct{}{}
	}

	kept := nodes[:0]
	for _, n := range nodes {
		nested := false
		for p := n.Parent; p != nil; p = p.Parent {
			if _, ok := matched[p]; ok {
				nested = true
				break
			}
		}
		if !nested {
			kept = append(kept, n)
		}
	}
	return kept
}

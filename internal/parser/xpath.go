package parser

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

// findXPath evaluates an XPath expression against the document root and
// returns the matched nodes as a selection of the same document.
func (e *SelectorEngine) findXPath(doc *goquery.Document, expr string) *goquery.Selection {
	if len(doc.Nodes) == 0 {
		return doc.Selection.Slice(0, 0)
	}
	nodes, err := htmlquery.QueryAll(doc.Nodes[0], expr)
	if err != nil {
		e.logger.Warn("invalid xpath", "selector", expr, "error", err)
		return doc.Selection.Slice(0, 0)
	}
	return doc.FindNodes(nodes...)
}

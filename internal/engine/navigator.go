package engine

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/articlecrawl/internal/parser"
	"github.com/IshaanNene/articlecrawl/internal/types"
)

// Navigator finds the next listing page.
type Navigator struct {
	selector  parser.SelectorSpec
	extractor *parser.SelectorEngine
	resolver  *Resolver
}

// NewNavigator creates a navigator for the next-page selector.
func NewNavigator(selector parser.SelectorSpec, extractor *parser.SelectorEngine, resolver *Resolver) *Navigator {
	return &Navigator{
		selector:  selector,
		extractor: extractor,
		resolver:  resolver,
	}
}

// Next returns the absolute URL of the first next-page link in doc. It
// returns types.ErrPaginationExhausted when there is none.
func (n *Navigator) Next(doc *goquery.Document, currentURL string) (string, error) {
	hrefs, err := n.extractor.Attrs(n.selector, parser.FromDocument(doc), "href")
	if err != nil {
		return "", err
	}
	if len(hrefs) == 0 || strings.TrimSpace(hrefs[0]) == "" {
		return "", types.ErrPaginationExhausted
	}

	next, err := n.resolver.Resolve(hrefs[0], currentURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrPaginationExhausted, err)
	}
	return next, nil
}

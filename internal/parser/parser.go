// Package parser implements selector-based extraction over HTML documents.
package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/articlecrawl/internal/types"
)

// Source is either a raw HTML string or an already parsed document.
// The zero value is invalid.
type Source struct {
	raw string
	doc *goquery.Document
}

// FromString wraps a raw HTML document.
func FromString(raw string) Source { return Source{raw: raw} }

// FromDocument wraps a parsed document.
func FromDocument(doc *goquery.Document) Source { return Source{doc: doc} }

// document returns the parsed form of the source, parsing raw input once.
func (s Source) document() (*goquery.Document, error) {
	if s.doc != nil {
		return s.doc, nil
	}
	if s.raw == "" {
		return nil, types.ErrDocumentShape
	}
	return goquery.NewDocumentFromReader(strings.NewReader(s.raw))
}

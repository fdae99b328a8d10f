package parser

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SelectorEngine matches selector specs against documents.
type SelectorEngine struct {
	logger *slog.Logger
}

// NewSelectorEngine creates a new selector engine.
func NewSelectorEngine(logger *slog.Logger) *SelectorEngine {
	return &SelectorEngine{
		logger: logger.With("component", "selector_engine"),
	}
}

// Select returns one single-element selection per match, ordered by
// selector order and then document order. No match yields an empty slice.
func (e *SelectorEngine) Select(spec SelectorSpec, src Source) ([]*goquery.Selection, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	doc, err := src.document()
	if err != nil {
		return nil, err
	}

	var matches []*goquery.Selection
	for _, pattern := range spec.Patterns() {
		var sel *goquery.Selection
		if expr, ok := strings.CutPrefix(pattern, XPathPrefix); ok {
			sel = e.findXPath(doc, expr)
		} else {
			sel = doc.Find(pattern)
		}
		sel.Each(func(_ int, s *goquery.Selection) {
			matches = append(matches, s)
		})
	}
	return matches, nil
}

// Attrs returns the values of attrs for every match, flattened in selector
// order, document order and attribute order. Missing attributes are skipped.
func (e *SelectorEngine) Attrs(spec SelectorSpec, src Source, attrs ...string) ([]string, error) {
	matches, err := e.Select(spec, src)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(matches)*len(attrs))
	for _, m := range matches {
		for _, attr := range attrs {
			if v, ok := m.Attr(attr); ok {
				values = append(values, v)
			}
		}
	}
	return values, nil
}

// Text concatenates the text content of every match.
func (e *SelectorEngine) Text(spec SelectorSpec, src Source) (string, error) {
	matches, err := e.Select(spec, src)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, m := range matches {
		b.WriteString(m.Text())
	}
	return b.String(), nil
}

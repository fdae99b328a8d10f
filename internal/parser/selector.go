package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"

	"github.com/IshaanNene/articlecrawl/internal/types"
)

// XPathPrefix marks a pattern that is evaluated as XPath instead of CSS.
const XPathPrefix = "xpath:"

// SelectorKind tags the shape of a SelectorSpec.
type SelectorKind int

const (
	selectorInvalid SelectorKind = iota
	SelectorSingle
	SelectorMultiple
)

// SelectorSpec is either a single pattern or an ordered set of patterns.
// The zero value is invalid.
type SelectorSpec struct {
	kind     SelectorKind
	patterns []string
}

// Single returns a spec holding one pattern.
func Single(pattern string) SelectorSpec {
	return SelectorSpec{kind: SelectorSingle, patterns: []string{pattern}}
}

// Multiple returns a spec holding patterns in the given order.
func Multiple(patterns ...string) SelectorSpec {
	return SelectorSpec{kind: SelectorMultiple, patterns: append([]string(nil), patterns...)}
}

// SelectorOf returns a single spec for one pattern and an ordered
// multi-pattern spec otherwise.
func SelectorOf(patterns ...string) SelectorSpec {
	if len(patterns) == 1 {
		return Single(patterns[0])
	}
	return Multiple(patterns...)
}

// ParseSelectorSpec converts a loosely typed value (from config files or
// checkpoint records) into a SelectorSpec.
func ParseSelectorSpec(v any) (SelectorSpec, error) {
	var spec SelectorSpec
	switch x := v.(type) {
	case SelectorSpec:
		spec = x
	case string:
		spec = Single(x)
	case []string:
		spec = Multiple(x...)
	case []any:
		patterns := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return SelectorSpec{}, &types.SelectorShapeError{Value: v, Reason: fmt.Sprintf("list element of type %T", item)}
			}
			patterns = append(patterns, s)
		}
		spec = Multiple(patterns...)
	default:
		return SelectorSpec{}, &types.SelectorShapeError{Value: v, Reason: "unsupported type"}
	}
	if err := spec.Validate(); err != nil {
		return SelectorSpec{}, err
	}
	return spec, nil
}

// Kind reports the spec shape.
func (s SelectorSpec) Kind() SelectorKind { return s.kind }

// Patterns returns the ordered patterns.
func (s SelectorSpec) Patterns() []string { return s.patterns }

// IsZero reports whether the spec was never set.
func (s SelectorSpec) IsZero() bool { return s.kind == selectorInvalid }

// Validate checks the spec shape. It does not compile the patterns.
func (s SelectorSpec) Validate() error {
	switch {
	case s.kind == selectorInvalid:
		return &types.SelectorShapeError{Reason: "selector is not set"}
	case len(s.patterns) == 0:
		return &types.SelectorShapeError{Reason: "empty pattern list"}
	case s.kind == SelectorSingle && len(s.patterns) != 1:
		return &types.SelectorShapeError{Reason: "single selector holds several patterns"}
	}
	for i, p := range s.patterns {
		if strings.TrimSpace(p) == "" {
			return &types.SelectorShapeError{Reason: fmt.Sprintf("pattern %d is empty", i)}
		}
	}
	return nil
}

// Compile validates the shape and compiles every pattern.
func (s SelectorSpec) Compile() error {
	if err := s.Validate(); err != nil {
		return err
	}
	for _, p := range s.patterns {
		if err := ValidatePattern(p); err != nil {
			return err
		}
	}
	return nil
}

// Value returns the spec as a plain string (Single) or []string (Multiple),
// the form used in records and config output.
func (s SelectorSpec) Value() any {
	if s.kind == SelectorSingle && len(s.patterns) == 1 {
		return s.patterns[0]
	}
	return append([]string(nil), s.patterns...)
}

func (s SelectorSpec) String() string {
	return strings.Join(s.patterns, " | ")
}

// MarshalJSON encodes a Single spec as a string and a Multiple spec as an array.
func (s SelectorSpec) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value())
}

// UnmarshalJSON accepts a string or an array of strings.
func (s *SelectorSpec) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	spec, err := ParseSelectorSpec(v)
	if err != nil {
		return err
	}
	*s = spec
	return nil
}

// ValidatePattern compiles a single CSS or xpath:-prefixed pattern.
func ValidatePattern(pattern string) error {
	if expr, ok := strings.CutPrefix(pattern, XPathPrefix); ok {
		if _, err := xpath.Compile(expr); err != nil {
			return fmt.Errorf("invalid xpath %q: %w", expr, err)
		}
		return nil
	}
	if _, err := cascadia.Compile(pattern); err != nil {
		return fmt.Errorf("invalid css selector %q: %w", pattern, err)
	}
	return nil
}

package dataflow

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// PathExtractor compiles a JSONPath expression into a handler suitable for
// Then or Apply chains over structured payloads. The handler accepts
// decoded documents (maps, slices) as well as raw JSON strings or bytes,
// and returns the first match; a miss yields ErrNoMatch.
func PathExtractor(expr string) (func(any) (any, error), error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("dataflow: parse path %q: %w", expr, err)
	}
	return func(payload any) (any, error) {
		doc := payload
		switch p := payload.(type) {
		case string:
			parsed, err := oj.ParseString(p)
			if err != nil {
				return nil, fmt.Errorf("dataflow: parse payload: %w", err)
			}
			doc = parsed
		case []byte:
			parsed, err := oj.Parse(p)
			if err != nil {
				return nil, fmt.Errorf("dataflow: parse payload: %w", err)
			}
			doc = parsed
		}
		matches := x.Get(doc)
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoMatch, expr)
		}
		return matches[0], nil
	}, nil
}

// Package yaml loads declarative dataflow network definitions: a scheduler,
// named channels and memoizers described in YAML, validated against a JSON
// schema and materialized into live primitives.
package yaml

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/xeipuuv/gojsonschema"
)

// Definition describes a dataflow network.
type Definition struct {
	Name      string        `yaml:"name"`
	Version   string        `yaml:"version,omitempty"`
	Scheduler SchedulerDef  `yaml:"scheduler,omitempty"`
	Channels  []ChannelDef  `yaml:"channels"`
	Memoizers []MemoizerDef `yaml:"memoizers,omitempty"`
}

// SchedulerDef selects the scheduler backing the network's handlers.
type SchedulerDef struct {
	// Kind is one of "go" (default), "limited" or "pool".
	Kind string `yaml:"kind,omitempty"`

	// Size is the concurrency cap for "limited" and the worker count for
	// "pool".
	Size int `yaml:"size,omitempty"`

	// Queue is the pool's task queue capacity; 0 uses the pool default.
	Queue int `yaml:"queue,omitempty"`
}

// ChannelDef declares a named channel.
type ChannelDef struct {
	Name string `yaml:"name"`

	// Kind is one of "variable", "queue" or "broadcast".
	Kind string `yaml:"kind"`

	// Capacity bounds a queue; 0 leaves it unbounded. Ignored for other
	// kinds.
	Capacity int `yaml:"capacity,omitempty"`
}

// MemoizerDef declares a named LRU protection storage.
type MemoizerDef struct {
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`
}

// definitionSchema validates the shape of a definition document before it
// is decoded into Definition.
const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "channels"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "version": {"type": "string"},
    "scheduler": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "kind": {"enum": ["go", "limited", "pool"]},
        "size": {"type": "integer", "minimum": 1},
        "queue": {"type": "integer", "minimum": 1}
      }
    },
    "channels": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "kind"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "kind": {"enum": ["variable", "queue", "broadcast"]},
          "capacity": {"type": "integer", "minimum": 1}
        }
      }
    },
    "memoizers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "capacity"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "capacity": {"type": "integer", "minimum": 1}
        }
      }
    }
  }
}`

// Parser handles parsing and validating network definitions.
type Parser struct {
	schema *gojsonschema.Schema
}

// NewParser creates a parser with the definition schema compiled once.
func NewParser() *Parser {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(definitionSchema))
	if err != nil {
		// The schema is a compile-time constant; failing to parse it is a
		// programming error.
		panic(fmt.Sprintf("yaml: invalid definition schema: %v", err))
	}
	return &Parser{schema: schema}
}

// Parse reads, validates and decodes a network definition.
func (p *Parser) Parse(r io.Reader) (*Definition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}

	result, err := p.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate definition: %w", err)
	}
	if !result.Valid() {
		var errMsg string
		for i, verr := range result.Errors() {
			if i > 0 {
				errMsg += "; "
			}
			errMsg += verr.String()
		}
		return nil, fmt.Errorf("definition validation failed: %s", errMsg)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	return &def, nil
}

// ParseFile reads and parses a network definition from a file.
func (p *Parser) ParseFile(filename string) (*Definition, error) {
	// #nosec G304 - the parser accepts arbitrary definition paths; callers
	// validate them according to their own requirements.
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return p.Parse(file)
}

// ParseString parses a network definition from a string.
func (p *Parser) ParseString(s string) (*Definition, error) {
	return p.Parse(bytes.NewReader([]byte(s)))
}

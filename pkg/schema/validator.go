// Package schema validates arbitrary decoded data against JSON Schema documents.
//
// Invariants:
// - Validation is pure: no I/O, no shared mutable state.
// - A failed validation reports every violation found, not just the first.
//
// Usage:
//
//	err := schema.Validate(schema.Schema{"type": "object", "required": []string{"name"}}, data)
//	var verr *schema.ValidationError
//	if errors.As(err, &verr) {
//		for _, v := range verr.Violations { fmt.Println(v.Path, v.Message) }
//	}
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a JSON Schema document in decoded form.
type Schema map[string]interface{}

// Violation is a single schema violation.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError aggregates all violations of one validation call.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "invalid input"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s %s", v.Path, v.Message))
	}
	return strings.Join(parts, "; ")
}

// Compiled is a schema compiled once and reusable for many validations.
// It is safe for concurrent use.
type Compiled struct {
	source Schema
	schema *gojsonschema.Schema
}

// Compile compiles a schema document. A nil schema accepts anything.
func Compile(s Schema) (*Compiled, error) {
	if s == nil {
		return &Compiled{}, nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(map[string]interface{}(s)))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Compiled{source: s, schema: compiled}, nil
}

// MustCompile is like Compile but panics on error. Intended for package-level schemas.
func MustCompile(s Schema) *Compiled {
	c, err := Compile(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Source returns the schema document this was compiled from.
func (c *Compiled) Source() Schema {
	return c.source
}

// Validate checks data against the compiled schema. It returns nil or a *ValidationError.
func (c *Compiled) Validate(data interface{}) error {
	if c == nil || c.schema == nil {
		return nil
	}

	result, err := c.schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		// Data that cannot be encoded as JSON cannot satisfy any schema.
		return &ValidationError{Violations: []Violation{{Path: "/", Message: fmt.Sprintf("value is not JSON-encodable: %v", err)}}}
	}
	if result.Valid() {
		return nil
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, Violation{
			Path:    pointer(re.Field()),
			Message: re.Description(),
		})
	}
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Path < violations[j].Path
	})

	return &ValidationError{Violations: violations}
}

// Validate compiles s and validates data against it.
func Validate(s Schema, data interface{}) error {
	c, err := Compile(s)
	if err != nil {
		return err
	}
	return c.Validate(data)
}

const rootField = "(root)"

// pointer converts a gojsonschema field locator ("(root)", "steps.0.kind")
// into a JSON-pointer style path ("/", "/steps/0/kind").
func pointer(field string) string {
	if field == "" || field == rootField {
		return "/"
	}
	field = strings.TrimPrefix(field, rootField+".")
	return "/" + strings.ReplaceAll(field, ".", "/")
}

package processing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrMalformed means the candidate is not a single valid JSON value.
	ErrMalformed = errors.New("malformed JSON")

	// ErrWrongShape means the candidate parsed but does not have the
	// structure the task requires.
	ErrWrongShape = errors.New("unexpected JSON shape")
)

// Shape names the structure a task's completion must have.
type Shape int

const (
	// ShapeDocument is a flat object of scalar or null values.
	ShapeDocument Shape = iota
	// ShapeDeal is an object with model_name, bike_number and a batteries list.
	ShapeDeal
	// ShapePlans is a non-empty object whose every value is an object.
	ShapePlans
)

func (s Shape) String() string {
	switch s {
	case ShapeDocument:
		return "document"
	case ShapeDeal:
		return "deal"
	case ShapePlans:
		return "plans"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// MalformedError carries the parser error and the byte offset it points at.
// It matches ErrMalformed.
type MalformedError struct {
	Offset int64
	Err    error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%v at offset %d: %v", ErrMalformed, e.Offset, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// ShapeError lists the schema violations of a parsed candidate. It matches
// ErrWrongShape.
type ShapeError struct {
	Shape      Shape
	Violations []string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%v for %s: %s", ErrWrongShape, e.Shape, strings.Join(e.Violations, "; "))
}

func (e *ShapeError) Is(target error) bool { return target == ErrWrongShape }

const scalarOrNull = `{"type": ["string", "number", "boolean", "null"]}`

var schemaSources = map[Shape]string{
	ShapeDocument: `{
		"type": "object",
		"additionalProperties": ` + scalarOrNull + `
	}`,
	ShapeDeal: `{
		"type": "object",
		"required": ["model_name", "bike_number", "batteries"],
		"properties": {
			"model_name": {"type": ["string", "number", "null"]},
			"bike_number": {"type": ["string", "number", "null"]},
			"batteries": {
				"type": ["array", "null"],
				"items": {
					"type": "object",
					"properties": {
						"capacity": {"type": ["string", "number", "null"]},
						"number": {"type": ["string", "number", "null"]}
					}
				}
			}
		}
	}`,
	ShapePlans: `{
		"type": "object",
		"minProperties": 1,
		"additionalProperties": {"type": "object"}
	}`,
}

var schemas = compileSchemas()

func compileSchemas() map[Shape]*gojsonschema.Schema {
	out := make(map[Shape]*gojsonschema.Schema, len(schemaSources))
	for shape, src := range schemaSources {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			panic(fmt.Sprintf("compile %s schema: %v", shape, err))
		}
		out[shape] = s
	}
	return out
}

// Validate strictly parses candidate as one JSON value and checks it against
// shape. It returns the candidate bytes on success, a *MalformedError when
// parsing fails (including trailing data) and a *ShapeError when the value
// has the wrong structure.
func Validate(candidate string, shape Shape) (json.RawMessage, error) {
	schema, ok := schemas[shape]
	if !ok {
		return nil, fmt.Errorf("unknown shape %v", shape)
	}

	raw := []byte(candidate)
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		var offset int64
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			offset = syntaxErr.Offset
		}
		return nil, &MalformedError{Offset: offset, Err: err}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(v))
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", shape, err)
	}
	if !result.Valid() {
		violations := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			violations[i] = desc.String()
		}
		return nil, &ShapeError{Shape: shape, Violations: violations}
	}

	return json.RawMessage(raw), nil
}

// ValidateDocument validates a document-recognition completion. Missing and
// extra fields are tolerated; nested values are not.
func ValidateDocument(candidate string) (DocumentFields, error) {
	raw, err := Validate(candidate, ShapeDocument)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	fields := DocumentFields{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode document fields: %w", err)
	}
	return fields, nil
}

// ValidateDeal validates a deal-parsing completion. Numeric scalars are
// converted to their JSON text, a null batteries value to an empty list and
// battery entries are reduced to capacity and number.
func ValidateDeal(candidate string) (*DealComponents, error) {
	raw, err := Validate(candidate, ShapeDeal)
	if err != nil {
		return nil, err
	}

	var loose struct {
		ModelName  json.RawMessage `json:"model_name"`
		BikeNumber json.RawMessage `json:"bike_number"`
		Batteries  []struct {
			Capacity json.RawMessage `json:"capacity"`
			Number   json.RawMessage `json:"number"`
		} `json:"batteries"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, fmt.Errorf("decode deal: %w", err)
	}

	deal := &DealComponents{
		ModelName:  scalarString(loose.ModelName),
		BikeNumber: scalarString(loose.BikeNumber),
		Batteries:  make([]Battery, 0, len(loose.Batteries)),
	}
	for _, b := range loose.Batteries {
		deal.Batteries = append(deal.Batteries, Battery{
			Capacity: scalarString(b.Capacity),
			Number:   scalarString(b.Number),
		})
	}
	return deal, nil
}

// scalarString turns a schema-checked string, number or null into a string
// pointer. Absent and null values yield nil.
func scalarString(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	s = string(raw)
	return &s
}

// ValidatePlans validates a buyout-plan completion and keeps the plans in
// the order the model wrote them. A repeated id keeps its first position and
// its last value, as a JSON decoder would.
func ValidatePlans(candidate string) (PlanSet, error) {
	raw, err := Validate(candidate, ShapePlans)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}

	var set PlanSet
	index := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode plans: %w", err)
		}
		id, _ := tok.(string)

		var plan json.RawMessage
		if err := dec.Decode(&plan); err != nil {
			return nil, fmt.Errorf("decode plan %q: %w", id, err)
		}

		if i, seen := index[id]; seen {
			set[i].Plan = plan
			continue
		}
		index[id] = len(set)
		set = append(set, PlanEntry{ID: id, Plan: plan})
	}
	return set, nil
}

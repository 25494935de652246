// Package validation decodes and checks gateway request bodies before they
// reach the completion pipeline.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// DocumentsRequest is the body of POST /recognize-documents. Images are
// base64 strings, optionally prefixed with a data URL header.
type DocumentsRequest struct {
	Images  []string `json:"images" validate:"required,min=1,dive,required"`
	Country string   `json:"country" validate:"required,oneof=domestic foreign"`
}

// DealRequest is the body of POST /parse-deal.
type DealRequest struct {
	Description string `json:"description" validate:"required"`
}

func (r *DealRequest) textInputs() map[string]string {
	return map[string]string{"description": r.Description}
}

// BuyoutPlansRequest is the body of POST /generate-buyout-plans.
type BuyoutPlansRequest struct {
	DealDescription string `json:"deal_description" validate:"required"`
	PlanDescription string `json:"plan_description"`
}

func (r *BuyoutPlansRequest) textInputs() map[string]string {
	return map[string]string{
		"deal_description": r.DealDescription,
		"plan_description": r.PlanDescription,
	}
}

// NotifyRequest is the body of POST /notify.
type NotifyRequest struct {
	RecipientID int64  `json:"recipient_id" validate:"required"`
	Text        string `json:"text" validate:"required"`
}

// textual is implemented by requests whose free-text fields are subject to
// the input token limit.
type textual interface {
	textInputs() map[string]string
}

// Violation describes one rejected field.
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RequestError is returned by Decode when the body cannot be accepted.
type RequestError struct {
	Message    string
	Violations []Violation
	err        error
}

func (e *RequestError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	}
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.err
}

// Details returns the violations in the shape used for error response details.
func (e *RequestError) Details() map[string]interface{} {
	if len(e.Violations) == 0 {
		return nil
	}
	return map[string]interface{}{"violations": e.Violations}
}

// Decoder decodes JSON request bodies into request structs and validates them.
type Decoder struct {
	validate  *validator.Validate
	maxTokens int

	counterOnce sync.Once
	newCounter  func() (*TokenCounter, error)
	counter     *TokenCounter
	counterErr  error
}

// NewDecoder creates a decoder. When maxInputTokens is positive, free-text
// fields longer than that many tokens of model's encoding are rejected. The
// encoding is loaded on first use.
func NewDecoder(maxInputTokens int, model string) *Decoder {
	return newDecoder(maxInputTokens, func() (*TokenCounter, error) {
		return NewTokenCounter(model)
	})
}

// NewDecoderWithTokenizer creates a decoder counting tokens with tok.
func NewDecoderWithTokenizer(maxInputTokens int, tok Tokenizer) *Decoder {
	return newDecoder(maxInputTokens, func() (*TokenCounter, error) {
		return &TokenCounter{encoding: tok}, nil
	})
}

func newDecoder(maxTokens int, newCounter func() (*TokenCounter, error)) *Decoder {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Decoder{validate: v, maxTokens: maxTokens, newCounter: newCounter}
}

// Decode reads one JSON object from r's body into dst, which must be a
// pointer to one of the request structs, and validates it. Failures are
// reported as *RequestError.
func (d *Decoder) Decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &RequestError{Message: "Request body too large", err: err}
		}
		return &RequestError{Message: "Invalid request format", err: err}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return &RequestError{Message: "Invalid request format", err: errors.New("unexpected data after JSON object")}
	}

	if err := d.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return &RequestError{Message: "Request validation failed", err: err}
		}
		violations := make([]Violation, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			violations = append(violations, describe(fe))
		}
		return &RequestError{Message: "Request validation failed", Violations: violations, err: err}
	}

	if t, ok := dst.(textual); ok && d.maxTokens > 0 {
		return d.checkTokens(t)
	}
	return nil
}

func (d *Decoder) checkTokens(t textual) error {
	d.counterOnce.Do(func() {
		d.counter, d.counterErr = d.newCounter()
	})
	if d.counterErr != nil {
		return fmt.Errorf("token counter: %w", d.counterErr)
	}

	var violations []Violation
	for field, text := range t.textInputs() {
		if n := d.counter.Count(text); n > d.maxTokens {
			violations = append(violations, Violation{
				Field:   field,
				Code:    "token_limit_exceeded",
				Message: fmt.Sprintf("%d tokens exceeds the limit of %d", n, d.maxTokens),
			})
		}
	}
	if len(violations) > 0 {
		sort.Slice(violations, func(i, j int) bool { return violations[i].Field < violations[j].Field })
		return &RequestError{Message: "Token limit exceeded", Violations: violations}
	}
	return nil
}

func describe(fe validator.FieldError) Violation {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("field '%s' is required", field)
	case "min":
		msg = fmt.Sprintf("field '%s' must contain at least %s item(s)", field, fe.Param())
	case "oneof":
		msg = fmt.Sprintf("field '%s' must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		msg = fmt.Sprintf("field '%s' failed the '%s' check", field, fe.Tag())
	}

	return Violation{Field: field, Code: fe.Tag() + "_validation_failed", Message: msg}
}

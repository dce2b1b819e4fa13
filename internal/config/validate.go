package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// Validation error codes (E200-E299)
const (
	ErrSchema        = "E200" // value rejected by the #Config schema
	ErrEncode        = "E201" // configuration could not be encoded for checking
	ErrActionTimeout = "E202" // action_inactivity must be below action_max_duration
)

//go:embed schema.cue
var schemaSource string

// ValidationError represents one configuration problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks c against the embedded #Config schema and the rules that
// span several fields. Returns all errors found (does not fail-fast).
func Validate(c *Config) []ValidationError {
	data, err := json.Marshal(c)
	if err != nil {
		return []ValidationError{{
			Message: fmt.Sprintf("encode config: %v", err),
			Code:    ErrEncode,
		}}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		// The embedded schema is fixed at build time.
		panic(fmt.Sprintf("config: invalid embedded schema: %v", err))
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.CompileBytes(data, cue.Filename("config.json"))
	if err := value.Err(); err != nil {
		return []ValidationError{{
			Message: fmt.Sprintf("encode config: %v", err),
			Code:    ErrEncode,
		}}
	}

	errs := schemaErrors(def.Unify(value).Validate(cue.Concrete(true)))

	if c.ActionMaxDuration > 0 && c.ActionInactivity >= c.ActionMaxDuration {
		errs = append(errs, ValidationError{
			Field:   "action_inactivity",
			Message: fmt.Sprintf("must be below action_max_duration (%s)", c.ActionMaxDuration.Std()),
			Code:    ErrActionTimeout,
		})
	}
	return errs
}

// Check is Validate folded into a single error, nil when c is valid.
func Check(c *Config) error {
	errs := Validate(c)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// schemaErrors extracts field paths from CUE errors.
func schemaErrors(err error) []ValidationError {
	if err == nil {
		return nil
	}

	var out []ValidationError
	seen := make(map[string]bool)
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		ve := ValidationError{
			Field:   fieldPath(e.Path()),
			Message: fmt.Sprintf(format, args...),
			Code:    ErrSchema,
		}
		key := ve.Field + "\x00" + ve.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ve)
	}
	return out
}

// fieldPath drops definition selectors such as #Config from a CUE path.
func fieldPath(path []string) string {
	parts := make([]string, 0, len(path))
	for _, p := range path {
		if strings.HasPrefix(p, "#") {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ".")
}

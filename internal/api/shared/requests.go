package shared

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Package-level validator; validator.Validate caches struct metadata, so one
// instance serves all request types.
var validate = validator.New()

// DecodeJSON decodes the request body into v. Unknown fields in the payload
// are rejected so client typos surface as 400s instead of silently dropped
// fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}

// ValidateRequest checks v against its validate struct tags. A type carrying
// its own Validate method is validated through that instead.
func ValidateRequest(v any) error {
	if custom, ok := v.(interface{ Validate() error }); ok {
		return custom.Validate()
	}
	return validate.Struct(v)
}

// ABOUTME: Structural validation of call arguments against a tool's schema.
// ABOUTME: Checks required fields, scalar/array/object shapes, and enums.

package dispatch

import (
	"fmt"

	"github.com/adforge/ads-gateway/internal/catalog"
)

// FieldError reports which argument failed validation and why.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("argument %q: %s", e.Field, e.Reason)
}

// validateArgs checks args against the tool's input schema.
// Returns a *FieldError naming the offending field on the first mismatch.
func validateArgs(schema *catalog.Schema, args map[string]any) error {
	if schema == nil {
		return nil
	}
	return validateObject(schema, args, "")
}

func validateObject(schema *catalog.Schema, obj map[string]any, path string) error {
	for _, req := range schema.Required {
		if _, ok := obj[req]; !ok {
			return &FieldError{Field: joinPath(path, req), Reason: "required field missing"}
		}
	}

	for name, prop := range schema.Properties {
		val, ok := obj[name]
		if !ok || val == nil {
			continue
		}
		if err := validateValue(prop, val, joinPath(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(schema *catalog.Schema, val any, path string) error {
	switch schema.Type {
	case "string":
		s, ok := val.(string)
		if !ok {
			return &FieldError{Field: path, Reason: fmt.Sprintf("expected string, got %T", val)}
		}
		if len(schema.Enum) > 0 && !containsString(schema.Enum, s) {
			return &FieldError{Field: path, Reason: fmt.Sprintf("value %q not in %v", s, schema.Enum)}
		}
	case "integer", "number":
		// JSON numbers decode as float64.
		switch val.(type) {
		case float64, int, int64:
		default:
			return &FieldError{Field: path, Reason: fmt.Sprintf("expected number, got %T", val)}
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return &FieldError{Field: path, Reason: fmt.Sprintf("expected boolean, got %T", val)}
		}
	case "array":
		arr, ok := val.([]any)
		if !ok {
			return &FieldError{Field: path, Reason: fmt.Sprintf("expected array, got %T", val)}
		}
		if schema.Items != nil {
			for i, item := range arr {
				if err := validateValue(schema.Items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
		}
	case "object":
		obj, ok := val.(map[string]any)
		if !ok {
			return &FieldError{Field: path, Reason: fmt.Sprintf("expected object, got %T", val)}
		}
		return validateObject(schema, obj, path)
	}
	return nil
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

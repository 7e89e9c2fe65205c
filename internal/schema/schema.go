// Package schema validates privileged-operation payloads against declared
// shapes. Presence and unknown-field checks fail closed on the declaration
// table directly; type, bounds, and pattern enforcement run through a JSON
// Schema compiled once per operation at process start.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldType is the declared type of one payload field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
)

// Field declares constraints for one payload field. Length and value
// bounds are inclusive. Pattern, when set, must match the entire value.
type Field struct {
	Type     FieldType
	Required bool
	MinLen   int
	MaxLen   int
	Min      *int64
	Max      *int64
	Pattern  string
}

// Operation is one named, immutable payload shape.
type Operation struct {
	Name   string
	Fields map[string]Field
}

// Code classifies one field-level validation failure.
type Code string

const (
	CodeMissingField    Code = "missing_field"
	CodeTypeMismatch    Code = "type_mismatch"
	CodeOutOfRange      Code = "out_of_range"
	CodePatternMismatch Code = "pattern_mismatch"
	CodeUnknownField    Code = "unknown_field"
)

// FieldError names one offending field and why it failed.
type FieldError struct {
	Field string `json:"field"`
	Code  Code   `json:"code"`
}

// ValidationError carries every field error found in one payload.
type ValidationError struct {
	Operation string       `json:"operation"`
	Fields    []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		parts[i] = fe.Field + ": " + string(fe.Code)
	}
	return fmt.Sprintf("schema: %s: %s", e.Operation, strings.Join(parts, ", "))
}

type compiledOp struct {
	def    Operation
	schema *jsonschema.Schema
}

// Registry holds compiled operation schemas. Built once at start,
// read-only thereafter.
type Registry struct {
	ops map[string]*compiledOp
}

// NewRegistry compiles the given operations into a Registry.
func NewRegistry(ops []Operation) (*Registry, error) {
	r := &Registry{ops: make(map[string]*compiledOp, len(ops))}
	for _, op := range ops {
		compiled, err := compile(op)
		if err != nil {
			return nil, fmt.Errorf("schema: compile %s: %w", op.Name, err)
		}
		r.ops[op.Name] = &compiledOp{def: op, schema: compiled}
	}
	return r, nil
}

func compile(op Operation) (*jsonschema.Schema, error) {
	props := make(map[string]any, len(op.Fields))
	for name, f := range op.Fields {
		props[name] = fieldSchema(f)
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	id := "inmemory://operations/" + op.Name
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(id, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return compiler.Compile(id)
}

func fieldSchema(f Field) map[string]any {
	s := map[string]any{"type": string(f.Type)}
	switch f.Type {
	case TypeString:
		if f.MinLen > 0 {
			s["minLength"] = f.MinLen
		}
		if f.MaxLen > 0 {
			s["maxLength"] = f.MaxLen
		}
		if f.Pattern != "" {
			// Full-match semantics: anchor the declared pattern.
			s["pattern"] = "^(?:" + f.Pattern + ")$"
		}
	case TypeInteger:
		if f.Min != nil {
			s["minimum"] = *f.Min
		}
		if f.Max != nil {
			s["maximum"] = *f.Max
		}
	}
	return s
}

// Validate checks payload against the named operation's shape. On success
// it returns a copy holding only declared fields with integers coerced to
// int64. On failure it returns a *ValidationError listing every offending
// field; unknown operations are a plain error.
func (r *Registry) Validate(operation string, payload map[string]any) (map[string]any, error) {
	op, ok := r.ops[operation]
	if !ok {
		return nil, fmt.Errorf("schema: unknown operation %q", operation)
	}
	if payload == nil {
		payload = map[string]any{}
	}

	var fieldErrs []FieldError

	// Fail closed on anything not declared for this operation.
	for name := range payload {
		if _, declared := op.def.Fields[name]; !declared {
			fieldErrs = append(fieldErrs, FieldError{Field: name, Code: CodeUnknownField})
		}
	}

	for name, f := range op.def.Fields {
		if _, present := payload[name]; f.Required && !present {
			fieldErrs = append(fieldErrs, FieldError{Field: name, Code: CodeMissingField})
		}
	}

	declared := make(map[string]any, len(payload))
	for name := range op.def.Fields {
		if v, present := payload[name]; present {
			declared[name] = v
		}
	}

	if err := op.schema.Validate(declared); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return nil, fmt.Errorf("schema: validate %s: %w", operation, err)
		}
		fieldErrs = append(fieldErrs, mapCauses(ve)...)
	}

	if len(fieldErrs) > 0 {
		return nil, &ValidationError{Operation: operation, Fields: fieldErrs}
	}

	return coerce(op.def, declared), nil
}

// mapCauses walks the validator's cause tree to its leaves and maps each
// failed keyword to the field-error taxonomy.
func mapCauses(ve *jsonschema.ValidationError) []FieldError {
	if len(ve.Causes) == 0 {
		field := strings.TrimPrefix(ve.InstanceLocation, "/")
		keyword := ve.KeywordLocation
		if i := strings.LastIndex(keyword, "/"); i >= 0 {
			keyword = keyword[i+1:]
		}
		var code Code
		switch keyword {
		case "type":
			code = CodeTypeMismatch
		case "minLength", "maxLength", "minimum", "maximum":
			code = CodeOutOfRange
		case "pattern":
			code = CodePatternMismatch
		default:
			code = CodeTypeMismatch
		}
		return []FieldError{{Field: field, Code: code}}
	}
	var out []FieldError
	for _, cause := range ve.Causes {
		out = append(out, mapCauses(cause)...)
	}
	return out
}

// coerce copies declared fields, converting JSON numbers on integer
// fields to int64 so dispatch code never sees float64.
func coerce(op Operation, declared map[string]any) map[string]any {
	out := make(map[string]any, len(declared))
	for name, v := range declared {
		if op.Fields[name].Type == TypeInteger {
			if f, ok := v.(float64); ok {
				out[name] = int64(f)
				continue
			}
			if n, ok := v.(int); ok {
				out[name] = int64(n)
				continue
			}
		}
		out[name] = v
	}
	return out
}

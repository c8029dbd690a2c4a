package validator

// =============================================================================
// CONTRACT GUARD FOR USER-SUPPLIED FILES
// =============================================================================
//
// Configuration and attribute files flow straight into the Yosys script. A typo
// such as "mdoe": "full" or an attribute value given as an object would
// otherwise surface as a confusing engine failure halfway through synthesis.
// The CUE schema rejects such input before any process starts.
// =============================================================================

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaFS embed.FS

// Validator checks data against the embedded CUE schema.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// Field is one attribute entry in file order.
type Field struct {
	Name  string
	Value string
}

// New creates a Validator with the embedded schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile("schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	return &Validator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// ValidateConfig checks a configuration value (marshaled to JSON first).
func (v *Validator) ValidateConfig(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling config to JSON: %w", err)
	}
	return v.ValidateConfigJSON(jsonBytes)
}

// ValidateConfigJSON checks raw configuration JSON.
func (v *Validator) ValidateConfigJSON(jsonBytes []byte) error {
	_, err := v.unify(jsonBytes, "#Config")
	if err != nil {
		return fmt.Errorf("config schema validation failed: %w", err)
	}
	return nil
}

// ValidateAttributesJSON checks an attributes document.
func (v *Validator) ValidateAttributesJSON(jsonBytes []byte) error {
	_, err := v.Attributes(jsonBytes)
	return err
}

// Attributes validates an attributes document and returns its entries in the
// order they appear in the file. Later entries may override earlier ones in
// the engine, so the order is kept.
func (v *Validator) Attributes(jsonBytes []byte) ([]Field, error) {
	data, err := v.unify(jsonBytes, "#Attributes")
	if err != nil {
		return nil, fmt.Errorf("attributes schema validation failed: %w", err)
	}

	iter, err := data.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating attributes: %w", err)
	}
	var fields []Field
	for iter.Next() {
		val, err := scalarString(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", iter.Selector().Unquoted(), err)
		}
		fields = append(fields, Field{Name: iter.Selector().Unquoted(), Value: val})
	}
	return fields, nil
}

// ValidationErrors lists every schema error for data against definition def
// (for example "#Config"). It returns nil when data is valid.
func (v *Validator) ValidationErrors(def string, data interface{}) []string {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return []string{fmt.Sprintf("marshal error: %v", err)}
	}
	_, err = v.unify(jsonBytes, def)
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// unify compiles jsonBytes and checks it against def. It returns the data
// value itself so callers can walk fields in source order.
func (v *Validator) unify(jsonBytes []byte, def string) (cue.Value, error) {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}

	defValue := v.schema.LookupPath(cue.ParsePath(def))
	if defValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("looking up %s definition: %w", def, defValue.Err())
	}

	unified := defValue.Unify(dataValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, err
	}
	return dataValue, nil
}

func scalarString(val cue.Value) (string, error) {
	switch val.Kind() {
	case cue.StringKind:
		return val.String()
	case cue.IntKind, cue.FloatKind, cue.NumberKind, cue.BoolKind:
		b, err := val.MarshalJSON()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return "", fmt.Errorf("unsupported value kind %s", val.Kind())
}

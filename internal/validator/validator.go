// Package validator checks emitted records and fact tables against an
// embedded CUE contract. A mismatch means an extraction or classification
// bug and is reported, never patched over.
package validator

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
	"github.com/robert-at-pretension-io/verilog-assets/internal/facts"
)

//go:embed schema.cue
var schemaFS embed.FS

// Validator unifies JSON-encoded values with one schema definition
type Validator struct {
	ctx        *cue.Context
	definition cue.Value
	name       string
}

// New returns a validator for asset record lists (#Records)
func New() (*Validator, error) {
	return newValidator("#Records")
}

// NewFactsValidator returns a validator for fact tables (#Tables)
func NewFactsValidator() (*Validator, error) {
	return newValidator("#Tables")
}

func newValidator(def string) (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile("schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema: %w", err)
	}
	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	definition := schema.LookupPath(cue.ParsePath(def))
	if definition.Err() != nil {
		return nil, fmt.Errorf("looking up %s definition: %w", def, definition.Err())
	}
	return &Validator{ctx: ctx, definition: definition, name: def}, nil
}

// ValidateRecords checks a record list
func (v *Validator) ValidateRecords(records []asset.Record) error {
	if records == nil {
		records = []asset.Record{}
	}
	return v.Validate(records)
}

// ValidateTables checks fact tables
func (v *Validator) ValidateTables(tables facts.Tables) error {
	return v.Validate(tables)
}

// Validate checks that data, encoded as JSON, conforms to the definition
func (v *Validator) Validate(data any) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON validates JSON bytes directly against the definition
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}

	unified := v.definition.Unify(dataValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s validation failed: %w", v.name, err)
	}
	return nil
}

// ValidationErrors returns one message per violated constraint
func (v *Validator) ValidationErrors(data any) []string {
	err := v.Validate(data)
	if err == nil {
		return nil
	}
	var msgs []string
	for _, e := range errors.Errors(err) {
		msgs = append(msgs, e.Error())
	}
	if len(msgs) == 0 {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

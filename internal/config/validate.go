// CUE schema validation code
package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaSource []byte

// ValidateWithCue validates YAML configuration bytes against the embedded #Config schema.
// name is only used in error positions.
func ValidateWithCue(name string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if schema.Err() != nil {
		return fmt.Errorf("compile CUE schema: %w", schema.Err())
	}

	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("cannot read YAML config: %w", err)
	}
	configVal := ctx.BuildFile(file)
	if configVal.Err() != nil {
		return fmt.Errorf("cannot build YAML config: %w", configVal.Err())
	}

	final := schema.LookupPath(cue.ParsePath("#Config")).Unify(configVal)
	if err := final.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

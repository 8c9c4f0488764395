package compiler

import (
	_ "embed"

	"cuelang.org/go/cue"
)

//go:embed schema.cue
var schemaSource string

// Schema compiles the embedded project schema in ctx. It defines
// #Project and #Tiers.
func Schema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

// unifyWith checks v against the named schema definition and returns the
// unified, concrete value.
func unifyWith(v cue.Value, definition string) (cue.Value, error) {
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	schema, err := Schema(v.Context())
	if err != nil {
		return cue.Value{}, err
	}
	u := schema.LookupPath(cue.ParsePath(definition)).Unify(v)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return u, nil
}

package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/tier"
)

// Bundle is what one CUE value declares: project definitions in
// declaration order and an optional tier table.
//
//	project: alpha: { ... }
//	project: beta: { ... }
//	tiers: { Tier1: { ... } }
type Bundle struct {
	Projects []ido.Definition
	Tiers    *tier.Config
}

// CompileBundle compiles the top-level project and tiers fields of v.
// With failFast the first error is returned alone; otherwise every
// project is attempted and all errors are collected.
func CompileBundle(v cue.Value, failFast bool) (*Bundle, []error) {
	b := &Bundle{}
	var errs []error

	if projects := v.LookupPath(cue.ParsePath("project")); projects.Exists() {
		iter, err := projects.Fields()
		if err != nil {
			return b, []error{formatCUEError(err)}
		}
		for iter.Next() {
			def, err := CompileProject(iter.Value())
			if err != nil {
				errs = append(errs, fmt.Errorf("project.%s: %w", iter.Label(), err))
				if failFast {
					return b, errs
				}
				continue
			}
			b.Projects = append(b.Projects, *def)
		}
	}

	if tiers := v.LookupPath(cue.ParsePath("tiers")); tiers.Exists() {
		cfg, err := CompileTiers(tiers)
		if err != nil {
			errs = append(errs, fmt.Errorf("tiers: %w", err))
			if failFast {
				return b, errs
			}
		} else {
			b.Tiers = &cfg
		}
	}
	return b, errs
}

// CompileFile reads one CUE file and compiles it as a bundle, failing fast.
func CompileFile(path string) (*Bundle, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	v := cuecontext.New().CompileBytes(src, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	b, errs := CompileBundle(v, true)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return b, nil
}

package compiler

import (
	"fmt"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/idocore/internal/ido"
)

// CompileProject parses a CUE value into a project Definition.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the project struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`project: alpha: { ... }`)
//	def, err := CompileProject(v.LookupPath(cue.ParsePath("project.alpha")))
//
// Without an explicit name field the struct label names the project.
func CompileProject(v cue.Value) (*ido.Definition, error) {
	u, err := unifyWith(v, "#Project")
	if err != nil {
		return nil, err
	}

	def := &ido.Definition{}

	if nameVal := u.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		if def.Name, err = nameVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
	} else if labels := v.Path().Selectors(); len(labels) > 0 {
		def.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}
	if def.Name == "" {
		return nil, &CompileError{Field: "name", Message: "project name is required", Pos: v.Pos()}
	}

	times := []struct {
		field string
		dst   *time.Time
	}{
		{"whitelist_start", &def.WhitelistStart},
		{"whitelist_end", &def.WhitelistEnd},
		{"sale_start", &def.SaleStart},
		{"sale_end", &def.SaleEnd},
	}
	for _, t := range times {
		if *t.dst, err = timeField(u, t.field); err != nil {
			return nil, err
		}
	}

	if def.TokenRaisedAmount, err = stringField(u, "token_raised_amount"); err != nil {
		return nil, err
	}
	if def.TokenSaleRate.Numerator, err = uintField(u, "token_sale_rate.numerator"); err != nil {
		return nil, err
	}
	if def.TokenSaleRate.Denominator, err = uintField(u, "token_sale_rate.denominator"); err != nil {
		return nil, err
	}

	if def.Gate, err = parseGate(u.LookupPath(cue.ParsePath("gate"))); err != nil {
		return nil, err
	}
	if def.Sale, err = parseSale(u.LookupPath(cue.ParsePath("sale"))); err != nil {
		return nil, err
	}
	return def, nil
}

// parseGate extracts the whitelist gate. The schema has already picked the
// variant, so only the fields of that variant are read.
func parseGate(v cue.Value) (ido.GateConfig, error) {
	kind, err := stringField(v, "kind")
	if err != nil {
		return ido.GateConfig{}, err
	}
	gate := ido.GateConfig{Kind: kind}
	if kind == ido.GateKindBalance {
		if gate.MinBalance, err = stringField(v, "min_balance"); err != nil {
			return ido.GateConfig{}, err
		}
	}
	return gate, nil
}

// parseSale extracts the sale model.
func parseSale(v cue.Value) (ido.SaleConfig, error) {
	kind, err := stringField(v, "kind")
	if err != nil {
		return ido.SaleConfig{}, err
	}
	sale := ido.SaleConfig{Kind: kind}
	switch kind {
	case ido.SaleKindShared:
		if sale.Min, err = stringField(v, "min"); err != nil {
			return ido.SaleConfig{}, err
		}
		if sale.Max, err = stringField(v, "max"); err != nil {
			return ido.SaleConfig{}, err
		}
	case ido.SaleKindLottery:
		if sale.UnitPrice, err = stringField(v, "unit_price"); err != nil {
			return ido.SaleConfig{}, err
		}
		if sale.TotalTickets, err = uintField(v, "total_tickets"); err != nil {
			return ido.SaleConfig{}, err
		}
	}
	return sale, nil
}

func stringField(v cue.Value, path string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", &CompileError{Field: path, Message: "field is required", Pos: v.Pos()}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func uintField(v cue.Value, path string) (uint64, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return 0, &CompileError{Field: path, Message: "field is required", Pos: v.Pos()}
	}
	n, err := f.Uint64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

func timeField(v cue.Value, path string) (time.Time, error) {
	s, err := stringField(v, path)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("not an RFC 3339 time: %q", s),
			Pos:     v.LookupPath(cue.ParsePath(path)).Pos(),
		}
	}
	return t.UTC(), nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

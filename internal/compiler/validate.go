package compiler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/tier"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedType = "E100" // unsupported value type for validation

	// Project definition errors (E101-E109)
	ErrProjectNameEmpty    = "E101" // name is required
	ErrProjectWindowMissed = "E102" // a phase boundary is missing
	ErrProjectWindowOrder  = "E103" // phase boundaries out of order
	ErrProjectRaisedAmount = "E104" // token raised amount missing or zero
	ErrProjectRate         = "E105" // invalid sale rate
	ErrProjectGate         = "E106" // invalid whitelist gate
	ErrProjectSale         = "E107" // invalid sale model
	ErrProjectEconomics    = "E108" // lottery tickets do not fit the raise
	ErrDuplicateName       = "E109" // two projects with one name

	// Tier table errors (E110-E119)
	ErrTiersEmpty    = "E110" // no tier defined
	ErrTierDuplicate = "E111" // tier defined twice
	ErrTierMinPoint  = "E112" // min point not an amount
	ErrTierOrder     = "E113" // higher tier with a lower threshold
	ErrTierStaircase = "E114" // staircase steps out of order
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a compiled definition or tier table.
// Returns all errors found (does not fail-fast).
// Supports ido.Definition, []ido.Definition and tier.Config.
func Validate(v any) []ValidationError {
	switch v := v.(type) {
	case *ido.Definition:
		return validateDefinition(v)
	case ido.Definition:
		return validateDefinition(&v)
	case []ido.Definition:
		return validateDefinitions(v)
	case *tier.Config:
		return validateTiers(v)
	case tier.Config:
		return validateTiers(&v)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

// validateDefinition checks one project definition.
func validateDefinition(def *ido.Definition) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	// E101: name is required
	if strings.TrimSpace(def.Name) == "" {
		add("name", ErrProjectNameEmpty, "project name is required")
	}

	// E102/E103: the four boundaries exist and are ordered
	bounds := []struct {
		field string
		zero  bool
	}{
		{"whitelist_start", def.WhitelistStart.IsZero()},
		{"whitelist_end", def.WhitelistEnd.IsZero()},
		{"sale_start", def.SaleStart.IsZero()},
		{"sale_end", def.SaleEnd.IsZero()},
	}
	complete := true
	for _, b := range bounds {
		if b.zero {
			add(b.field, ErrProjectWindowMissed, "%s is required", b.field)
			complete = false
		}
	}
	if complete {
		if def.WhitelistEnd.Before(def.WhitelistStart) {
			add("whitelist_end", ErrProjectWindowOrder, "whitelist end precedes whitelist start")
		}
		if def.SaleStart.Before(def.WhitelistEnd) {
			add("sale_start", ErrProjectWindowOrder, "sale start precedes whitelist end")
		}
		if def.SaleEnd.Before(def.SaleStart) {
			add("sale_end", ErrProjectWindowOrder, "sale end precedes sale start")
		}
	}

	// E104: token raised amount
	raised, err := ido.ParseAmount(def.TokenRaisedAmount)
	switch {
	case err != nil:
		add("token_raised_amount", ErrProjectRaisedAmount, "%v", err)
	case !raised.IsPositive():
		add("token_raised_amount", ErrProjectRaisedAmount, "token raised amount must be positive")
	}

	// E105: rate
	if err := def.TokenSaleRate.Validate(); err != nil {
		add("token_sale_rate", ErrProjectRate, "%s", messageOf(err))
	}

	// E106: gate
	if gate, err := def.Gate.Gate(); err != nil {
		add(fieldOf(err, "gate"), ErrProjectGate, "%s", messageOf(err))
	} else if err := ido.ValidateGate(gate); err != nil {
		add(fieldOf(err, "gate"), ErrProjectGate, "%s", messageOf(err))
	}

	// E107: sale model
	if sale, err := def.Sale.Model(); err != nil {
		add(fieldOf(err, "sale"), ErrProjectSale, "%s", messageOf(err))
	} else if err := ido.ValidateSale(sale); err != nil {
		add(fieldOf(err, "sale"), ErrProjectSale, "%s", messageOf(err))
	}

	// E108: the remaining cross-field rules, once everything else holds
	if len(errs) == 0 {
		p, err := def.Project()
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			add(fieldOf(err, "sale"), ErrProjectEconomics, "%s", messageOf(err))
		}
	}

	return errs
}

// validateDefinitions checks each definition and that names are unique.
func validateDefinitions(defs []ido.Definition) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(defs))
	for i := range defs {
		for _, e := range validateDefinition(&defs[i]) {
			e.Field = fmt.Sprintf("projects[%d].%s", i, e.Field)
			errs = append(errs, e)
		}
		// E109: duplicate project name
		name := strings.TrimSpace(defs[i].Name)
		if name != "" && seen[name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("projects[%d].name", i),
				Message: fmt.Sprintf("duplicate project name: %q", name),
				Code:    ErrDuplicateName,
			})
		}
		seen[name] = true
	}
	return errs
}

// validateTiers checks a tier table.
func validateTiers(cfg *tier.Config) []ValidationError {
	var errs []ValidationError

	// E110: at least one tier
	if len(cfg.Levels) == 0 {
		return []ValidationError{{
			Field:   "levels",
			Message: "at least one tier is required",
			Code:    ErrTiersEmpty,
		}}
	}

	type threshold struct {
		tier  tier.Tier
		point ido.Amount
	}
	var thresholds []threshold
	seen := make(map[tier.Tier]bool, len(cfg.Levels))

	for i, l := range cfg.Levels {
		// E111: duplicate tier
		if seen[l.Tier] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("levels[%d].tier", i),
				Message: fmt.Sprintf("duplicate tier: %s", l.Tier),
				Code:    ErrTierDuplicate,
			})
		}
		seen[l.Tier] = true

		// E112: min point
		point, err := ido.ParseAmount(l.MinPoint)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("levels[%d].min_point", i),
				Message: fmt.Sprintf("%s: %v", l.Tier, err),
				Code:    ErrTierMinPoint,
			})
		} else {
			thresholds = append(thresholds, threshold{tier: l.Tier, point: point})
		}

		// E114: staircases ordered by days
		errs = append(errs, validateStaircase(l.Tickets, fmt.Sprintf("levels[%d].tickets", i))...)
		errs = append(errs, validateStaircase(l.Allocations, fmt.Sprintf("levels[%d].allocations", i))...)
	}

	// E113: thresholds rise with the tier
	sort.SliceStable(thresholds, func(i, j int) bool { return thresholds[i].tier < thresholds[j].tier })
	for i := 1; i < len(thresholds); i++ {
		prev, cur := thresholds[i-1], thresholds[i]
		if prev.tier != cur.tier && cur.point.LT(prev.point) {
			errs = append(errs, ValidationError{
				Field:   "levels",
				Message: fmt.Sprintf("%s threshold %s is below %s threshold %s", cur.tier, cur.point, prev.tier, prev.point),
				Code:    ErrTierOrder,
			})
		}
	}

	return errs
}

func validateStaircase(steps []tier.Step, field string) []ValidationError {
	var errs []ValidationError
	for i := 1; i < len(steps); i++ {
		if steps[i].Days <= steps[i-1].Days {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s[%d].days", field, i),
				Message: "steps must be ordered by strictly increasing days",
				Code:    ErrTierStaircase,
			})
		}
	}
	return errs
}

// fieldOf returns the field an ido.Error names, or fallback.
func fieldOf(err error, fallback string) string {
	var e *ido.Error
	if errors.As(err, &e) {
		if f := e.Details["field"]; f != "" {
			return f
		}
	}
	return fallback
}

// messageOf returns an ido.Error's message without its code prefix.
func messageOf(err error) string {
	var e *ido.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

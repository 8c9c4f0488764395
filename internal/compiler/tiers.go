package compiler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/idocore/internal/tier"
)

// CompileTiers parses a CUE tier table into a tier.Config.
//
// The value maps tier labels to their thresholds and staircases:
//
//	tiers: {
//		Tier1: {min_point: "100", tickets: [{days: 0, count: 1}]}
//		Tier2: {min_point: "1000", tickets: [{days: 0, count: 12}]}
//	}
//
// Levels are returned ordered by tier.
func CompileTiers(v cue.Value) (tier.Config, error) {
	u, err := unifyWith(v, "#Tiers")
	if err != nil {
		return tier.Config{}, err
	}

	iter, err := u.Fields()
	if err != nil {
		return tier.Config{}, formatCUEError(err)
	}

	var cfg tier.Config
	for iter.Next() {
		label := iter.Label()
		n, err := strconv.Atoi(strings.TrimPrefix(label, "Tier"))
		if err != nil {
			return tier.Config{}, &CompileError{
				Field:   label,
				Message: "tier label must be Tier<number>",
				Pos:     iter.Value().Pos(),
			}
		}

		level := tier.Level{Tier: tier.Tier(n)}
		if level.MinPoint, err = stringField(iter.Value(), "min_point"); err != nil {
			return tier.Config{}, err
		}
		if level.Tickets, err = parseSteps(iter.Value(), label+".tickets", "tickets"); err != nil {
			return tier.Config{}, err
		}
		if level.Allocations, err = parseSteps(iter.Value(), label+".allocations", "allocations"); err != nil {
			return tier.Config{}, err
		}
		cfg.Levels = append(cfg.Levels, level)
	}

	sort.Slice(cfg.Levels, func(i, j int) bool { return cfg.Levels[i].Tier < cfg.Levels[j].Tier })
	return cfg, nil
}

// parseSteps reads a staircase list.
func parseSteps(v cue.Value, field, path string) ([]tier.Step, error) {
	list := v.LookupPath(cue.ParsePath(path))
	if !list.Exists() {
		return nil, nil
	}
	iter, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var steps []tier.Step
	for i := 0; iter.Next(); i++ {
		days, err := uintField(iter.Value(), "days")
		if err != nil {
			return nil, err
		}
		count, err := uintField(iter.Value(), "count")
		if err != nil {
			return nil, err
		}
		if days > uint64(^uint32(0)) {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d].days", field, i),
				Message: "days out of range",
				Pos:     iter.Value().Pos(),
			}
		}
		steps = append(steps, tier.Step{Days: uint32(days), Count: count})
	}
	return steps, nil
}

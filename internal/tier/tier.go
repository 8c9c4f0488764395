// Package tier maps staking positions to tiers and lottery eligibility.
//
// A position's point grows with both the locked amount and the time it is
// locked for: point = amount * lockedDuration / PointPeriod. The highest
// tier whose MinPoint is at or below the point wins, and each tier carries
// a staircase of (locked days, tickets) steps.
package tier

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/roach88/idocore/internal/ido"
)

// PointPeriod is the locking period that turns an amount into an equal
// number of points.
const PointPeriod = 360 * 24 * time.Hour

// DefaultTokenDecimals is the decimals of the staking token the default
// thresholds are scaled by.
const DefaultTokenDecimals = 8

// Tier is a staking tier, Tier0 being the lowest.
type Tier int

const (
	Tier0 Tier = iota
	Tier1
	Tier2
	Tier3
	Tier4
)

func (t Tier) String() string {
	return fmt.Sprintf("Tier%d", int(t))
}

// Step is one point of a staircase: from Days locked days on, Count applies.
type Step struct {
	Days  uint32 `json:"days" yaml:"days" mapstructure:"days"`
	Count uint64 `json:"count" yaml:"count" mapstructure:"count"`
}

// Level configures one tier.
type Level struct {
	Tier        Tier   `json:"tier" yaml:"tier" mapstructure:"tier"`
	MinPoint    string `json:"min_point" yaml:"min_point" mapstructure:"min_point"`
	Tickets     []Step `json:"tickets" yaml:"tickets" mapstructure:"tickets"`
	Allocations []Step `json:"allocations" yaml:"allocations" mapstructure:"allocations"`
}

// Config is the full tier table.
type Config struct {
	Levels []Level `json:"levels" yaml:"levels" mapstructure:"levels"`
}

// DefaultConfig returns the stock tier table with thresholds scaled to a
// token with the given decimals.
func DefaultConfig(decimals uint8) Config {
	level := func(t Tier, minPoint, tickets, allocations uint64) Level {
		return Level{
			Tier:        t,
			MinPoint:    ido.Scaled(minPoint, decimals).String(),
			Tickets:     []Step{{Days: 0, Count: tickets}},
			Allocations: []Step{{Days: 0, Count: allocations}},
		}
	}
	return Config{Levels: []Level{
		level(Tier0, 0, 0, 0),
		level(Tier1, 100, 1, 0),
		level(Tier2, 1000, 12, 0),
		level(Tier3, 5000, 100, 0),
		level(Tier4, 10000, 100, 1),
	}}
}

// Stake is a staking position as reported by the staking service.
// Point may be empty, in which case it is derived from the other fields.
type Stake struct {
	LockedAmount   ido.Amount
	LockedDuration time.Duration
	Point          ido.Amount
}

// Info is the evaluation of a Stake.
type Info struct {
	Tier        Tier
	Point       ido.Amount
	LockedDays  uint32
	Tickets     uint64
	Allocations uint64
}

type level struct {
	tier        Tier
	minPoint    ido.Amount
	tickets     []Step
	allocations []Step
}

// Engine evaluates stakes against a validated Config.
type Engine struct {
	levels []level // sorted by minPoint, descending
}

// New validates cfg and returns an Engine for it.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Levels) == 0 {
		return nil, ido.NewInvalidArgument("tiers", "at least one tier is required")
	}
	seen := make(map[Tier]bool, len(cfg.Levels))
	levels := make([]level, 0, len(cfg.Levels))
	for _, l := range cfg.Levels {
		if seen[l.Tier] {
			return nil, ido.NewInvalidArgument("tiers", fmt.Sprintf("duplicate %s", l.Tier))
		}
		seen[l.Tier] = true
		minPoint, err := ido.ParseAmount(l.MinPoint)
		if err != nil {
			return nil, ido.NewInvalidArgument("tiers.min_point", fmt.Sprintf("%s: %v", l.Tier, err))
		}
		levels = append(levels, level{
			tier:        l.Tier,
			minPoint:    minPoint,
			tickets:     l.Tickets,
			allocations: l.Allocations,
		})
	}
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].minPoint.GT(levels[j].minPoint)
	})
	return &Engine{levels: levels}, nil
}

// Point computes amount * locked / PointPeriod, truncated.
func Point(amount ido.Amount, locked time.Duration) ido.Amount {
	if amount.IsNil() || locked <= 0 {
		return ido.ZeroAmount()
	}
	return ido.MulDiv(amount, ido.NewAmount(uint64(locked)), ido.NewAmount(uint64(PointPeriod)))
}

// LockedDays converts a duration into whole days, saturating.
func LockedDays(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	days := d / (24 * time.Hour)
	if days > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(days)
}

// TierOf returns the highest tier whose threshold point reaches.
// Points below every threshold map to Tier0.
func (e *Engine) TierOf(point ido.Amount) Tier {
	if point.IsNil() {
		return Tier0
	}
	for _, l := range e.levels {
		if point.GTE(l.minPoint) {
			return l.tier
		}
	}
	return Tier0
}

// Evaluate derives the tier, tickets and allocations of a stake.
func (e *Engine) Evaluate(s Stake) Info {
	point := s.Point
	if point.IsNil() || point.IsZero() {
		point = Point(s.LockedAmount, s.LockedDuration)
	}
	days := LockedDays(s.LockedDuration)
	info := Info{Tier: Tier0, Point: point, LockedDays: days}

	for _, l := range e.levels {
		if point.GTE(l.minPoint) {
			info.Tier = l.tier
			info.Tickets = staircase(l.tickets, days)
			info.Allocations = staircase(l.allocations, days)
			break
		}
	}
	return info
}

// staircase returns the largest count among steps reached by days.
func staircase(steps []Step, days uint32) uint64 {
	var best uint64
	for _, s := range steps {
		if s.Days <= days && s.Count > best {
			best = s.Count
		}
	}
	return best
}

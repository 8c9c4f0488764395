package ido

import (
	"fmt"
	"strings"
	"time"
)

// Status is a project's lifecycle phase.
// Phases only move forward: Preparation, Whitelist, Sales, Distribution.
type Status int

const (
	StatusPreparation Status = iota
	StatusWhitelist
	StatusSales
	StatusDistribution
)

var statusNames = [...]string{"Preparation", "Whitelist", "Sales", "Distribution"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus parses a status name, case-insensitively.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Status(i), nil
		}
	}
	return 0, NewInvalidArgument("status", fmt.Sprintf("unknown status %q", name))
}

// Next returns the status that follows s. Distribution has no successor.
func (s Status) Next() (Status, bool) {
	if s >= StatusDistribution || s < StatusPreparation {
		return s, false
	}
	return s + 1, true
}

// CheckTransition validates moving p to target at time now. It does not
// mutate p.
//
// Only the edge to the immediate successor is legal. The time guards are:
//
//	Preparation -> Whitelist:  whitelistStart <= now <= whitelistEnd
//	Whitelist   -> Sales:      now >= whitelistEnd
//	Sales       -> Distribution: now > saleEnd
func CheckTransition(p *Project, target Status, now time.Time) error {
	next, ok := p.Status.Next()
	if !ok || target != next {
		return NewInvalidTransition(p.Status, target)
	}

	switch target {
	case StatusWhitelist:
		if !p.InWhitelistPeriod(now) {
			return NewNotInPeriod(fmt.Sprintf("whitelist window is %s to %s",
				p.WhitelistStart.UTC().Format(time.RFC3339), p.WhitelistEnd.UTC().Format(time.RFC3339)))
		}
	case StatusSales:
		if now.Before(p.WhitelistEnd) {
			return NewNotInPeriod(fmt.Sprintf("whitelist period has not ended (end %s)",
				p.WhitelistEnd.UTC().Format(time.RFC3339)))
		}
	case StatusDistribution:
		if !now.After(p.SaleEnd) {
			return NewNotInPeriod(fmt.Sprintf("sale period has not ended (end %s)",
				p.SaleEnd.UTC().Format(time.RFC3339)))
		}
	}
	return nil
}

// ReadyToAdvance reports whether p can move to its next status at now.
func ReadyToAdvance(p *Project, now time.Time) (Status, bool) {
	next, ok := p.Status.Next()
	if !ok {
		return p.Status, false
	}
	return next, CheckTransition(p, next, now) == nil
}

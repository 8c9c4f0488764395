package ido

import "sort"

// Ticket is one TicketLedger entry.
type Ticket struct {
	ID      uint64
	Account string
	Winning bool
}

// SelectWinners scans tickets in ascending id order and returns the ids
// that become winners. At most min(issued, slots) tickets win in total;
// tickets already marked count against that limit and are never returned
// again, so running the sweep twice marks nothing new.
func SelectWinners(tickets []Ticket, issued, slots uint64) []uint64 {
	limit := issued
	if slots < limit {
		limit = slots
	}

	ordered := make([]Ticket, len(tickets))
	copy(ordered, tickets)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var won uint64
	for _, t := range ordered {
		if t.Winning {
			won++
		}
	}
	if won >= limit {
		return nil
	}

	remaining := limit - won
	winners := make([]uint64, 0, remaining)
	for _, t := range ordered {
		if remaining == 0 {
			break
		}
		if t.Winning {
			continue
		}
		winners = append(winners, t.ID)
		remaining--
	}
	return winners
}

// GroupByOwner maps winning ids back to their owners, preserving id order.
func GroupByOwner(tickets []Ticket, ids []uint64) map[string][]uint64 {
	owner := make(map[uint64]string, len(tickets))
	for _, t := range tickets {
		owner[t.ID] = t.Account
	}
	out := make(map[string][]uint64)
	for _, id := range ids {
		if acc, ok := owner[id]; ok {
			out[acc] = append(out[acc], id)
		}
	}
	return out
}

package allocation

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/idocore/internal/ido"
)

// Asset distinguishes the raised fund from the sold token.
type Asset string

const (
	AssetFund  Asset = "fund"
	AssetToken Asset = "token"
)

// Transfer moves Amount of Asset to Recipient.
type Transfer struct {
	ProjectID ido.ProjectID `json:"project_id"`
	Recipient string        `json:"recipient"`
	Asset     Asset         `json:"asset"`
	Amount    ido.Amount    `json:"amount"`
	Memo      string        `json:"memo"`
}

// Settlement moves tokens and funds. A transfer either happens or fails;
// there is no partial outcome.
type Settlement interface {
	Transfer(ctx context.Context, t Transfer) error
}

// Ledger is an in-memory Settlement that records every transfer.
type Ledger struct {
	mu        sync.Mutex
	transfers []Transfer
	failing   map[string]bool
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{failing: make(map[string]bool)}
}

// Transfer records t, or fails if the recipient was marked failing.
func (l *Ledger) Transfer(_ context.Context, t Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failing[t.Recipient] {
		return fmt.Errorf("transfer to %s rejected", t.Recipient)
	}
	l.transfers = append(l.transfers, t)
	return nil
}

// FailFor makes transfers to recipient fail until cleared.
func (l *Ledger) FailFor(recipient string, fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if fail {
		l.failing[recipient] = true
	} else {
		delete(l.failing, recipient)
	}
}

// Transfers returns a copy of the recorded transfers.
func (l *Ledger) Transfers() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transfer, len(l.transfers))
	copy(out, l.transfers)
	return out
}

// Balance sums what recipient has received of asset.
func (l *Ledger) Balance(recipient string, asset Asset) ido.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := ido.ZeroAmount()
	for _, t := range l.transfers {
		if t.Recipient == recipient && t.Asset == asset {
			total = total.Add(t.Amount)
		}
	}
	return total
}

package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/idocore/internal/ido"
)

// Records are stored as JSON TEXT. Amounts are decimal strings so that
// values above 2^53 survive every driver and JSON decoder on the way.

type saleRecordJSON struct {
	Committed        string   `json:"committed"`
	Kind             string   `json:"kind"`
	EligibleTickets  uint64   `json:"eligible_tickets,omitempty"`
	DepositedTickets uint64   `json:"deposited_tickets,omitempty"`
	TicketIDs        []uint64 `json:"ticket_ids,omitempty"`
	WinningTicketIDs []uint64 `json:"winning_ticket_ids,omitempty"`
}

type distributionRecordJSON struct {
	Unlocked   string `json:"unlocked"`
	Locked     string `json:"locked"`
	Claimed    string `json:"claimed"`
	Refundable string `json:"refundable"`
	Refunded   string `json:"refunded"`
}

type accountRecordJSON struct {
	Sale         *saleRecordJSON         `json:"sale,omitempty"`
	Distribution *distributionRecordJSON `json:"distribution,omitempty"`
}

// MarshalAccount encodes the sale and distribution records of a.
func MarshalAccount(a *ido.ProjectAccount) (string, error) {
	var rec accountRecordJSON
	if a.Sale != nil {
		s := &saleRecordJSON{Committed: a.Committed().String(), Kind: ido.SaleKindShared}
		if d, ok := a.Lottery(); ok {
			s.Kind = ido.SaleKindLottery
			s.EligibleTickets = d.EligibleTickets
			s.DepositedTickets = d.DepositedTickets
			s.TicketIDs = d.TicketIDs
			s.WinningTicketIDs = d.WinningTicketIDs
		}
		rec.Sale = s
	}
	if d := a.Distribution; d != nil {
		rec.Distribution = &distributionRecordJSON{
			Unlocked:   amountString(d.Unlocked),
			Locked:     amountString(d.Locked),
			Claimed:    amountString(d.Claimed),
			Refundable: amountString(d.Refundable),
			Refunded:   amountString(d.Refunded),
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal account: %w", err)
	}
	return string(data), nil
}

// UnmarshalAccount decodes a record written by MarshalAccount.
func UnmarshalAccount(id ido.ProjectID, account, data string) (*ido.ProjectAccount, error) {
	var rec accountRecordJSON
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	a := &ido.ProjectAccount{ProjectID: id, Account: account}

	if s := rec.Sale; s != nil {
		committed, err := ido.ParseAmount(s.Committed)
		if err != nil {
			return nil, fmt.Errorf("unmarshal account: committed: %w", err)
		}
		var data ido.SaleData = ido.SharedData{}
		if s.Kind == ido.SaleKindLottery {
			data = &ido.LotteryData{
				EligibleTickets:  s.EligibleTickets,
				DepositedTickets: s.DepositedTickets,
				TicketIDs:        s.TicketIDs,
				WinningTicketIDs: s.WinningTicketIDs,
			}
		}
		a.Sale = &ido.SaleRecord{Committed: committed, Data: data}
	}

	if d := rec.Distribution; d != nil {
		var amounts [5]ido.Amount
		for i, s := range []string{d.Unlocked, d.Locked, d.Claimed, d.Refundable, d.Refunded} {
			v, err := ido.ParseAmount(s)
			if err != nil {
				return nil, fmt.Errorf("unmarshal account: distribution: %w", err)
			}
			amounts[i] = v
		}
		a.Distribution = &ido.DistributionRecord{
			Unlocked:   amounts[0],
			Locked:     amounts[1],
			Claimed:    amounts[2],
			Refundable: amounts[3],
			Refunded:   amounts[4],
		}
	}
	return a, nil
}

// MarshalGate encodes a gate as JSON TEXT.
func MarshalGate(g ido.Gate) (string, error) {
	data, err := json.Marshal(ido.GateConfigOf(g))
	if err != nil {
		return "", fmt.Errorf("marshal gate: %w", err)
	}
	return string(data), nil
}

// UnmarshalGate decodes a gate written by MarshalGate.
func UnmarshalGate(data string) (ido.Gate, error) {
	var c ido.GateConfig
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("unmarshal gate: %w", err)
	}
	return c.Gate()
}

// MarshalSale encodes a sale model as JSON TEXT.
func MarshalSale(m ido.SaleModel) (string, error) {
	data, err := json.Marshal(ido.SaleConfigOf(m))
	if err != nil {
		return "", fmt.Errorf("marshal sale: %w", err)
	}
	return string(data), nil
}

// UnmarshalSale decodes a sale model written by MarshalSale.
func UnmarshalSale(data string) (ido.SaleModel, error) {
	var c ido.SaleConfig
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("unmarshal sale: %w", err)
	}
	return c.Model()
}

// MarshalRate encodes a rate as JSON TEXT.
func MarshalRate(r ido.Rate) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal rate: %w", err)
	}
	return string(data), nil
}

// UnmarshalRate decodes a rate written by MarshalRate.
func UnmarshalRate(data string) (ido.Rate, error) {
	var r ido.Rate
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return ido.Rate{}, fmt.Errorf("unmarshal rate: %w", err)
	}
	return r, nil
}

func amountString(a ido.Amount) string {
	if a.IsNil() {
		return "0"
	}
	return a.String()
}

// ProjectRow is the column form of a project, shared by the SQL backends.
// Times are UTC unix nanoseconds.
type ProjectRow struct {
	ID                 int64
	Name               string
	WhitelistStart     int64
	WhitelistEnd       int64
	SaleStart          int64
	SaleEnd            int64
	TokenRaisedAmount  string
	TokenSaleRate      string
	TotalFundCommitted string
	Status             int
	Gate               string
	Sale               string
	TicketCounter      int64
	DistributionDust   string
}

// EncodeProject converts p into its column form.
func EncodeProject(p *ido.Project) (ProjectRow, error) {
	rate, err := MarshalRate(p.TokenSaleRate)
	if err != nil {
		return ProjectRow{}, err
	}
	gate, err := MarshalGate(p.Gate)
	if err != nil {
		return ProjectRow{}, err
	}
	sale, err := MarshalSale(p.Sale)
	if err != nil {
		return ProjectRow{}, err
	}
	return ProjectRow{
		ID:                 int64(p.ID),
		Name:               p.Name,
		WhitelistStart:     p.WhitelistStart.UnixNano(),
		WhitelistEnd:       p.WhitelistEnd.UnixNano(),
		SaleStart:          p.SaleStart.UnixNano(),
		SaleEnd:            p.SaleEnd.UnixNano(),
		TokenRaisedAmount:  amountString(p.TokenRaisedAmount),
		TokenSaleRate:      rate,
		TotalFundCommitted: amountString(p.TotalFundCommitted),
		Status:             int(p.Status),
		Gate:               gate,
		Sale:               sale,
		TicketCounter:      int64(p.TicketCounter),
		DistributionDust:   amountString(p.DistributionDust),
	}, nil
}

// Decode converts the column form back into a project.
func (r ProjectRow) Decode() (*ido.Project, error) {
	raised, err := ido.ParseAmount(r.TokenRaisedAmount)
	if err != nil {
		return nil, fmt.Errorf("decode project %d: token_raised_amount: %w", r.ID, err)
	}
	committed, err := ido.ParseAmount(r.TotalFundCommitted)
	if err != nil {
		return nil, fmt.Errorf("decode project %d: total_fund_committed: %w", r.ID, err)
	}
	dust, err := ido.ParseAmount(r.DistributionDust)
	if err != nil {
		return nil, fmt.Errorf("decode project %d: distribution_dust: %w", r.ID, err)
	}
	rate, err := UnmarshalRate(r.TokenSaleRate)
	if err != nil {
		return nil, fmt.Errorf("decode project %d: %w", r.ID, err)
	}
	gate, err := UnmarshalGate(r.Gate)
	if err != nil {
		return nil, fmt.Errorf("decode project %d: %w", r.ID, err)
	}
	sale, err := UnmarshalSale(r.Sale)
	if err != nil {
		return nil, fmt.Errorf("decode project %d: %w", r.ID, err)
	}
	return &ido.Project{
		ID:                 ido.ProjectID(r.ID),
		Name:               r.Name,
		WhitelistStart:     time.Unix(0, r.WhitelistStart).UTC(),
		WhitelistEnd:       time.Unix(0, r.WhitelistEnd).UTC(),
		SaleStart:          time.Unix(0, r.SaleStart).UTC(),
		SaleEnd:            time.Unix(0, r.SaleEnd).UTC(),
		TokenRaisedAmount:  raised,
		TokenSaleRate:      rate,
		TotalFundCommitted: committed,
		Status:             ido.Status(r.Status),
		Gate:               gate,
		Sale:               sale,
		TicketCounter:      uint64(r.TicketCounter),
		DistributionDust:   dust,
	}, nil
}

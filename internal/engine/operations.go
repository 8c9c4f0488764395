package engine

import (
	"context"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/resolver"
)

// Operation kinds.
const (
	KindCreateProject  = "create_project"
	KindAdvance        = "advance"
	KindRegister       = "register"
	KindResolve        = "resolve"
	KindGrantTickets   = "grant_tickets"
	KindRefreshTickets = "refresh_tickets"
	KindCommit         = "commit"
	KindClaim          = "claim"
	KindClaimRefund    = "claim_refund"
)

func init() {
	register(KindCreateProject, func() Operation { return &CreateProject{} })
	register(KindAdvance, func() Operation { return &Advance{} })
	register(KindRegister, func() Operation { return &Register{} })
	register(KindResolve, func() Operation { return &Resolve{} })
	register(KindGrantTickets, func() Operation { return &GrantTickets{} })
	register(KindRefreshTickets, func() Operation { return &RefreshTickets{} })
	register(KindCommit, func() Operation { return &Commit{} })
	register(KindClaim, func() Operation { return &Claim{} })
	register(KindClaimRefund, func() Operation { return &ClaimRefund{} })
}

// CreateProject stores a new project in Preparation.
type CreateProject struct {
	Definition ido.Definition `json:"definition"`
}

// Created is the result of CreateProject.
type Created struct {
	ProjectID ido.ProjectID `json:"project_id"`
}

func (CreateProject) Kind() string                    { return KindCreateProject }
func (CreateProject) Target() (ido.ProjectID, string) { return 0, "" }

func (o CreateProject) Apply(ctx context.Context, env Env) (any, error) {
	p, err := o.Definition.Project()
	if err != nil {
		return nil, err
	}
	id, err := env.Service.CreateProject(ctx, p)
	if err != nil {
		return nil, err
	}
	return Created{ProjectID: id}, nil
}

// Advance moves a project to To, or to its next status when To is empty.
type Advance struct {
	ProjectID ido.ProjectID `json:"project_id"`
	To        string        `json:"target,omitempty"`
}

func (Advance) Kind() string                      { return KindAdvance }
func (o Advance) Target() (ido.ProjectID, string) { return o.ProjectID, "" }

func (o Advance) Apply(ctx context.Context, env Env) (any, error) {
	var target *ido.Status
	if o.To != "" {
		s, err := ido.ParseStatus(o.To)
		if err != nil {
			return nil, err
		}
		target = &s
	}
	return env.Service.Advance(ctx, env.Now, o.ProjectID, target)
}

// Register asks for a place on a project's roster.
type Register struct {
	ProjectID ido.ProjectID `json:"project_id"`
	Account   string        `json:"account"`
}

func (Register) Kind() string                      { return KindRegister }
func (o Register) Target() (ido.ProjectID, string) { return o.ProjectID, o.Account }

func (o Register) Apply(ctx context.Context, env Env) (any, error) {
	return env.Service.Register(ctx, env.Now, o.ProjectID, o.Account)
}

// Resolve delivers a staking service answer.
type Resolve struct {
	Resolution resolver.Resolution `json:"resolution"`
}

func (Resolve) Kind() string { return KindResolve }

func (o Resolve) Target() (ido.ProjectID, string) {
	return o.Resolution.Continuation.ProjectID, o.Resolution.Continuation.Account
}

func (o Resolve) Apply(ctx context.Context, env Env) (any, error) {
	return env.Service.Resolve(ctx, env.Now, o.Resolution)
}

// GrantTickets raises an account's lottery eligibility.
type GrantTickets struct {
	ProjectID ido.ProjectID `json:"project_id"`
	Account   string        `json:"account"`
	Count     uint64        `json:"count"`
}

// Granted is the result of GrantTickets.
type Granted struct {
	EligibleTickets uint64 `json:"eligible_tickets"`
}

func (GrantTickets) Kind() string                      { return KindGrantTickets }
func (o GrantTickets) Target() (ido.ProjectID, string) { return o.ProjectID, o.Account }

func (o GrantTickets) Apply(ctx context.Context, env Env) (any, error) {
	n, err := env.Service.GrantTickets(ctx, o.ProjectID, o.Account, o.Count)
	if err != nil {
		return nil, err
	}
	return Granted{EligibleTickets: n}, nil
}

// RefreshTickets recomputes an account's eligibility from its tier.
type RefreshTickets struct {
	ProjectID ido.ProjectID `json:"project_id"`
	Account   string        `json:"account"`
}

func (RefreshTickets) Kind() string                      { return KindRefreshTickets }
func (o RefreshTickets) Target() (ido.ProjectID, string) { return o.ProjectID, o.Account }

func (o RefreshTickets) Apply(ctx context.Context, env Env) (any, error) {
	return env.Service.RefreshTickets(ctx, o.ProjectID, o.Account)
}

// Commit contributes funds to a sale.
type Commit struct {
	ProjectID ido.ProjectID `json:"project_id"`
	Account   string        `json:"account"`
	Amount    ido.Amount    `json:"amount"`
}

func (Commit) Kind() string                      { return KindCommit }
func (o Commit) Target() (ido.ProjectID, string) { return o.ProjectID, o.Account }

func (o Commit) Apply(ctx context.Context, env Env) (any, error) {
	return env.Service.Commit(ctx, env.Now, o.ProjectID, o.Account, o.Amount)
}

// Claim transfers unlocked tokens.
type Claim struct {
	ProjectID ido.ProjectID `json:"project_id"`
	Account   string        `json:"account"`
	Amount    ido.Amount    `json:"amount"`
}

func (Claim) Kind() string                      { return KindClaim }
func (o Claim) Target() (ido.ProjectID, string) { return o.ProjectID, o.Account }

func (o Claim) Apply(ctx context.Context, env Env) (any, error) {
	return env.Service.Claim(ctx, o.ProjectID, o.Account, o.Amount)
}

// ClaimRefund returns refundable lottery deposits.
type ClaimRefund struct {
	ProjectID ido.ProjectID `json:"project_id"`
	Account   string        `json:"account"`
}

func (ClaimRefund) Kind() string                      { return KindClaimRefund }
func (o ClaimRefund) Target() (ido.ProjectID, string) { return o.ProjectID, o.Account }

func (o ClaimRefund) Apply(ctx context.Context, env Env) (any, error) {
	return env.Service.ClaimRefund(ctx, o.ProjectID, o.Account)
}

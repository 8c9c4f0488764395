package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/resolver"
	"github.com/roach88/idocore/internal/store"
	"github.com/roach88/idocore/internal/tier"
)

// IDGenerator produces query ids.
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Service implements the allocation operations.
type Service struct {
	store      store.Store
	dispatcher resolver.Dispatcher
	settlement Settlement
	tiers      *tier.Engine
	ids        IDGenerator
	log        logrus.FieldLogger
}

// Option configures a Service.
type Option func(*Service)

// WithDispatcher sets where staking queries go. Default: a Recorder.
func WithDispatcher(d resolver.Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithSettlement sets the token/fund settlement collaborator. Default: a Ledger.
func WithSettlement(st Settlement) Option {
	return func(s *Service) { s.settlement = st }
}

// WithTiers sets the tier engine. Default: the stock tier table.
func WithTiers(e *tier.Engine) Option {
	return func(s *Service) { s.tiers = e }
}

// WithIDGenerator sets the query id source. Default: UUIDv7.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

// New creates a Service over st.
func New(st store.Store, opts ...Option) (*Service, error) {
	s := &Service{
		store:      st,
		dispatcher: resolver.NewRecorder(),
		settlement: NewLedger(),
		ids:        uuidGenerator{},
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tiers == nil {
		e, err := tier.New(tier.DefaultConfig(tier.DefaultTokenDecimals))
		if err != nil {
			return nil, fmt.Errorf("default tiers: %w", err)
		}
		s.tiers = e
	}
	return s, nil
}

// Store returns the underlying store.
func (s *Service) Store() store.Store {
	return s.store
}

// Tiers returns the tier engine.
func (s *Service) Tiers() *tier.Engine {
	return s.tiers
}

func (s *Service) logFor(id ido.ProjectID, account string) logrus.FieldLogger {
	fields := logrus.Fields{"project_id": int64(id)}
	if account != "" {
		fields["account"] = account
	}
	return s.log.WithFields(fields)
}

// loadProject maps store.ErrNotFound to the domain NOT_FOUND error.
func loadProject(ctx context.Context, tx store.ReadTx, id ido.ProjectID) (*ido.Project, error) {
	p, err := tx.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ido.NewNotFound("project", id.String())
	}
	return p, err
}

func loadAccount(ctx context.Context, tx store.ReadTx, id ido.ProjectID, account string) (*ido.ProjectAccount, error) {
	a, err := tx.GetAccount(ctx, id, account)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ido.NewNotFound("account", account)
	}
	return a, err
}

// requireMember fails with NOT_WHITELISTED unless account is on the roster.
func requireMember(ctx context.Context, tx store.ReadTx, id ido.ProjectID, account string) error {
	in, err := tx.InRoster(ctx, id, account)
	if err != nil {
		return err
	}
	if !in {
		return ido.NewNotWhitelisted()
	}
	return nil
}

// CreateProject validates def and stores it in Preparation.
func (s *Service) CreateProject(ctx context.Context, def *ido.Project) (ido.ProjectID, error) {
	p := def.Clone()
	if err := p.Validate(); err != nil {
		return 0, err
	}
	p.Normalize()

	var id ido.ProjectID
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		id, err = tx.CreateProject(ctx, p)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("create project: %w", err)
	}
	s.logFor(id, "").WithFields(logrus.Fields{
		"gate": p.Gate.Kind(),
		"sale": p.Sale.Kind(),
	}).Info("project created")
	return id, nil
}

package allocation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/resolver"
	"github.com/roach88/idocore/internal/store/memory"
	"github.com/roach88/idocore/internal/tier"
)

var base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// Instants inside each window of testDefinition.
var (
	beforeWhitelist = base
	inWhitelist     = base.Add(90 * time.Minute)
	afterWhitelist  = base.Add(150 * time.Minute)
	inSale          = base.Add(210 * time.Minute)
	afterSale       = base.Add(5 * time.Hour)
)

type seqIDs struct{ n int }

func (g *seqIDs) Generate() string {
	g.n++
	return fmt.Sprintf("q-%d", g.n)
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	recorder *resolver.Recorder
	ledger   *Ledger
	logs     *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tiers, err := tier.New(tier.DefaultConfig(0))
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		store:    memory.New(),
		recorder: resolver.NewRecorder(),
		ledger:   NewLedger(),
		logs:     hook,
	}
	f.svc, err = New(f.store,
		WithDispatcher(f.recorder),
		WithSettlement(f.ledger),
		WithTiers(tiers),
		WithIDGenerator(&seqIDs{}),
		WithLogger(logger),
	)
	require.NoError(t, err)
	return f
}

// testDefinition has whitelist [base+1h, base+2h], sale [base+3h, base+4h],
// 1000 tokens at one fund unit per ten tokens.
func testDefinition(gate ido.Gate, sale ido.SaleModel) *ido.Project {
	return &ido.Project{
		Name:              "alpha",
		WhitelistStart:    base.Add(1 * time.Hour),
		WhitelistEnd:      base.Add(2 * time.Hour),
		SaleStart:         base.Add(3 * time.Hour),
		SaleEnd:           base.Add(4 * time.Hour),
		TokenRaisedAmount: ido.NewAmount(1000),
		TokenSaleRate:     ido.Rate{Numerator: 1, Denominator: 10},
		Gate:              gate,
		Sale:              sale,
	}
}

func sharedPool(lo, hi uint64) ido.SharedPool {
	return ido.SharedPool{Min: ido.NewAmount(lo), Max: ido.NewAmount(hi)}
}

func lottery(price, total uint64) ido.Lottery {
	return ido.Lottery{UnitPrice: ido.NewAmount(price), TotalTickets: total}
}

// create stores def and returns its id.
func (f *fixture) create(t *testing.T, def *ido.Project) ido.ProjectID {
	t.Helper()
	id, err := f.svc.CreateProject(context.Background(), def)
	require.NoError(t, err)
	return id
}

// toWhitelist creates def and opens its whitelist.
func (f *fixture) toWhitelist(t *testing.T, def *ido.Project) ido.ProjectID {
	t.Helper()
	id := f.create(t, def)
	_, err := f.svc.Advance(context.Background(), inWhitelist, id, nil)
	require.NoError(t, err)
	return id
}

func (f *fixture) register(t *testing.T, id ido.ProjectID, accounts ...string) {
	t.Helper()
	for _, a := range accounts {
		res, err := f.svc.Register(context.Background(), inWhitelist, id, a)
		require.NoError(t, err)
		require.True(t, res.Registered)
	}
}

func (f *fixture) advance(t *testing.T, id ido.ProjectID, now time.Time) AdvanceResult {
	t.Helper()
	res, err := f.svc.Advance(context.Background(), now, id, nil)
	require.NoError(t, err)
	return res
}

func (f *fixture) project(t *testing.T, id ido.ProjectID) ProjectView {
	t.Helper()
	v, err := f.svc.Project(context.Background(), id)
	require.NoError(t, err)
	return v
}

func (f *fixture) account(t *testing.T, id ido.ProjectID, account string) AccountView {
	t.Helper()
	v, err := f.svc.Account(context.Background(), id, account)
	require.NoError(t, err)
	return v
}

// stake returns a stake whose point is exactly point.
func stake(point uint64) tier.Stake {
	return tier.Stake{
		LockedAmount:   ido.NewAmount(point),
		LockedDuration: tier.PointPeriod,
		Point:          ido.NewAmount(point),
	}
}

func amt(v uint64) ido.Amount {
	return ido.NewAmount(v)
}

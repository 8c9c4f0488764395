package allocation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idocore/internal/ido"
)

func TestProjectView(t *testing.T) {
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.BalanceGate{MinBalance: amt(100)}, lottery(10, 5)))

	v := f.project(t, id)
	assert.Equal(t, id, v.ID)
	assert.Equal(t, "Whitelist", v.Status)
	assert.Equal(t, "100", v.HardCap.String())
	assert.Equal(t, "0.1", v.Price)
	assert.Equal(t, ido.GateConfig{Kind: ido.GateKindBalance, MinBalance: "100"}, v.Gate)
	assert.Equal(t, ido.SaleConfig{Kind: ido.SaleKindLottery, UnitPrice: "10", TotalTickets: 5}, v.Sale)
	assert.Equal(t, 0, v.RosterSize)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hard_cap":"100"`)
	assert.Contains(t, string(data), `"status":"Whitelist"`)

	_, err = f.svc.Project(context.Background(), 404)
	assert.True(t, ido.IsNotFound(err))
}

func TestListProjects_Paging(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var ids []ido.ProjectID
	for i := 0; i < 3; i++ {
		ids = append(ids, f.create(t, testDefinition(ido.OpenGate{}, sharedPool(10, 200))))
	}
	f.advance(t, ids[1], inWhitelist)

	all, err := f.svc.ListProjects(ctx, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := f.svc.ListProjects(ctx, nil, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[0], page[0].ID)

	page, err = f.svc.ListProjects(ctx, nil, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[2], page[0].ID)

	whitelist := ido.StatusWhitelist
	page, err = f.svc.ListProjects(ctx, &whitelist, 0, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)

	page, err = f.svc.ListProjects(ctx, nil, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = f.svc.ListProjects(ctx, nil, -1, 0)
	assert.True(t, ido.HasCode(err, ido.ErrCodeInvalidArgument))
}

func TestAccountView_Unknown(t *testing.T) {
	f := newFixture(t)
	id := f.toWhitelist(t, testDefinition(ido.OpenGate{}, sharedPool(10, 200)))

	_, err := f.svc.Account(context.Background(), id, "nobody")
	assert.True(t, ido.IsNotFound(err))
}

func TestCreateProject_Validates(t *testing.T) {
	f := newFixture(t)
	def := testDefinition(ido.OpenGate{}, sharedPool(10, 200))
	def.Name = ""

	_, err := f.svc.CreateProject(context.Background(), def)
	assert.True(t, ido.HasCode(err, ido.ErrCodeInvalidArgument))

	all, err := f.svc.ListProjects(context.Background(), nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

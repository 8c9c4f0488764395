package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/testutil"
	"github.com/roach88/idocore/internal/tier"
)

func codes(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidateDefinition_Valid(t *testing.T) {
	def := testutil.Definition("alpha", testutil.Open(), testutil.Shared("1", "100"))
	assert.Empty(t, Validate(def))
	assert.Empty(t, Validate(&def))
}

func TestValidateDefinition_CollectsAllErrors(t *testing.T) {
	def := testutil.Definition(" ", testutil.Balance("lots"), testutil.Shared("10", "5"))
	def.SaleEnd = def.SaleStart.Add(-1)
	def.TokenRaisedAmount = "0"
	def.TokenSaleRate = ido.Rate{Numerator: 1}

	errs := Validate(def)
	assert.Equal(t, []string{
		ErrProjectNameEmpty,
		ErrProjectWindowOrder,
		ErrProjectRaisedAmount,
		ErrProjectRate,
		ErrProjectGate,
		ErrProjectSale,
	}, codes(errs))
	assert.Equal(t, "gate.min_balance", errs[4].Field)
	assert.Equal(t, "sale.min", errs[5].Field)
}

func TestValidateDefinition_MissingBoundaries(t *testing.T) {
	def := testutil.Definition("alpha", testutil.Open(), testutil.Shared("1", "100"))
	def.WhitelistStart = time.Time{}
	def.SaleEnd = time.Time{}

	errs := Validate(def)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrProjectWindowMissed, errs[0].Code)
	assert.Equal(t, "whitelist_start", errs[0].Field)
	assert.Equal(t, "sale_end", errs[1].Field)
}

func TestValidateDefinition_LotteryEconomics(t *testing.T) {
	// 1000 tokens at 1/10 is 100 tokens per 10-unit ticket; 11 winners need 1100.
	def := testutil.Definition("lotto", testutil.Open(), testutil.Lottery("10", 11))
	errs := Validate(def)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrProjectEconomics, errs[0].Code)
	assert.Equal(t, "sale.total_tickets", errs[0].Field)

	assert.Empty(t, Validate(testutil.Definition("lotto", testutil.Open(), testutil.Lottery("10", 10))))
}

func TestValidateDefinitions_DuplicateNames(t *testing.T) {
	defs := []ido.Definition{
		testutil.Definition("alpha", testutil.Open(), testutil.Shared("1", "100")),
		testutil.Definition("beta", testutil.Open(), testutil.Shared("1", "100")),
		testutil.Definition("alpha", testutil.Open(), testutil.Shared("1", "100")),
	}
	errs := Validate(defs)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateName, errs[0].Code)
	assert.Equal(t, "projects[2].name", errs[0].Field)
}

func TestValidateTiers(t *testing.T) {
	assert.Empty(t, Validate(tier.DefaultConfig(8)))

	assert.Equal(t, []string{ErrTiersEmpty}, codes(Validate(tier.Config{})))

	cfg := tier.Config{Levels: []tier.Level{
		{Tier: tier.Tier0, MinPoint: "0"},
		{Tier: tier.Tier1, MinPoint: "500"},
		{Tier: tier.Tier2, MinPoint: "100", Tickets: []tier.Step{{Days: 30, Count: 2}, {Days: 10, Count: 3}}},
		{Tier: tier.Tier2, MinPoint: "x"},
	}}
	assert.ElementsMatch(t, []string{
		ErrTierDuplicate,
		ErrTierMinPoint,
		ErrTierStaircase,
		ErrTierOrder,
	}, codes(Validate(&cfg)))
}

func TestValidate_UnsupportedType(t *testing.T) {
	errs := Validate(42)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedType, errs[0].Code)
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "name", Message: "project name is required", Code: ErrProjectNameEmpty}
	assert.Equal(t, "[E101] name: project name is required", e.Error())
	e.Line = 4
	assert.Equal(t, "[E101] line 4: name: project name is required", e.Error())
}

package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("r-1", "r-2")
	assert.Equal(t, "r-1", g.Generate())
	assert.Equal(t, "r-2", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator("req")
	assert.Equal(t, "req-1", g.Generate())
	assert.Equal(t, "req-2", g.Generate())
}

func TestQueryIDs(t *testing.T) {
	var q queryIDs
	q.begin("req-7")
	assert.Equal(t, "req-7/1", q.Generate())
	assert.Equal(t, "req-7/2", q.Generate())
	q.begin("req-8")
	assert.Equal(t, "req-8/1", q.Generate())

	assert.Equal(t, "req-7", RequestOfQuery("req-7/2"))
	assert.Equal(t, "", RequestOfQuery("standalone"))
	assert.Equal(t, "", RequestOfQuery("/1"))
}

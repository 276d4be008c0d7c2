package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMockClient_Deterministic(t *testing.T) {
	c := NewMockClient()
	ctx := context.Background()

	a, err := c.Embed(ctx, "prefers predictable transitions")
	assert.NoError(t, err)
	b, err := c.Embed(ctx, "prefers predictable transitions")
	assert.NoError(t, err)
	assert.Equal(t, a, b, "same text must embed identically")

	other, err := c.Embed(ctx, "seeks sensory input")
	assert.NoError(t, err)
	assert.NotEqual(t, a, other, "different text should embed differently")
}

func TestMockClient_UnitVector(t *testing.T) {
	c := NewMockClient()

	vec, err := c.Embed(context.Background(), "anything")
	assert.NoError(t, err)
	assert.Len(t, vec, mockDimensions)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

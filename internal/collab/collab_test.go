package collab

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityRoundTripWriterReturnsCopyNotAlias(t *testing.T) {
	in := []byte{1, 2, 3}
	out, err := IdentityRoundTripWriter{}.Write(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	out[0] = 99
	assert.Equal(t, byte(1), in[0], "writer must not alias caller's slice")
}

func TestNoopCalculatorAlwaysOK(t *testing.T) {
	res, err := NoopCalculator{}.Calculate(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestNoopRendererAlwaysOK(t *testing.T) {
	res, err := NoopRenderer{}.Render(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.OK)
}

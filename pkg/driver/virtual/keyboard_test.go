package virtual

import (
	"codeberg.org/miketth/klmd/pkg/klm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"testing"
)

func TestKeyboard(t *testing.T) {
	kb := New(zaptest.NewLogger(t).Sugar())

	require.NoError(t, kb.SetColor(klm.RGB{R: 1}, 3))
	assert.Equal(t, Write{Op: "steady", Colors: []klm.RGB{{R: 1}}, Brightness: 3}, kb.Last())

	colors := []klm.RGB{{R: 1, G: 1, B: 1}, {R: 2, G: 2, B: 2}}
	require.NoError(t, kb.SetShift(colors, 4, 1))
	assert.Equal(t, Write{Op: "shift", Colors: colors, Brightness: 4, Speed: 1}, kb.Last())

	require.ErrorIs(t, kb.SetBreathing(make([]klm.RGB, MaxColors+1), 1, 1), klm.ErrTooManyColors)
	require.ErrorIs(t, kb.SetPower(true), klm.ErrUnsupported)
	require.NoError(t, kb.SetPower(false))

	assert.Equal(t, "off", kb.Last().Op)
	assert.Equal(t, 3, kb.Writes())
}

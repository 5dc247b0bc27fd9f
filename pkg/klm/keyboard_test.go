package klm

import (
	"codeberg.org/miketth/klmd/pkg/statestore/memory"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"testing"
)

func newTestKeyboard(t *testing.T) (*Keyboard, *fakeDriver, *memory.StateStore) {
	t.Helper()
	drv := &fakeDriver{}
	store := memory.NewStateStore()
	return NewKeyboard(drv, store, zaptest.NewLogger(t).Sugar()), drv, store
}

func TestNewKeyboardDefaults(t *testing.T) {
	kb, drv, _ := newTestKeyboard(t)

	s := kb.State()
	assert.Equal(t, ModeOff, s.Mode)
	assert.Equal(t, []RGB{{}}, s.Colors)
	assert.False(t, s.Power)
	assert.False(t, s.AutoSync)
	assert.Zero(t, s.Brightness)
	assert.Zero(t, s.Speed)
	assert.Empty(t, drv.calls)
}

func TestMutatorsDoNotSyncWhenLocked(t *testing.T) {
	kb, drv, _ := newTestKeyboard(t)

	kb.SetPower(true)
	require.NoError(t, kb.SetMode(ModeSteady))
	kb.SetColor(RGB{R: 255})
	kb.SetBrightness(5)
	kb.SetSpeed(1)

	assert.Empty(t, drv.calls)
}

func TestMutatorsSyncWhenUnlocked(t *testing.T) {
	kb, drv, _ := newTestKeyboard(t)
	kb.UnlockSync()

	kb.SetPower(true)
	kb.SetColor(RGB{G: 10})
	kb.SetBrightness(7)

	require.Len(t, drv.calls, 3)
	// mode is still off
	for _, c := range drv.calls {
		assert.Equal(t, "power", c.Op)
		assert.False(t, c.Power)
	}
}

func TestSyncDispatchesOnMode(t *testing.T) {
	colors := []RGB{{R: 1}, {G: 2}, {B: 3}}
	tests := []struct {
		mode Mode
		want driverCall
	}{
		{ModeOff, driverCall{Op: "power"}},
		{ModeSteady, driverCall{Op: "color", Colors: colors[:1], Brightness: 4}},
		{ModeBreathing, driverCall{Op: "breathing", Colors: colors, Brightness: 4, Speed: 2}},
		{ModeColorShift, driverCall{Op: "shift", Colors: colors, Brightness: 4, Speed: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			kb, drv, _ := newTestKeyboard(t)
			kb.Restore(State{Mode: tt.mode, Colors: colors, Brightness: 4, Speed: 2, Power: true})

			require.NoError(t, kb.Sync())
			require.Equal(t, []driverCall{tt.want}, drv.calls)
		})
	}
}

func TestSyncPowerOffTakesPrecedence(t *testing.T) {
	kb, drv, _ := newTestKeyboard(t)
	kb.Restore(State{Mode: ModeSteady, Colors: []RGB{{R: 9}}, Brightness: 3, Power: false})

	require.NoError(t, kb.Sync())
	assert.Equal(t, []driverCall{{Op: "power", Power: false}}, drv.calls)
}

func TestSyncEmptyColorsPanics(t *testing.T) {
	kb, _, _ := newTestKeyboard(t)
	kb.Restore(State{Mode: ModeBreathing, Power: true, Brightness: 1})
	kb.ResetColors()

	assert.Panics(t, func() { _ = kb.Sync() })
}

func TestSyncRecordsFailure(t *testing.T) {
	kb, drv, _ := newTestKeyboard(t)
	drv.fail = errors.New("usb gone")
	kb.Restore(State{Mode: ModeSteady, Colors: []RGB{{}}, Power: true})

	err := kb.Sync()
	require.Error(t, err)
	assert.ErrorIs(t, kb.LastSyncErr(), drv.fail)
	assert.False(t, kb.LastSyncAt().IsZero())

	drv.fail = nil
	require.NoError(t, kb.Sync())
	assert.NoError(t, kb.LastSyncErr())
}

func TestAddColorOverflow(t *testing.T) {
	kb, _, _ := newTestKeyboard(t)
	kb.ResetColors()

	for i := 0; i < MaxColors; i++ {
		require.NoError(t, kb.AddColor(RGB{R: uint8(i)}))
	}
	err := kb.AddColor(RGB{})
	require.ErrorIs(t, err, ErrTooManyColors)
	assert.Len(t, kb.State().Colors, MaxColors)
}

func TestTogglePower(t *testing.T) {
	kb, _, _ := newTestKeyboard(t)

	kb.TogglePower()
	assert.True(t, kb.State().Power)
	kb.TogglePower()
	assert.False(t, kb.State().Power)
}

func TestSetModeRejectsInvalid(t *testing.T) {
	kb, _, _ := newTestKeyboard(t)
	require.Error(t, kb.SetMode(Mode(4)))
	assert.Equal(t, ModeOff, kb.State().Mode)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	kb, _, store := newTestKeyboard(t)
	want := State{
		Mode:       ModeColorShift,
		Colors:     []RGB{{1, 2, 3}, {4, 5, 6}, {255, 255, 255}},
		Brightness: 200,
		Speed:      17,
		Power:      true,
	}
	kb.Restore(want)
	require.NoError(t, kb.SaveState())

	fresh := NewKeyboard(&fakeDriver{}, store, zaptest.NewLogger(t).Sugar())
	found, err := fresh.LoadStateIfExists()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, fresh.State())
}

func TestLoadStateIfExistsWithoutRecord(t *testing.T) {
	kb, _, _ := newTestKeyboard(t)

	found, err := kb.LoadStateIfExists()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, DefaultState(), kb.State())
}

func TestLoadStateRejectsCorruptRecord(t *testing.T) {
	tests := map[string][]byte{
		"steady without colors": {1, 2, byte(ModeSteady), 1, 0},
		"off without colors":    {5, 0, byte(ModeOff), 1, 0},
	}

	for name, record := range tests {
		t.Run(name, func(t *testing.T) {
			kb, _, store := newTestKeyboard(t)
			require.NoError(t, store.SaveState(record))

			found, err := kb.LoadStateIfExists()
			require.ErrorIs(t, err, ErrCorruptState)
			assert.False(t, found)
			assert.Equal(t, DefaultState(), kb.State())

			require.NoError(t, kb.SetMode(ModeSteady))
			assert.NotPanics(t, func() { _ = kb.Sync() })
		})
	}
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	kb := NewKeyboard(&fakeDriver{}, brokenStore{}, zaptest.NewLogger(t).Sugar())

	require.ErrorIs(t, kb.SaveState(), errStoreDown)
	_, err := kb.LoadStateIfExists()
	require.ErrorIs(t, err, errStoreDown)
}

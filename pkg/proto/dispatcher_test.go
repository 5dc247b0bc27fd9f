package proto

import (
	"codeberg.org/miketth/klmd/pkg/klm"
	"codeberg.org/miketth/klmd/pkg/statestore/memory"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"testing"
	"time"
)

type call struct {
	op     string
	colors []klm.RGB
}

type countingDriver struct {
	calls []call
	fail  error
}

func (d *countingDriver) add(op string, colors []klm.RGB) error {
	d.calls = append(d.calls, call{op: op, colors: append([]klm.RGB(nil), colors...)})
	return d.fail
}

func (d *countingDriver) SetColor(c klm.RGB, _ uint8) error {
	return d.add("color", []klm.RGB{c})
}

func (d *countingDriver) SetBreathing(colors []klm.RGB, _, _ uint8) error {
	return d.add("breathing", colors)
}

func (d *countingDriver) SetShift(colors []klm.RGB, _, _ uint8) error {
	return d.add("shift", colors)
}

func (d *countingDriver) SetPower(on bool) error {
	return d.add("power", nil)
}

func (d *countingDriver) Modes() []klm.Mode {
	return []klm.Mode{klm.ModeSteady, klm.ModeBreathing}
}

func (d *countingDriver) Close() error { return nil }

type fixture struct {
	kb    *klm.Keyboard
	drv   *countingDriver
	store *memory.StateStore
	d     *Dispatcher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	drv := &countingDriver{}
	store := memory.NewStateStore()
	kb := klm.NewKeyboard(drv, store, log)
	return &fixture{kb: kb, drv: drv, store: store, d: NewDispatcher(kb, log, opts...)}
}

func TestBatchingIssuesOneDriverCall(t *testing.T) {
	f := newFixture(t)
	f.kb.UnlockSync()

	resp := f.d.HandleMessage([]byte{
		0x07, 0x01, // power on
		0x01, 0xff, 0x00, 0x00, // set color
		0x02, 0x00, 0xff, 0x00, // add color
		0x03, 0x05, // brightness
		0x04, 0x01, // speed
		0x05, 0x03, // colorshift
	})

	assert.Equal(t, Respond(StatusOk), resp)
	require.Len(t, f.drv.calls, 1)
	assert.Equal(t, call{op: "shift", colors: []klm.RGB{{R: 0xff}, {G: 0xff}}}, f.drv.calls[0])
	assert.True(t, f.kb.AutoSync())

	record, err := f.store.LoadState()
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 1, 3, 1, 2, 0xff, 0, 0, 0, 0xff, 0}, record)
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)

	resp := f.d.HandleMessage([]byte{0xff})
	assert.Equal(t, Respond(StatusBadRequest), resp)
	assert.Empty(t, f.drv.calls)

	record, err := f.store.LoadState()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestEmptyMessage(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, Respond(StatusBadRequest), f.d.HandleMessage(nil))
	assert.Empty(t, f.drv.calls)
}

func TestModeSetKeepsColors(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, Respond(StatusOk), f.d.HandleMessage([]byte{0x07, 0x01, 0x01, 1, 2, 3}))
	f.drv.calls = nil

	resp := f.d.HandleMessage([]byte{0x05, 0x02})
	assert.Equal(t, Respond(StatusOk), resp)

	s := f.kb.State()
	assert.Equal(t, klm.ModeBreathing, s.Mode)
	assert.Equal(t, []klm.RGB{{R: 1, G: 2, B: 3}}, s.Colors)
	assert.Equal(t, []call{{op: "breathing", colors: []klm.RGB{{R: 1, G: 2, B: 3}}}}, f.drv.calls)
}

func TestColorsBulkSet(t *testing.T) {
	f := newFixture(t)

	resp := f.d.HandleMessage([]byte{0x00, 0x02, 1, 1, 1, 2, 2, 2})
	assert.Equal(t, Respond(StatusOk), resp)
	assert.Equal(t, []klm.RGB{{R: 1, G: 1, B: 1}, {R: 2, G: 2, B: 2}}, f.kb.State().Colors)
}

func TestColorsZeroCountRejected(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, Respond(StatusOk), f.d.HandleMessage([]byte{0x01, 9, 9, 9}))

	resp := f.d.HandleMessage([]byte{0x00, 0x00})
	assert.Equal(t, Respond(StatusBadRequest), resp)
	assert.Equal(t, []klm.RGB{{R: 9, G: 9, B: 9}}, f.kb.State().Colors)
}

func TestTruncatedArguments(t *testing.T) {
	tests := map[string][]byte{
		"colors without count":   {0x00},
		"colors short":           {0x00, 0x02, 1, 1, 1, 2, 2},
		"set color short":        {0x01, 1, 2},
		"add color short":        {0x02, 1},
		"brightness missing":     {0x03},
		"speed missing":          {0x04},
		"mode missing":           {0x05},
		"mode invalid":           {0x05, 0x04},
		"sync lock missing":      {0x06},
		"power missing":          {0x07},
		"trailing unknown":       {0x08, 0x0a},
		"second command missing": {0x03, 0x01, 0x04},
	}

	for name, buf := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			assert.Equal(t, Respond(StatusBadRequest), f.d.HandleMessage(buf))
			assert.Empty(t, f.drv.calls)
		})
	}
}

func TestFailedMessageRollsBack(t *testing.T) {
	f := newFixture(t)
	f.kb.UnlockSync()
	before := f.kb.State()

	resp := f.d.HandleMessage([]byte{0x03, 0x09, 0x01, 5, 5, 5, 0x08, 0xee})
	assert.Equal(t, Respond(StatusBadRequest), resp)
	assert.Equal(t, before, f.kb.State())
	assert.Empty(t, f.drv.calls)

	record, err := f.store.LoadState()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestRequestModes(t *testing.T) {
	f := newFixture(t)

	resp := f.d.HandleMessage([]byte{0x09})
	assert.Equal(t, Response{Status: StatusData, Payload: []byte{0, 1}}, resp)

	out, err := resp.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x02, 0, 1}, out)
}

func TestRequestModesIgnoresState(t *testing.T) {
	f := newFixture(t)
	resp := f.d.HandleMessage([]byte{0x07, 0x01, 0x05, 0x01, 0x09, 0x08})
	assert.Equal(t, Response{Status: StatusData, Payload: []byte{0, 1}}, resp)
}

func TestRequestModesPayloadTooLarge(t *testing.T) {
	f := newFixture(t)
	before := f.kb.State()

	buf := []byte{0x03, 0x07}
	for i := 0; i < MaxPayload/2+1; i++ {
		buf = append(buf, 0x09)
	}

	assert.Equal(t, Respond(StatusBadRequest), f.d.HandleMessage(buf))
	assert.Equal(t, before, f.kb.State())
	assert.Empty(t, f.drv.calls)

	record, err := f.store.LoadState()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestTogglePower(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, Respond(StatusOk), f.d.HandleMessage([]byte{0x08}))
	assert.True(t, f.kb.State().Power)
	require.Equal(t, Respond(StatusOk), f.d.HandleMessage([]byte{0x08, 0x08, 0x08}))
	assert.False(t, f.kb.State().Power)
}

func TestSyncLockKeepsAutoSyncSuspended(t *testing.T) {
	f := newFixture(t)
	f.kb.UnlockSync()

	require.Equal(t, Respond(StatusOk), f.d.HandleMessage([]byte{0x06, 0x01, 0x03, 0x02}))
	assert.False(t, f.kb.AutoSync())
	assert.Len(t, f.drv.calls, 1)

	require.Equal(t, Respond(StatusOk), f.d.HandleMessage([]byte{0x06, 0x00}))
	assert.True(t, f.kb.AutoSync())
}

func TestAddColorOverflowIsBadRequest(t *testing.T) {
	f := newFixture(t)
	f.kb.ResetColors()
	for i := 0; i < klm.MaxColors; i++ {
		require.NoError(t, f.kb.AddColor(klm.RGB{}))
	}

	assert.Equal(t, Respond(StatusBadRequest), f.d.HandleMessage([]byte{0x02, 1, 2, 3}))
	assert.Len(t, f.kb.State().Colors, klm.MaxColors)
}

func TestHardwareErrors(t *testing.T) {
	buf := []byte{0x07, 0x01, 0x05, 0x01}

	f := newFixture(t)
	f.drv.fail = errors.New("device gone")
	assert.Equal(t, Respond(StatusOk), f.d.HandleMessage(buf))
	assert.Error(t, f.kb.LastSyncErr())

	f = newFixture(t, WithHardwareErrors(true))
	f.drv.fail = errors.New("device gone")
	assert.Equal(t, Respond(StatusError), f.d.HandleMessage(buf))
}

type recordingObserver struct {
	statuses []string
}

func (o *recordingObserver) ObserveRequest(status string, _ time.Duration) {
	o.statuses = append(o.statuses, status)
}

func TestObserver(t *testing.T) {
	o := &recordingObserver{}
	f := newFixture(t, WithObserver(o))

	f.d.HandleMessage([]byte{0x08})
	f.d.HandleMessage([]byte{0xff})
	f.d.HandleMessage([]byte{0x09})

	assert.Equal(t, []string{"ok", "bad_request", "data"}, o.statuses)
}

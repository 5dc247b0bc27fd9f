package klm

import "errors"

type driverCall struct {
	Op         string
	Colors     []RGB
	Brightness uint8
	Speed      uint8
	Power      bool
}

type fakeDriver struct {
	calls []driverCall
	fail  error
}

func (d *fakeDriver) record(c driverCall) error {
	d.calls = append(d.calls, c)
	return d.fail
}

func (d *fakeDriver) SetColor(color RGB, brightness uint8) error {
	return d.record(driverCall{Op: "color", Colors: []RGB{color}, Brightness: brightness})
}

func (d *fakeDriver) SetBreathing(colors []RGB, brightness, speed uint8) error {
	return d.record(driverCall{Op: "breathing", Colors: append([]RGB(nil), colors...), Brightness: brightness, Speed: speed})
}

func (d *fakeDriver) SetShift(colors []RGB, brightness, speed uint8) error {
	return d.record(driverCall{Op: "shift", Colors: append([]RGB(nil), colors...), Brightness: brightness, Speed: speed})
}

func (d *fakeDriver) SetPower(on bool) error {
	return d.record(driverCall{Op: "power", Power: on})
}

func (d *fakeDriver) Modes() []Mode {
	return []Mode{ModeSteady, ModeBreathing, ModeColorShift}
}

func (d *fakeDriver) Close() error {
	return nil
}

var errStoreDown = errors.New("store down")

type brokenStore struct{}

func (brokenStore) LoadState() ([]byte, error) { return nil, errStoreDown }
func (brokenStore) SaveState([]byte) error     { return errStoreDown }
func (brokenStore) ClearState() error          { return errStoreDown }

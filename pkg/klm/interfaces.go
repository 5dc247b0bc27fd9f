package klm

import "errors"

var (
	ErrTooManyColors = errors.New("too many colors")
	ErrUnsupported   = errors.New("operation not supported by device")
	ErrCorruptState  = errors.New("corrupt state record")
)

// Driver is a hardware back end. Implementations clamp brightness and speed
// into their own range and never panic on a failed write.
type Driver interface {
	SetColor(color RGB, brightness uint8) error
	SetBreathing(colors []RGB, brightness, speed uint8) error
	SetShift(colors []RGB, brightness, speed uint8) error
	SetPower(on bool) error
	Modes() []Mode
	Close() error
}

// StateStore persists the flat state record. LoadState returns nil, nil when
// nothing has been saved yet.
type StateStore interface {
	LoadState() ([]byte, error)
	SaveState(record []byte) error
	ClearState() error
}

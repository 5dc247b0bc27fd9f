package klm

import (
	"fmt"
	"go.uber.org/zap"
	"time"
)

// Keyboard owns the logical lighting state and pushes it to the driver.
// It is not safe for concurrent use; the daemon serves one connection at a
// time.
type Keyboard struct {
	state  State
	driver Driver
	store  StateStore
	log    *zap.SugaredLogger

	lastSyncErr error
	lastSyncAt  time.Time
}

func NewKeyboard(driver Driver, store StateStore, log *zap.SugaredLogger) *Keyboard {
	return &Keyboard{
		state:  DefaultState(),
		driver: driver,
		store:  store,
		log:    log.With("component", "keyboard"),
	}
}

// State returns a copy of the current state.
func (k *Keyboard) State() State {
	return k.state.Clone()
}

// Restore replaces the whole state without syncing.
func (k *Keyboard) Restore(s State) {
	k.state = s.Clone()
}

func (k *Keyboard) Modes() []Mode {
	return k.driver.Modes()
}

// LastSyncErr reports the outcome of the most recent Sync.
func (k *Keyboard) LastSyncErr() error {
	return k.lastSyncErr
}

func (k *Keyboard) LastSyncAt() time.Time {
	return k.lastSyncAt
}

func (k *Keyboard) SetMode(mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("set mode %d: invalid mode", uint8(mode))
	}
	k.state.Mode = mode
	k.changed()
	return nil
}

// SetColor replaces the color sequence with a single color.
func (k *Keyboard) SetColor(color RGB) {
	k.state.Colors = []RGB{color}
	k.changed()
}

func (k *Keyboard) AddColor(color RGB) error {
	if len(k.state.Colors) >= MaxColors {
		return fmt.Errorf("add color %s: %w", color, ErrTooManyColors)
	}
	k.state.Colors = append(k.state.Colors, color)
	k.changed()
	return nil
}

// ResetColors empties the color sequence. The caller must add at least one
// color before the next sync in a color mode.
func (k *Keyboard) ResetColors() {
	k.state.Colors = []RGB{}
}

func (k *Keyboard) SetBrightness(brightness uint8) {
	k.state.Brightness = brightness
	k.changed()
}

func (k *Keyboard) SetSpeed(speed uint8) {
	k.state.Speed = speed
	k.changed()
}

func (k *Keyboard) SetPower(on bool) {
	k.state.Power = on
	k.changed()
}

func (k *Keyboard) TogglePower() {
	k.SetPower(!k.state.Power)
}

// LockSync suspends automatic syncing after each mutation.
func (k *Keyboard) LockSync() {
	k.state.AutoSync = false
}

// UnlockSync resumes automatic syncing. It does not sync by itself.
func (k *Keyboard) UnlockSync() {
	k.state.AutoSync = true
}

func (k *Keyboard) AutoSync() bool {
	return k.state.AutoSync
}

func (k *Keyboard) changed() {
	if k.state.AutoSync {
		_ = k.Sync()
	}
}

// Sync translates the current state into exactly one driver call. Failures
// are logged and kept as LastSyncErr. Syncing a color mode with an empty
// color sequence panics.
func (k *Keyboard) Sync() error {
	s := &k.state

	var err error
	switch {
	case !s.Power || s.Mode == ModeOff:
		err = k.driver.SetPower(false)
	default:
		if len(s.Colors) == 0 {
			panic(fmt.Sprintf("klm: sync in mode %s with empty color sequence", s.Mode))
		}
		if s.Brightness == 0 {
			k.log.Warnw("syncing with zero brightness", "mode", s.Mode)
		}

		switch s.Mode {
		case ModeSteady:
			err = k.driver.SetColor(s.Colors[0], s.Brightness)
		case ModeBreathing:
			err = k.driver.SetBreathing(s.Colors, s.Brightness, s.Speed)
		case ModeColorShift:
			err = k.driver.SetShift(s.Colors, s.Brightness, s.Speed)
		default:
			panic(fmt.Sprintf("klm: sync in invalid mode %d", uint8(s.Mode)))
		}
	}

	k.lastSyncAt = time.Now()
	k.lastSyncErr = err
	if err != nil {
		k.log.Errorw("hardware write failed", "mode", s.Mode, "power", s.Power, "error", err)
		return fmt.Errorf("sync %s: %w", s.Mode, err)
	}

	k.log.Debugw("synced", "mode", s.Mode, "power", s.Power, "colors", len(s.Colors),
		"brightness", s.Brightness, "speed", s.Speed)
	return nil
}

func (k *Keyboard) SaveState() error {
	record, err := k.state.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := k.store.SaveState(record); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	return nil
}

// LoadStateIfExists overwrites the persisted fields of the state with the
// stored record, if there is one. A corrupt record leaves the state alone.
func (k *Keyboard) LoadStateIfExists() (bool, error) {
	record, err := k.store.LoadState()
	if err != nil {
		return false, fmt.Errorf("load state: %w", err)
	}
	if record == nil {
		return false, nil
	}

	loaded := k.state.Clone()
	if err := loaded.UnmarshalBinary(record); err != nil {
		return false, fmt.Errorf("decode state: %w", err)
	}

	k.state = loaded
	return true, nil
}

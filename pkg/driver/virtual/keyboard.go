// Package virtual is a back end without hardware. It logs every write and
// remembers the last one, which makes the daemon usable on machines without
// a supported keyboard.
package virtual

import (
	"codeberg.org/miketth/klmd/pkg/driver"
	"codeberg.org/miketth/klmd/pkg/klm"
	"fmt"
	"go.uber.org/zap"
)

const (
	Name      = "virtual"
	MaxColors = 7
)

var Backend = driver.Backend{
	Name:      Name,
	IsPresent: func() (bool, error) { return true, nil },
	Open: func(log *zap.SugaredLogger) (klm.Driver, error) {
		return New(log), nil
	},
}

// Write is the last primitive applied to the virtual device.
type Write struct {
	Op         string
	Colors     []klm.RGB
	Brightness uint8
	Speed      uint8
}

type Keyboard struct {
	log    *zap.SugaredLogger
	last   Write
	writes int
}

func New(log *zap.SugaredLogger) *Keyboard {
	return &Keyboard{log: log, last: Write{Op: "off"}}
}

func (k *Keyboard) Last() Write {
	return k.last
}

func (k *Keyboard) Writes() int {
	return k.writes
}

func (k *Keyboard) Modes() []klm.Mode {
	return []klm.Mode{klm.ModeSteady, klm.ModeBreathing, klm.ModeColorShift}
}

func (k *Keyboard) SetColor(color klm.RGB, brightness uint8) error {
	return k.apply(Write{Op: "steady", Colors: []klm.RGB{color}, Brightness: brightness})
}

func (k *Keyboard) SetBreathing(colors []klm.RGB, brightness, speed uint8) error {
	return k.animated("breathing", colors, brightness, speed)
}

func (k *Keyboard) SetShift(colors []klm.RGB, brightness, speed uint8) error {
	return k.animated("shift", colors, brightness, speed)
}

func (k *Keyboard) SetPower(on bool) error {
	if on {
		return fmt.Errorf("power on: %w", klm.ErrUnsupported)
	}
	return k.apply(Write{Op: "off"})
}

func (k *Keyboard) Close() error {
	return nil
}

func (k *Keyboard) animated(op string, colors []klm.RGB, brightness, speed uint8) error {
	if len(colors) > MaxColors {
		k.log.Warnw("refusing request", "op", op, "colors", len(colors), "max", MaxColors)
		return fmt.Errorf("%s with %d colors: %w", op, len(colors), klm.ErrTooManyColors)
	}
	return k.apply(Write{Op: op, Colors: append([]klm.RGB(nil), colors...), Brightness: brightness, Speed: speed})
}

func (k *Keyboard) apply(w Write) error {
	k.last = w
	k.writes++
	k.log.Infow("virtual write", "op", w.Op, "colors", w.Colors, "brightness", w.Brightness, "speed", w.Speed)
	return nil
}

// Package ms1563 drives the RGB backlight controller with USB id 1462:1563
// through HID feature reports.
package ms1563

import (
	"codeberg.org/miketth/klmd/pkg/driver"
	"codeberg.org/miketth/klmd/pkg/klm"
	"fmt"
	"github.com/sstallion/go-hid"
	"go.uber.org/zap"
)

const (
	VendorID  = 0x1462
	ProductID = 0x1563
)

const Name = "ms1563"

type featureWriter interface {
	SendFeatureReport(b []byte) (int, error)
	Close() error
}

type Keyboard struct {
	dev featureWriter
	log *zap.SugaredLogger
}

var Backend = driver.Backend{
	Name:       Name,
	AutoSelect: true,
	IsPresent:  IsPresent,
	Open: func(log *zap.SugaredLogger) (klm.Driver, error) {
		return Open(log)
	},
}

func IsPresent() (bool, error) {
	if err := hid.Init(); err != nil {
		return false, fmt.Errorf("init hidapi: %w", err)
	}

	found := false
	err := hid.Enumerate(VendorID, ProductID, func(info *hid.DeviceInfo) error {
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("enumerate: %w", err)
	}

	return found, nil
}

func Open(log *zap.SugaredLogger) (*Keyboard, error) {
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("init hidapi: %w", err)
	}

	dev, err := hid.OpenFirst(VendorID, ProductID)
	if err != nil {
		return nil, fmt.Errorf("open %04x:%04x (check permissions on the hidraw node): %w", VendorID, ProductID, err)
	}

	log.Infow("opened keyboard", "vendor", fmt.Sprintf("%04x", VendorID), "product", fmt.Sprintf("%04x", ProductID))
	return newKeyboard(dev, log), nil
}

func newKeyboard(dev featureWriter, log *zap.SugaredLogger) *Keyboard {
	return &Keyboard{dev: dev, log: log}
}

func (k *Keyboard) Close() error {
	err := k.dev.Close()
	if exitErr := hid.Exit(); err == nil && exitErr != nil {
		err = exitErr
	}
	return err
}

func (k *Keyboard) Modes() []klm.Mode {
	return []klm.Mode{klm.ModeSteady, klm.ModeBreathing, klm.ModeColorShift}
}

func (k *Keyboard) SetColor(color klm.RGB, brightness uint8) error {
	return k.write("steady", steadyReport(color, k.clampBrightness(brightness)))
}

func (k *Keyboard) SetBreathing(colors []klm.RGB, brightness, speed uint8) error {
	return k.animated("breathing", cmdBreathing, colors, brightness, speed)
}

func (k *Keyboard) SetShift(colors []klm.RGB, brightness, speed uint8) error {
	return k.animated("shift", cmdShift, colors, brightness, speed)
}

// SetPower can only switch the backlight off; any lighting command turns it
// back on.
func (k *Keyboard) SetPower(on bool) error {
	if on {
		k.log.Error("powering on is not supported, set a lighting mode instead")
		return fmt.Errorf("power on: %w", klm.ErrUnsupported)
	}
	return k.write("power off", powerOffReport())
}

func (k *Keyboard) animated(op string, cmd byte, colors []klm.RGB, brightness, speed uint8) error {
	r, err := animatedReport(cmd, colors, k.clampBrightness(brightness), k.clampSpeed(speed))
	if err != nil {
		// never truncate the pattern
		k.log.Warnw("refusing request", "op", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return k.write(op, r)
}

func (k *Keyboard) write(op string, r report) error {
	if _, err := k.dev.SendFeatureReport(r[:]); err != nil {
		k.log.Errorw("failed writing feature report", "op", op, "error", err)
		return fmt.Errorf("send %s report: %w", op, err)
	}
	k.log.Debugw("wrote feature report", "op", op)
	return nil
}

func (k *Keyboard) clampBrightness(brightness uint8) uint8 {
	if brightness > MaxBrightness {
		k.log.Warnw("brightness too high, clamping", "requested", brightness, "max", MaxBrightness)
		return MaxBrightness
	}
	return brightness
}

func (k *Keyboard) clampSpeed(speed uint8) uint8 {
	if speed > MaxSpeed {
		k.log.Warnw("speed too high, clamping", "requested", speed, "max", MaxSpeed)
		return MaxSpeed
	}
	return speed
}

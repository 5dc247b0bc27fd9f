// Package driver selects and opens a lighting back end at startup.
package driver

import (
	"codeberg.org/miketth/klmd/pkg/klm"
	"errors"
	"fmt"
	"go.uber.org/zap"
)

var (
	ErrNoDevice       = errors.New("no supported keyboard found")
	ErrUnknownBackend = errors.New("unknown driver")
	ErrDeviceOpen     = errors.New("open device")
)

// Auto selects the first present back end that allows automatic selection.
const Auto = "auto"

type Backend struct {
	Name string
	// AutoSelect reports whether Probe may pick this back end in Auto mode.
	AutoSelect bool
	// IsPresent must return false, nil when no device is found and an error
	// only for real I/O faults.
	IsPresent func() (bool, error)
	Open      func(log *zap.SugaredLogger) (klm.Driver, error)
}

// Probe opens the back end called name, or the first present one when name is
// Auto. Open failures wrap ErrDeviceOpen.
func Probe(backends []Backend, name string, log *zap.SugaredLogger) (klm.Driver, string, error) {
	if name == "" {
		name = Auto
	}

	for _, b := range backends {
		if name == Auto && !b.AutoSelect {
			continue
		}
		if name != Auto && name != b.Name {
			continue
		}

		present, err := b.IsPresent()
		if err != nil {
			return nil, "", fmt.Errorf("probe %s: %w", b.Name, err)
		}
		if !present {
			log.Debugw("device not present", "driver", b.Name)
			if name == Auto {
				continue
			}
			return nil, "", fmt.Errorf("%s: %w", b.Name, ErrNoDevice)
		}

		drv, err := b.Open(log.With("driver", b.Name))
		if err != nil {
			return nil, "", fmt.Errorf("%w %s: %w", ErrDeviceOpen, b.Name, err)
		}

		return drv, b.Name, nil
	}

	if name != Auto {
		return nil, "", fmt.Errorf("%q: %w", name, ErrUnknownBackend)
	}
	return nil, "", ErrNoDevice
}

package ms1563

import (
	"codeberg.org/miketth/klmd/pkg/klm"
	"fmt"
)

const (
	reportID   = 0x02
	reportSize = 64

	MaxBrightness = 10
	MaxSpeed      = 2
	MaxColors     = 7
)

const (
	cmdPowerOff  = 0x00
	cmdSteady    = 0x01
	cmdBreathing = 0x02
	cmdShift     = 0x05
)

// Feature report layout:
//
//	[0] report id  [2] command  [3] speed  [4] brightness
//	[5] color count  [6..] R,G,B per color
type report [reportSize]byte

func newReport(cmd byte) report {
	var r report
	r[0] = reportID
	r[2] = cmd
	return r
}

func powerOffReport() report {
	return newReport(cmdPowerOff)
}

func steadyReport(color klm.RGB, brightness uint8) report {
	r := newReport(cmdSteady)
	r[4] = brightness
	r[5] = 0x01
	r[6], r[7], r[8] = color.R, color.G, color.B
	return r
}

func animatedReport(cmd byte, colors []klm.RGB, brightness, speed uint8) (report, error) {
	if len(colors) > MaxColors {
		return report{}, fmt.Errorf("%d colors, at most %d: %w", len(colors), MaxColors, klm.ErrTooManyColors)
	}

	r := newReport(cmd)
	r[3] = speed
	r[4] = brightness
	r[5] = byte(len(colors))
	for i, c := range colors {
		off := 6 + 3*i
		r[off], r[off+1], r[off+2] = c.R, c.G, c.B
	}
	return r, nil
}

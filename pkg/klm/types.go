package klm

import "fmt"

type Mode uint8

const (
	ModeOff Mode = iota
	ModeSteady
	ModeBreathing
	ModeColorShift
)

func (m Mode) Valid() bool {
	return m <= ModeColorShift
}

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeSteady:
		return "steady"
	case ModeBreathing:
		return "breathing"
	case ModeColorShift:
		return "colorshift"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode accepts the names returned by Mode.String.
func ParseMode(s string) (Mode, error) {
	for m := ModeOff; m <= ModeColorShift; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

type RGB struct {
	R, G, B uint8
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// MaxColors is the longest color sequence a State can hold.
const MaxColors = 255

type State struct {
	Mode       Mode
	Colors     []RGB
	Brightness uint8
	Speed      uint8
	Power      bool
	AutoSync   bool
}

func DefaultState() State {
	return State{
		Mode:   ModeOff,
		Colors: []RGB{{}},
	}
}

func (s State) Clone() State {
	out := s
	out.Colors = append([]RGB(nil), s.Colors...)
	return out
}

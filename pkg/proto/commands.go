package proto

import (
	"codeberg.org/miketth/klmd/pkg/klm"
	"errors"
	"fmt"
)

type Command byte

const (
	CmdColors Command = iota
	CmdSetColor
	CmdAddColor
	CmdBrightness
	CmdSpeed
	CmdMode
	CmdSyncLock
	CmdPower
	CmdTogglePower
	CmdRequestModes
)

var commandNames = map[Command]string{
	CmdColors:       "colors",
	CmdSetColor:     "set_color",
	CmdAddColor:     "add_color",
	CmdBrightness:   "brightness",
	CmdSpeed:        "speed",
	CmdMode:         "mode",
	CmdSyncLock:     "sync_lock",
	CmdPower:        "power",
	CmdTogglePower:  "toggle_power",
	CmdRequestModes: "request_modes",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%#02x)", byte(c))
}

var ErrBadRequest = errors.New("bad request")

// handler consumes the arguments starting at p and returns the position of
// the next command byte.
type handler func(m *message, p int) (int, error)

var handlers = map[Command]handler{
	CmdColors:       handleColors,
	CmdSetColor:     handleSetColor,
	CmdAddColor:     handleAddColor,
	CmdBrightness:   handleBrightness,
	CmdSpeed:        handleSpeed,
	CmdMode:         handleMode,
	CmdSyncLock:     handleSyncLock,
	CmdPower:        handlePower,
	CmdTogglePower:  handleTogglePower,
	CmdRequestModes: handleRequestModes,
}

type message struct {
	buf      []byte
	kb       Keyboard
	response Response
	// auto-sync setting restored once the message has been applied
	autoSync bool
}

func (m *message) need(p, n int, what string) error {
	if p+n > len(m.buf) {
		return fmt.Errorf("expected %s at %d, got end of message: %w", what, p, ErrBadRequest)
	}
	return nil
}

func (m *message) rgb(p int) klm.RGB {
	return klm.RGB{R: m.buf[p], G: m.buf[p+1], B: m.buf[p+2]}
}

func handleColors(m *message, p int) (int, error) {
	if err := m.need(p, 1, "color count"); err != nil {
		return 0, err
	}
	n := int(m.buf[p])
	p++
	if n == 0 {
		return 0, fmt.Errorf("empty color list is ambiguous: %w", ErrBadRequest)
	}
	if err := m.need(p, 3*n, fmt.Sprintf("%d colors", n)); err != nil {
		return 0, err
	}

	m.kb.ResetColors()
	for i := 0; i < n; i++ {
		if err := m.kb.AddColor(m.rgb(p)); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		p += 3
	}
	return p, nil
}

func handleSetColor(m *message, p int) (int, error) {
	if err := m.need(p, 3, "color"); err != nil {
		return 0, err
	}
	m.kb.SetColor(m.rgb(p))
	return p + 3, nil
}

func handleAddColor(m *message, p int) (int, error) {
	if err := m.need(p, 3, "color"); err != nil {
		return 0, err
	}
	if err := m.kb.AddColor(m.rgb(p)); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return p + 3, nil
}

func handleBrightness(m *message, p int) (int, error) {
	if err := m.need(p, 1, "brightness"); err != nil {
		return 0, err
	}
	m.kb.SetBrightness(m.buf[p])
	return p + 1, nil
}

func handleSpeed(m *message, p int) (int, error) {
	if err := m.need(p, 1, "speed"); err != nil {
		return 0, err
	}
	m.kb.SetSpeed(m.buf[p])
	return p + 1, nil
}

func handleMode(m *message, p int) (int, error) {
	if err := m.need(p, 1, "mode"); err != nil {
		return 0, err
	}
	mode := klm.Mode(m.buf[p])
	if !mode.Valid() {
		return 0, fmt.Errorf("bad mode %d at %d: %w", m.buf[p], p, ErrBadRequest)
	}
	if err := m.kb.SetMode(mode); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return p + 1, nil
}

// handleSyncLock only records the auto-sync setting for after the message.
// It does not batch anything: every message is applied with syncing
// suspended and ends in exactly one sync whatever the flag says. A nonzero
// flag keeps later direct controller changes from syncing on their own.
func handleSyncLock(m *message, p int) (int, error) {
	if err := m.need(p, 1, "lock flag"); err != nil {
		return 0, err
	}
	m.autoSync = m.buf[p] == 0
	return p + 1, nil
}

func handlePower(m *message, p int) (int, error) {
	if err := m.need(p, 1, "power flag"); err != nil {
		return 0, err
	}
	m.kb.SetPower(m.buf[p] != 0)
	return p + 1, nil
}

func handleTogglePower(m *message, p int) (int, error) {
	m.kb.TogglePower()
	return p, nil
}

func handleRequestModes(m *message, p int) (int, error) {
	modes := m.kb.Modes()
	payload := make([]byte, 0, len(modes))
	for _, mode := range modes {
		payload = append(payload, ModeListByte(mode))
	}
	m.response.addData(payload...)
	return p, nil
}

// ModeListByte is the RequestModes encoding of a mode: 0 steady, 1 breathing,
// 2 color shift. It is one below the Mode command's encoding.
func ModeListByte(mode klm.Mode) byte {
	return byte(mode) - 1
}

// ModeFromListByte decodes one byte of a RequestModes payload.
func ModeFromListByte(b byte) klm.Mode {
	return klm.Mode(b + 1)
}

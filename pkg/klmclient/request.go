package klmclient

import (
	"codeberg.org/miketth/klmd/pkg/klm"
	"codeberg.org/miketth/klmd/pkg/proto"
)

// Request stages commands that are sent to the daemon as one message and
// applied with a single hardware write.
type Request struct {
	staged []byte
}

func NewRequest() *Request {
	return &Request{}
}

func (r *Request) Reset() {
	r.staged = r.staged[:0]
}

func (r *Request) Len() int {
	return len(r.staged)
}

func (r *Request) Bytes() []byte {
	return append([]byte(nil), r.staged...)
}

func (r *Request) add(cmd proto.Command, args ...byte) *Request {
	r.staged = append(r.staged, byte(cmd))
	r.staged = append(r.staged, args...)
	return r
}

// SetColors replaces the color sequence. An empty list is staged as is and
// rejected by the daemon.
func (r *Request) SetColors(colors ...klm.RGB) *Request {
	args := []byte{byte(len(colors))}
	for _, c := range colors {
		args = append(args, c.R, c.G, c.B)
	}
	return r.add(proto.CmdColors, args...)
}

func (r *Request) SetColor(c klm.RGB) *Request {
	return r.add(proto.CmdSetColor, c.R, c.G, c.B)
}

func (r *Request) AddColor(c klm.RGB) *Request {
	return r.add(proto.CmdAddColor, c.R, c.G, c.B)
}

func (r *Request) SetBrightness(brightness uint8) *Request {
	return r.add(proto.CmdBrightness, brightness)
}

func (r *Request) SetSpeed(speed uint8) *Request {
	return r.add(proto.CmdSpeed, speed)
}

func (r *Request) SetMode(mode klm.Mode) *Request {
	return r.add(proto.CmdMode, byte(mode))
}

// SetSyncLock with suspend=true leaves automatic syncing off after the
// message.
func (r *Request) SetSyncLock(suspend bool) *Request {
	return r.add(proto.CmdSyncLock, boolByte(suspend))
}

func (r *Request) SetPower(on bool) *Request {
	return r.add(proto.CmdPower, boolByte(on))
}

func (r *Request) TogglePower() *Request {
	return r.add(proto.CmdTogglePower)
}

func (r *Request) RequestModes() *Request {
	return r.add(proto.CmdRequestModes)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

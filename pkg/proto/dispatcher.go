// Package proto decodes client messages into keyboard state changes.
package proto

import (
	"codeberg.org/miketth/klmd/pkg/klm"
	"go.uber.org/zap"
	"time"
)

// Keyboard is the controller contract the dispatcher drives.
type Keyboard interface {
	SetMode(mode klm.Mode) error
	SetColor(color klm.RGB)
	AddColor(color klm.RGB) error
	ResetColors()
	SetBrightness(brightness uint8)
	SetSpeed(speed uint8)
	SetPower(on bool)
	TogglePower()
	LockSync()
	UnlockSync()
	Sync() error
	SaveState() error
	Modes() []klm.Mode
	State() klm.State
	Restore(s klm.State)
}

type Observer interface {
	ObserveRequest(status string, took time.Duration)
}

type Dispatcher struct {
	kb  Keyboard
	log *zap.SugaredLogger

	reportHardwareErrors bool
	observer             Observer
}

type Option func(*Dispatcher)

// WithHardwareErrors makes a failed sync answer StatusError instead of
// StatusOk.
func WithHardwareErrors(report bool) Option {
	return func(d *Dispatcher) {
		d.reportHardwareErrors = report
	}
}

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

func NewDispatcher(kb Keyboard, log *zap.SugaredLogger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		kb:  kb,
		log: log.With("component", "proto"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleMessage applies every command in buf. A message either applies as a
// whole, followed by one save and one sync, or fails with StatusBadRequest
// and leaves the keyboard state as it was.
func (d *Dispatcher) HandleMessage(buf []byte) Response {
	start := time.Now()
	resp := d.handle(buf)
	if d.observer != nil {
		d.observer.ObserveRequest(resp.Status.String(), time.Since(start))
	}
	return resp
}

func (d *Dispatcher) handle(buf []byte) Response {
	if len(buf) == 0 {
		d.log.Error("bad request: empty message")
		return Respond(StatusBadRequest)
	}

	snapshot := d.kb.State()
	d.kb.LockSync()

	m := &message{
		buf:      buf,
		kb:       d.kb,
		response: Respond(StatusOk),
		autoSync: true,
	}

	p := 0
	for p < len(buf) {
		cmd := Command(buf[p])
		p++

		h, ok := handlers[cmd]
		if !ok {
			d.log.Errorw("bad request: unknown command", "command", byte(cmd), "pos", p-1)
			d.kb.Restore(snapshot)
			return Respond(StatusBadRequest)
		}

		d.log.Debugw("handling command", "command", cmd, "pos", p-1)

		next, err := h(m, p)
		if err != nil {
			d.log.Errorw("bad request", "command", cmd, "pos", p-1, "error", err)
			d.kb.Restore(snapshot)
			return Respond(StatusBadRequest)
		}
		p = next
	}

	resp := m.response
	if resp.Status != StatusData {
		resp = Respond(StatusOk)
	}
	if len(resp.Payload) > MaxPayload {
		d.log.Errorw("bad request: answer does not fit a response", "payload", len(resp.Payload))
		d.kb.Restore(snapshot)
		return Respond(StatusBadRequest)
	}

	if err := d.kb.SaveState(); err != nil {
		d.log.Errorw("failed to persist state", "error", err)
		resp = Respond(StatusError)
	}

	if m.autoSync {
		d.kb.UnlockSync()
	}

	if err := d.kb.Sync(); err != nil && d.reportHardwareErrors && resp.Status == StatusOk {
		resp = Respond(StatusError)
	}

	return resp
}

// Package klmclient talks to a running klmd over its unix socket.
package klmclient

import (
	"codeberg.org/miketth/klmd/pkg/klm"
	"codeberg.org/miketth/klmd/pkg/proto"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

var (
	ErrNotRunning      = errors.New("klmd might not be running")
	ErrEmptyRequest    = errors.New("no commands staged")
	ErrRequestTooLarge = errors.New("request too large")
)

const (
	DefaultSocketPath = "/run/klmd.sock"
	MaxRequestSize    = 255
)

type Client struct {
	path    string
	timeout time.Duration
}

// New returns a client for the socket at path. Each Commit waits at most
// timeout for klmd, or until the context deadline if that comes first. A zero
// timeout leaves only the context deadline.
func New(path string, timeout time.Duration) *Client {
	return &Client{path: path, timeout: timeout}
}

// SocketPath returns $KLMD_SOCKET, or the default socket path.
func SocketPath() string {
	if p := os.Getenv("KLMD_SOCKET"); p != "" {
		return p
	}
	return DefaultSocketPath
}

type Result struct {
	Status proto.Status
	Data   []byte
}

func (r Result) Err() error {
	switch r.Status {
	case proto.StatusOk, proto.StatusData:
		return nil
	}
	return fmt.Errorf("klmd answered %s", r.Status)
}

// Modes decodes the payload of a RequestModes answer.
func (r Result) Modes() []klm.Mode {
	modes := make([]klm.Mode, 0, len(r.Data))
	for _, b := range r.Data {
		modes = append(modes, proto.ModeFromListByte(b))
	}
	return modes
}

// Commit sends the staged commands as one message and waits for the answer.
func (c *Client) Commit(ctx context.Context, req *Request) (Result, error) {
	if req.Len() == 0 {
		return Result{}, ErrEmptyRequest
	}
	if req.Len() > MaxRequestSize {
		return Result{}, fmt.Errorf("%d bytes: %w", req.Len(), ErrRequestTooLarge)
	}

	conn, err := c.connect(ctx)
	if err != nil {
		return Result{}, err
	}
	defer conn.Close()

	if deadline, ok := c.deadline(ctx); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return Result{}, fmt.Errorf("set deadline: %w", err)
		}
	}

	msg := append([]byte{byte(req.Len())}, req.staged...)
	if _, err := conn.Write(msg); err != nil {
		return Result{}, fmt.Errorf("write to klmd socket: %w", err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return Result{}, fmt.Errorf("read from klmd socket: %w", err)
	}

	resp, err := proto.ParseResponse(reply)
	if err != nil {
		return Result{}, fmt.Errorf("parse response: %w", err)
	}

	return Result{Status: resp.Status, Data: resp.Payload}, nil
}

func (c *Client) deadline(ctx context.Context) (time.Time, bool) {
	deadline, ok := ctx.Deadline()
	if c.timeout <= 0 {
		return deadline, ok
	}
	own := time.Now().Add(c.timeout)
	if ok && deadline.Before(own) {
		return deadline, true
	}
	return own, true
}

func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	if _, err := os.Stat(c.path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no socket at %s, %w", c.path, ErrNotRunning)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return conn, nil
}

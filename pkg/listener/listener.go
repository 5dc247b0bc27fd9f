// Package listener serves the lighting protocol on a unix socket. Each
// connection carries one message: a length byte followed by that many bytes
// of commands. The reply is written back and the connection closed.
package listener

import (
	"codeberg.org/miketth/klmd/pkg/proto"
	"context"
	"errors"
	"fmt"
	"github.com/coreos/go-systemd/v22/activation"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"io"
	"net"
	"os"
	"time"
)

var ErrNotSocket = errors.New("path exists and is not a socket")

type MessageHandler interface {
	HandleMessage(buf []byte) proto.Response
}

// Listen returns the socket passed by systemd socket activation if there is
// one, otherwise it binds path and applies mode to the socket file.
func Listen(path string, mode os.FileMode, log *zap.SugaredLogger) (net.Listener, error) {
	activated, err := activation.Listeners()
	if err != nil {
		return nil, fmt.Errorf("systemd activation: %w", err)
	}
	for _, ln := range activated {
		if ln != nil {
			log.Infow("using socket from systemd", "addr", ln.Addr())
			return ln, nil
		}
	}

	if err := removeStale(path); err != nil {
		return nil, err
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	if err := os.Chmod(path, mode); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	log.Infow("listening", "path", path, "mode", fmt.Sprintf("%04o", mode))
	return ln, nil
}

func removeStale(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat socket: %w", err)
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s: %w", path, ErrNotSocket)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	return nil
}

type Server struct {
	ln      net.Listener
	handler MessageHandler
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewServer serves handler on ln. A timeout of zero disables the
// per-connection deadline.
func NewServer(ln net.Listener, handler MessageHandler, timeout time.Duration, log *zap.SugaredLogger) *Server {
	return &Server{
		ln:      ln,
		handler: handler,
		timeout: timeout,
		log:     log.With("component", "listener"),
	}
}

// Serve handles connections one after another until ctx is cancelled, then
// closes the listener and returns ctx.Err().
func (s *Server) Serve(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.ln.Close()
		case <-done:
		}
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}
			s.log.Errorw("accept failed", "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	log := s.log.With("conn", uuid.NewString())
	if peer, err := peerCredentials(conn); err == nil {
		log = log.With("pid", peer.PID, "uid", peer.UID)
	}

	if s.timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
			log.Warnw("failed to set deadline", "error", err)
		}
	}

	resp, err := s.readRequest(conn, log)
	if err != nil {
		log.Errorw("failed to read request", "error", err)
		return
	}

	out, err := resp.MarshalBinary()
	if err != nil {
		log.Errorw("failed to encode response", "error", err)
		out = []byte{byte(proto.StatusError)}
	}

	if _, err := conn.Write(out); err != nil {
		log.Errorw("failed to write response", "error", err)
		return
	}

	log.Debugw("handled request", "status", resp.Status)
}

func (s *Server) readRequest(conn net.Conn, log *zap.SugaredLogger) (proto.Response, error) {
	var size [1]byte
	if _, err := io.ReadFull(conn, size[:]); err != nil {
		return proto.Response{}, fmt.Errorf("read length: %w", err)
	}

	if size[0] == 0 {
		log.Warn("request length is zero")
		return proto.Respond(proto.StatusBadRequest), nil
	}

	buf := make([]byte, size[0])
	if _, err := io.ReadFull(conn, buf); err != nil {
		return proto.Response{}, fmt.Errorf("read %d byte message: %w", size[0], err)
	}

	return s.handler.HandleMessage(buf), nil
}

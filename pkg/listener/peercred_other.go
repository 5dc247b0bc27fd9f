//go:build !linux

package listener

import (
	"errors"
	"net"
)

type peer struct {
	PID int32
	UID uint32
}

func peerCredentials(net.Conn) (peer, error) {
	return peer{}, errors.New("peer credentials are only available on linux")
}

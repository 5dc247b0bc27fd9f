package listener

import (
	"errors"
	"golang.org/x/sys/unix"
	"net"
)

type peer struct {
	PID int32
	UID uint32
}

func peerCredentials(conn net.Conn) (peer, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return peer{}, errors.New("not a unix connection")
	}

	raw, err := uc.SyscallConn()
	if err != nil {
		return peer{}, err
	}

	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return peer{}, err
	}
	if credErr != nil {
		return peer{}, credErr
	}

	return peer{PID: cred.Pid, UID: cred.Uid}, nil
}

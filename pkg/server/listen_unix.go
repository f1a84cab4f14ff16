//go:build !windows

package server

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlSocket sets SO_REUSEADDR so a restarted daemon can rebind while old
// connections sit in TIME_WAIT.
func controlSocket(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

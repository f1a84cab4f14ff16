//go:build windows

package server

import "syscall"

// controlSocket is a no-op on windows, where SO_REUSEADDR allows port
// hijacking rather than TIME_WAIT reuse.
func controlSocket(_, _ string, _ syscall.RawConn) error {
	return nil
}

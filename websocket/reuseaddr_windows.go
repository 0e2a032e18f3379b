//go:build windows

package websocket

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// setReuseAddr sets SO_REUSEADDR on the listening socket before bind,
// as net.ListenConfig.Control (§4.8: "bind a server socket
// (SO_REUSEADDR set...)"). Windows treats SO_REUSEADDR more
// permissively than POSIX, but setting it keeps restart-after-crash
// behavior consistent with the Unix build.
func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		optval := unsafePointerOne()
		sockErr = windows.Setsockopt(
			windows.Handle(fd),
			int32(windows.SOL_SOCKET),
			int32(windows.SO_REUSEADDR),
			&optval[0],
			4,
		)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// unsafePointerOne returns a 4-byte little-endian encoding of the
// integer 1, the boolval Setsockopt expects for SO_REUSEADDR.
func unsafePointerOne() [4]byte {
	return [4]byte{1, 0, 0, 0}
}

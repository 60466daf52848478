//go:build linux

package writer

import (
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// DialSocket connects to socketPath using SOCK_SEQPACKET when the peer
// supports it, falling back to SOCK_STREAM otherwise — mirroring the
// spec's "on Linux, sequenced-packet may be used; else stream" contract.
func DialSocket(socketPath string) (net.Conn, error) {
	conn, err := dialSeqpacket(socketPath)
	if err == nil {
		return conn, nil
	}
	return net.DialTimeout("unix", socketPath, 5*time.Second)
}

func dialSeqpacket(socketPath string) (net.Conn, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, fmt.Errorf("writer: socket(SOCK_SEQPACKET): %w", err)
	}
	sa := &unix.SockaddrUnix{Name: socketPath}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("writer: connect(SOCK_SEQPACKET) %s: %w", socketPath, err)
	}
	f := os.NewFile(uintptr(fd), "seqpacket")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("writer: FileConn: %w", err)
	}
	return conn, nil
}

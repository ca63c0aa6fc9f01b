//go:build linux

package transport

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// BPConn is a raw bundle protocol socket. AF_BP is unknown to the net
// package and to the typed sockaddr helpers in golang.org/x/sys/unix, so
// bind/sendto/recvfrom go through the raw syscall interface with the
// serialized sockaddr storage from BPSockaddr.Marshal.
type BPConn struct {
	fd int
}

func newBPConn() (*BPConn, error) {
	fd, err := unix.Socket(AFBP, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("bp socket create: %w", err)
	}
	return &BPConn{fd: fd}, nil
}

func (c *BPConn) setNonblock() error {
	return unix.SetNonblock(c.fd, true)
}

func (c *BPConn) setReuseAddr() error {
	return unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

func (c *BPConn) bind(sa *BPSockaddr) error {
	storage, length := sa.Marshal()
	_, _, errno := unix.Syscall(unix.SYS_BIND,
		uintptr(c.fd),
		uintptr(unsafe.Pointer(&storage[0])),
		uintptr(length))
	if errno != 0 {
		return fmt.Errorf("bp bind %s: %w", sa, errno)
	}
	return nil
}

func (c *BPConn) sendTo(p []byte, sa *BPSockaddr) (int, error) {
	storage, length := sa.Marshal()
	var buf unsafe.Pointer
	if len(p) > 0 {
		buf = unsafe.Pointer(&p[0])
	}
	n, _, errno := unix.Syscall6(unix.SYS_SENDTO,
		uintptr(c.fd),
		uintptr(buf),
		uintptr(len(p)),
		0,
		uintptr(unsafe.Pointer(&storage[0])),
		uintptr(length))
	if errno != 0 {
		return 0, fmt.Errorf("bp sendto %s: %w", sa, errno)
	}
	return int(n), nil
}

// recv reads one bundle into p. The sender address is not recovered: the
// kernel module's recvfrom fills a sockaddr the typed helpers cannot parse,
// and the engine attributes bundles to the listening endpoint instead.
func (c *BPConn) recv(p []byte) (int, error) {
	n, _, errno := unix.Syscall6(unix.SYS_RECVFROM,
		uintptr(c.fd),
		uintptr(unsafe.Pointer(&p[0])),
		uintptr(len(p)),
		0, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// dup produces an independent descriptor for the same underlying socket.
func (c *BPConn) dup() (*BPConn, error) {
	fd, err := unix.Dup(c.fd)
	if err != nil {
		return nil, fmt.Errorf("bp dup: %w", err)
	}
	return &BPConn{fd: fd}, nil
}

func (c *BPConn) Close() error {
	return unix.Close(c.fd)
}

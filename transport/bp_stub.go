//go:build !linux

package transport

import "errors"

// errBPPlatform is returned for every bundle protocol socket operation on
// platforms without the AF_BP kernel module interface.
var errBPPlatform = errors.New("bundle protocol sockets require linux")

// BPConn is a placeholder for the raw bundle protocol socket on platforms
// that cannot open one. Address parsing and layout still work everywhere;
// only the socket operations are linux-specific.
type BPConn struct {
	fd int
}

func newBPConn() (*BPConn, error) { return nil, errBPPlatform }

func (c *BPConn) setNonblock() error { return errBPPlatform }

func (c *BPConn) setReuseAddr() error { return errBPPlatform }

func (c *BPConn) bind(*BPSockaddr) error { return errBPPlatform }

func (c *BPConn) sendTo([]byte, *BPSockaddr) (int, error) { return 0, errBPPlatform }

func (c *BPConn) recv([]byte) (int, error) { return 0, errBPPlatform }

func (c *BPConn) dup() (*BPConn, error) { return nil, errBPPlatform }

func (c *BPConn) Close() error { return nil }

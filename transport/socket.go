package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/DTN-MTP/socket-engine/endpoint"
)

// GenericSocket owns one OS socket identity: the endpoint it was built
// from, the resolved destination/bind address, and the handle itself.
// Datagram and stream endpoints are backed by the net package; bundle
// protocol endpoints by a raw BPConn.
type GenericSocket struct {
	Endpoint endpoint.Endpoint

	udpAddr *net.UDPAddr
	tcpAddr *net.TCPAddr
	bpAddr  *BPSockaddr

	mu        sync.Mutex
	listening bool
	pc        net.PacketConn
	ln        net.Listener
	bp        *BPConn
}

// NewGenericSocket resolves the endpoint into socket-creation parameters
// and the destination/bind address. Bundle protocol sockets are opened
// immediately (family AF_BP, datagram type, protocol 0); UDP/TCP handles
// are created by the net package at bind or dial time.
func NewGenericSocket(ep endpoint.Endpoint) (*GenericSocket, error) {
	s := &GenericSocket{Endpoint: ep}

	switch ep.Proto {
	case endpoint.ProtoUDP:
		addr, err := net.ResolveUDPAddr("udp", ep.Addr)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", ep, err)
		}
		s.udpAddr = addr
	case endpoint.ProtoTCP:
		addr, err := net.ResolveTCPAddr("tcp", ep.Addr)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", ep, err)
		}
		s.tcpAddr = addr
	case endpoint.ProtoBP:
		sa, err := BuildBPSockaddr(ep.Addr)
		if err != nil {
			return nil, err
		}
		conn, err := newBPConn()
		if err != nil {
			return nil, err
		}
		s.bpAddr = sa
		s.bp = conn
	default:
		return nil, fmt.Errorf("unknown protocol %v", ep.Proto)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewGenericSocket",
		"endpoint": ep.String(),
	}).Debug("Socket created")
	return s, nil
}

// reuseAddrControl enables address reuse (not port reuse) before bind.
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	}); err != nil {
		return err
	}
	return sockErr
}

// ConfigureForListening puts the socket into listening state: non-blocking
// mode where the handle is raw, address reuse enabled, and a bind to the
// resolved address. Calling it on an already-listening socket is a no-op.
func (s *GenericSocket) ConfigureForListening(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening {
		return nil
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	switch {
	case s.udpAddr != nil:
		pc, err := lc.ListenPacket(ctx, "udp", s.udpAddr.String())
		if err != nil {
			return fmt.Errorf("bind %s: %w", s.Endpoint, err)
		}
		s.pc = pc
	case s.tcpAddr != nil:
		ln, err := lc.Listen(ctx, "tcp", s.tcpAddr.String())
		if err != nil {
			return fmt.Errorf("bind %s: %w", s.Endpoint, err)
		}
		s.ln = ln
	case s.bp != nil:
		if err := s.bp.setNonblock(); err != nil {
			return fmt.Errorf("set nonblocking on %s: %w", s.Endpoint, err)
		}
		if err := s.bp.setReuseAddr(); err != nil {
			return fmt.Errorf("set reuse address on %s: %w", s.Endpoint, err)
		}
		if err := s.bp.bind(s.bpAddr); err != nil {
			return fmt.Errorf("bind %s: %w", s.Endpoint, err)
		}
	}

	s.listening = true
	logrus.WithFields(logrus.Fields{
		"function": "GenericSocket.ConfigureForListening",
		"endpoint": s.Endpoint.String(),
	}).Info("Socket bound for listening")
	return nil
}

// Listening reports whether ConfigureForListening has completed.
func (s *GenericSocket) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// LocalAddr returns the bound local address for net-backed sockets, or nil
// before binding and for bundle protocol sockets.
func (s *GenericSocket) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.pc != nil:
		return s.pc.LocalAddr()
	case s.ln != nil:
		return s.ln.Addr()
	}
	return nil
}

// PacketConn exposes the bound datagram handle, nil until the socket is
// configured for listening. Used by the engine to send replies from the
// same local identity.
func (s *GenericSocket) PacketConn() net.PacketConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pc
}

// Duplicate produces a second GenericSocket referring to the same
// underlying OS socket, so a listener loop and the engine's cache can hold
// it concurrently. Net-backed handles are shared; the raw bundle protocol
// descriptor is dup'd. Closing either copy can invalidate the other's OS
// resource.
func (s *GenericSocket) Duplicate() (*GenericSocket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := &GenericSocket{
		Endpoint:  s.Endpoint,
		udpAddr:   s.udpAddr,
		tcpAddr:   s.tcpAddr,
		bpAddr:    s.bpAddr,
		listening: s.listening,
		pc:        s.pc,
		ln:        s.ln,
	}
	if s.bp != nil {
		dup, err := s.bp.dup()
		if err != nil {
			return nil, err
		}
		d.bp = dup
	}
	return d, nil
}

// Close releases whichever handle the socket owns.
func (s *GenericSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.pc != nil:
		return s.pc.Close()
	case s.ln != nil:
		return s.ln.Close()
	case s.bp != nil:
		return s.bp.Close()
	}
	return nil
}

package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime"
	"time"

	"github.com/benbjohnson/clock"
	tec "github.com/jbenet/go-temp-err-catcher"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/DTN-MTP/socket-engine/endpoint"
	"github.com/DTN-MTP/socket-engine/event"
)

// The listener loops below block until a fatal error stops them; the engine
// dispatches each onto background execution. A fatal error terminates only
// its own loop, reported through the bus, never the process.

// RunStreamListener binds the socket, announces the listener, and accepts
// connections until a fatal accept error. Every accepted connection gets an
// independent reader goroutine.
func RunStreamListener(sock *GenericSocket, bus *event.Bus) {
	if err := sock.ConfigureForListening(context.Background()); err != nil {
		bus.Publish(event.SocketError{Endpoint: sock.Endpoint, Reason: err.Error()})
		return
	}
	bus.Publish(event.ListenerStarted{Endpoint: sock.Endpoint})

	var catcher tec.TempErrCatcher
	for {
		conn, err := sock.ln.Accept()
		if err != nil {
			if catcher.IsTemporary(err) {
				continue
			}
			logrus.WithFields(logrus.Fields{
				"function": "RunStreamListener",
				"endpoint": sock.Endpoint.String(),
				"error":    err.Error(),
			}).Error("Accept failed; stopping listener")
			bus.Publish(event.SocketError{Endpoint: sock.Endpoint, Reason: err.Error()})
			return
		}

		remote := endpoint.Endpoint{Proto: endpoint.ProtoTCP, Addr: conn.RemoteAddr().String()}
		bus.Publish(event.Established{Remote: remote})
		go readStream(conn, remote, bus)
	}
}

// readStream forwards each successful read as one Received event, verbatim,
// with no reassembly or framing. A zero-length read is an orderly close.
func readStream(conn net.Conn, remote endpoint.Endpoint, bus *event.Bus) {
	defer conn.Close()

	buf := make([]byte, TCPBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			bus.Publish(event.Received{Data: data, From: remote})
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r := remote
				bus.Publish(event.Closed{Remote: &r})
			} else {
				bus.Publish(event.ReceiveFailed{Endpoint: remote, Reason: err.Error()})
			}
			return
		}
	}
}

// RunDatagramListener binds the socket, announces the listener, and
// receives datagrams until a fatal error. Timeouts are transient and
// retried after a short sleep; they produce no event.
func RunDatagramListener(sock *GenericSocket, bus *event.Bus, clk clock.Clock, pollInterval time.Duration) {
	if err := sock.ConfigureForListening(context.Background()); err != nil {
		bus.Publish(event.SocketError{Endpoint: sock.Endpoint, Reason: err.Error()})
		return
	}
	bus.Publish(event.ListenerStarted{Endpoint: sock.Endpoint})

	buf := make([]byte, UDPMaxDatagramSize)
	for {
		n, addr, err := sock.pc.ReadFrom(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				clk.Sleep(pollInterval)
				continue
			}
			logrus.WithFields(logrus.Fields{
				"function": "RunDatagramListener",
				"endpoint": sock.Endpoint.String(),
				"error":    err.Error(),
			}).Error("Receive failed; stopping listener")
			bus.Publish(event.ReceiveFailed{Endpoint: sock.Endpoint, Reason: err.Error()})
			return
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		from := endpoint.Endpoint{Proto: endpoint.ProtoUDP, Addr: addr.String()}
		bus.Publish(event.Received{Data: data, From: from})
	}
}

// RunBPListener mirrors the datagram listener for bundle protocol sockets.
// The receive primitive is a blocking syscall outside the runtime's poller
// integration, so the loop pins itself to a dedicated OS thread and polls
// the nonblocking descriptor with a fixed sleep on would-block.
func RunBPListener(sock *GenericSocket, bus *event.Bus, clk clock.Clock, pollInterval time.Duration) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := sock.ConfigureForListening(context.Background()); err != nil {
		bus.Publish(event.SocketError{Endpoint: sock.Endpoint, Reason: err.Error()})
		return
	}
	bus.Publish(event.ListenerStarted{Endpoint: sock.Endpoint})

	buf := make([]byte, UDPMaxDatagramSize)
	for {
		n, err := sock.bp.recv(buf)
		if err != nil {
			if isWouldBlock(err) {
				clk.Sleep(pollInterval)
				continue
			}
			logrus.WithFields(logrus.Fields{
				"function": "RunBPListener",
				"endpoint": sock.Endpoint.String(),
				"error":    err.Error(),
			}).Error("Receive failed; stopping listener")
			bus.Publish(event.ReceiveFailed{Endpoint: sock.Endpoint, Reason: err.Error()})
			return
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		// The raw recv path does not recover the sender; bundles are
		// attributed to the listening endpoint.
		bus.Publish(event.Received{Data: data, From: sock.Endpoint})
	}
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

package transport

import (
	"errors"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/DTN-MTP/socket-engine/event"
)

// classifyDialError maps an outbound connect failure onto the closed set of
// connection failure reasons.
func classifyDialError(err error) event.FailureReason {
	switch {
	case errors.Is(err, unix.ECONNREFUSED):
		return event.FailureRefused
	case errors.Is(err, unix.ETIMEDOUT) || os.IsTimeout(err):
		return event.FailureTimeout
	case errors.Is(err, unix.ENETUNREACH) || errors.Is(err, unix.EHOSTUNREACH):
		return event.FailureNetworkUnreachable
	default:
		return event.FailureOther
	}
}

// SendStream performs a one-shot connect-and-write to a stream endpoint:
// connect, Established, write, Sent or SendFailed, shutdown, Closed. Each
// step emits independently; a failed write does not suppress the cleanup
// steps after it.
func SendStream(target *GenericSocket, data []byte, token string, timeout time.Duration, bus *event.Bus) {
	conn, err := net.DialTimeout("tcp", target.tcpAddr.String(), timeout)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "SendStream",
			"endpoint": target.Endpoint.String(),
			"error":    err.Error(),
		}).Error("Connect failed")
		bus.Publish(event.ConnectionFailed{
			Endpoint: target.Endpoint,
			Reason:   classifyDialError(err),
			Token:    token,
			Message:  err.Error(),
		})
		return
	}
	bus.Publish(event.Established{Remote: target.Endpoint})

	if _, err := conn.Write(data); err != nil {
		bus.Publish(event.SendFailed{Endpoint: target.Endpoint, Token: token, Reason: err.Error()})
	} else {
		bus.Publish(event.Sent{Token: token, To: target.Endpoint, BytesSent: len(data)})
	}

	// Best-effort shutdown of both directions, attempted regardless of the
	// write outcome.
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	if err := conn.Close(); err != nil {
		bus.Publish(event.SocketError{Endpoint: target.Endpoint, Reason: "shutdown failed: " + err.Error()})
	} else {
		remote := target.Endpoint
		bus.Publish(event.Closed{Remote: &remote})
	}
}

// SendDatagram sends one datagram to the target. When local carries a bound
// datagram handle (a cached listener socket), the send goes out from that
// local identity; otherwise an ephemeral socket is used and closed after.
func SendDatagram(target *GenericSocket, local *GenericSocket, data []byte, token string, bus *event.Bus) {
	var pc net.PacketConn
	if local != nil {
		pc = local.PacketConn()
	}

	ephemeral := false
	if pc == nil {
		var err error
		pc, err = net.ListenPacket("udp", ":0")
		if err != nil {
			bus.Publish(event.SendFailed{
				Endpoint: target.Endpoint,
				Token:    token,
				Reason:   "failed to create UDP socket: " + err.Error(),
			})
			return
		}
		ephemeral = true
	}
	if ephemeral {
		defer pc.Close()
	}

	if _, err := pc.WriteTo(data, target.udpAddr); err != nil {
		bus.Publish(event.SendFailed{Endpoint: target.Endpoint, Token: token, Reason: err.Error()})
		return
	}
	bus.Publish(event.Sent{Token: token, To: target.Endpoint, BytesSent: len(data)})
}

// SendBP sends one bundle to the target address. When local carries a bound
// bundle protocol socket, it is used instead of the target's own handle, so
// the bundle leaves from the listening identity. No connection or handshake
// phase exists for this transport.
func SendBP(target *GenericSocket, local *GenericSocket, data []byte, token string, bus *event.Bus) {
	conn := target.bp
	if local != nil && local.bp != nil {
		conn = local.bp
	}
	if conn == nil {
		bus.Publish(event.SendFailed{
			Endpoint: target.Endpoint,
			Token:    token,
			Reason:   "no bundle protocol socket available",
		})
		return
	}

	n, err := conn.sendTo(data, target.bpAddr)
	if err != nil {
		bus.Publish(event.SendFailed{Endpoint: target.Endpoint, Token: token, Reason: err.Error()})
		return
	}
	bus.Publish(event.Sent{Token: token, To: target.Endpoint, BytesSent: n})
}

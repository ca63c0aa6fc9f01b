// Package event defines the engine's notification model: the closed set of
// engine events and the observer bus that fans them out to registered
// observers without losing or reordering them.
package event

import (
	"fmt"

	"github.com/DTN-MTP/socket-engine/endpoint"
)

// Event is implemented by every engine notification. Events are immutable
// snapshots; the same value may be handed to any number of observers.
type Event interface {
	isEngineEvent()
}

// Observer receives engine events. OnEngineEvent is invoked once per event
// per registered observer, from a background goroutine; observers touching
// shared state must synchronize internally.
type Observer interface {
	OnEngineEvent(ev Event)
}

// FailureReason classifies why a connection attempt failed.
type FailureReason uint8

const (
	FailureOther FailureReason = iota
	FailureRefused
	FailureTimeout
	FailureNetworkUnreachable
)

func (r FailureReason) String() string {
	switch r {
	case FailureRefused:
		return "refused"
	case FailureTimeout:
		return "timeout"
	case FailureNetworkUnreachable:
		return "network unreachable"
	default:
		return "other"
	}
}

// Data events.

// Received carries bytes read from a listener. One event per successful
// read, whatever number of bytes the OS returned; no framing is imposed.
type Received struct {
	Data []byte
	From endpoint.Endpoint
}

// Sending announces a send request before any protocol work happens, so
// observers can track requests that may never complete.
type Sending struct {
	Token string
	To    endpoint.Endpoint
	Bytes int
}

// Sent reports a completed send.
type Sent struct {
	Token     string
	To        endpoint.Endpoint
	BytesSent int
}

// Connection events.

// ListenerStarted reports that a listener is bound and receiving.
type ListenerStarted struct {
	Endpoint endpoint.Endpoint
}

// Established reports a stream connection coming up, inbound or outbound.
type Established struct {
	Remote endpoint.Endpoint
}

// Closed reports an orderly stream shutdown. Remote is nil when the peer is
// no longer known.
type Closed struct {
	Remote *endpoint.Endpoint
}

// Error events.

// ConnectionFailed reports a failed outbound stream connect.
type ConnectionFailed struct {
	Endpoint endpoint.Endpoint
	Reason   FailureReason
	Token    string
	Message  string
}

// SendFailed reports a send that did not complete.
type SendFailed struct {
	Endpoint endpoint.Endpoint
	Token    string
	Reason   string
}

// ReceiveFailed reports a fatal receive error on a listener or connection.
type ReceiveFailed struct {
	Endpoint endpoint.Endpoint
	Reason   string
}

// SocketError reports a socket construction or listener-loop failure.
type SocketError struct {
	Endpoint endpoint.Endpoint
	Reason   string
}

func (Received) isEngineEvent()         {}
func (Sending) isEngineEvent()          {}
func (Sent) isEngineEvent()             {}
func (ListenerStarted) isEngineEvent()  {}
func (Established) isEngineEvent()      {}
func (Closed) isEngineEvent()           {}
func (ConnectionFailed) isEngineEvent() {}
func (SendFailed) isEngineEvent()       {}
func (ReceiveFailed) isEngineEvent()    {}
func (SocketError) isEngineEvent()      {}

func (e Received) String() string {
	return fmt.Sprintf("received %d bytes from %s", len(e.Data), e.From)
}

func (e Sending) String() string {
	return fmt.Sprintf("sending %d bytes to %s (token %s)", e.Bytes, e.To, e.Token)
}

func (e Sent) String() string {
	return fmt.Sprintf("sent %d bytes to %s (token %s)", e.BytesSent, e.To, e.Token)
}

func (e ListenerStarted) String() string {
	return fmt.Sprintf("listener started on %s", e.Endpoint)
}

func (e Established) String() string {
	return fmt.Sprintf("connection established with %s", e.Remote)
}

func (e Closed) String() string {
	if e.Remote == nil {
		return "connection closed"
	}
	return fmt.Sprintf("connection closed with %s", *e.Remote)
}

func (e ConnectionFailed) String() string {
	return fmt.Sprintf("connection to %s failed (%s): %s", e.Endpoint, e.Reason, e.Message)
}

func (e SendFailed) String() string {
	return fmt.Sprintf("send to %s failed (token %s): %s", e.Endpoint, e.Token, e.Reason)
}

func (e ReceiveFailed) String() string {
	return fmt.Sprintf("receive on %s failed: %s", e.Endpoint, e.Reason)
}

func (e SocketError) String() string {
	return fmt.Sprintf("socket error on %s: %s", e.Endpoint, e.Reason)
}

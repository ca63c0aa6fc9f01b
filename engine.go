// Package socketengine exchanges byte payloads over UDP datagrams, TCP
// streams, and bundle protocol (AF_BP) sockets through one endpoint
// notation and one asynchronous engine. Callers register observers, start
// listeners, and fire sends; every outcome surfaces as an event.
//
// Example:
//
//	engine := socketengine.New(socketengine.NewOptions())
//	engine.AddObserver(myObserver)
//
//	local, _ := endpoint.Parse("udp 127.0.0.1:4556")
//	engine.StartListenerAsync(local)
//
//	remote, _ := endpoint.Parse("udp 127.0.0.1:4557")
//	engine.SendAsync(&local, remote, []byte("hi"), "token-1")
package socketengine

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/DTN-MTP/socket-engine/endpoint"
	"github.com/DTN-MTP/socket-engine/event"
	"github.com/DTN-MTP/socket-engine/transport"
)

// Engine orchestrates observer registration, a cache of bound sockets
// keyed by endpoint, and background dispatch of listener and sender work.
type Engine struct {
	opts *Options
	bus  *event.Bus

	mu      sync.Mutex
	sockets map[endpoint.Endpoint]*transport.GenericSocket
}

// New assembles an engine. A nil options value selects defaults.
func New(opts *Options) *Engine {
	if opts == nil {
		opts = NewOptions()
	}
	opts = opts.withDefaults()
	return &Engine{
		opts:    opts,
		bus:     event.NewBus(opts.Clock),
		sockets: make(map[endpoint.Endpoint]*transport.GenericSocket),
	}
}

// AddObserver registers an observer for all engine events. Observers are
// notified in registration order; registration is append-only.
func (e *Engine) AddObserver(o event.Observer) {
	e.bus.AddObserver(o)
}

// StartListenerAsync builds and binds a socket for the endpoint, stores a
// duplicate in the socket cache so sends can reuse the bound identity, and
// runs the matching listener loop in the background. Failures are reported
// as SocketError events, never returned; the loop runs until a fatal error
// or process exit.
func (e *Engine) StartListenerAsync(ep endpoint.Endpoint) {
	sock, err := transport.NewGenericSocket(ep)
	if err != nil {
		e.bus.Publish(event.SocketError{Endpoint: ep, Reason: err.Error()})
		return
	}
	if err := sock.ConfigureForListening(context.Background()); err != nil {
		e.bus.Publish(event.SocketError{Endpoint: ep, Reason: err.Error()})
		return
	}

	if dup, err := sock.Duplicate(); err == nil {
		e.mu.Lock()
		e.sockets[ep] = dup
		e.mu.Unlock()
	} else {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.StartListenerAsync",
			"endpoint": ep.String(),
			"error":    err.Error(),
		}).Warn("Could not cache listener socket; sends will use ephemeral sockets")
	}

	switch ep.Proto {
	case endpoint.ProtoTCP:
		e.opts.Runner.Go(func() { transport.RunStreamListener(sock, e.bus) })
	case endpoint.ProtoUDP:
		e.opts.Runner.Go(func() {
			transport.RunDatagramListener(sock, e.bus, e.opts.Clock, e.opts.PollInterval)
		})
	case endpoint.ProtoBP:
		// The bundle protocol receive primitive is a blocking syscall the
		// runtime poller cannot wait on; the loop pins its own OS thread.
		e.opts.Runner.Go(func() {
			transport.RunBPListener(sock, e.bus, e.opts.Clock, e.opts.PollInterval)
		})
	}
}

// SendAsync dispatches a send to the target endpoint in the background and
// returns immediately; all outcomes surface as events, starting with a
// Sending event emitted before any protocol work. When source names a
// cached listener endpoint and the target protocol is connectionless, the
// send reuses that bound local identity instead of an ephemeral one.
func (e *Engine) SendAsync(source *endpoint.Endpoint, target endpoint.Endpoint, data []byte, token string) {
	e.bus.Publish(event.Sending{Token: token, To: target, Bytes: len(data)})

	var local *transport.GenericSocket
	if source != nil && target.Proto.Connectionless() {
		e.mu.Lock()
		local = e.sockets[*source]
		e.mu.Unlock()
	}

	e.opts.Runner.Go(func() {
		sock, err := transport.NewGenericSocket(target)
		if err != nil {
			e.bus.Publish(event.SendFailed{Endpoint: target, Token: token, Reason: err.Error()})
			return
		}

		switch target.Proto {
		case endpoint.ProtoTCP:
			transport.SendStream(sock, data, token, e.opts.ConnectTimeout, e.bus)
		case endpoint.ProtoUDP:
			transport.SendDatagram(sock, local, data, token, e.bus)
		case endpoint.ProtoBP:
			transport.SendBP(sock, local, data, token, e.bus)
			// One-shot descriptor, not cached.
			_ = sock.Close()
		}
	})
}

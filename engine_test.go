package socketengine

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DTN-MTP/socket-engine/endpoint"
	"github.com/DTN-MTP/socket-engine/event"
)

// collector records every engine event and lets tests wait for specific
// ones while keeping the full delivery order for later assertions.
type collector struct {
	incoming chan event.Event
	log      []event.Event
}

func newCollector() *collector {
	return &collector{incoming: make(chan event.Event, 128)}
}

func (c *collector) OnEngineEvent(ev event.Event) {
	c.incoming <- ev
}

// waitFor returns the first event matching the predicate, consulting
// already-drained events before blocking, and fails the test on timeout.
// Drained events accumulate in c.log.
func (c *collector) waitFor(t *testing.T, what string, match func(event.Event) bool) event.Event {
	t.Helper()
	if i := c.indexOf(match); i >= 0 {
		return c.log[i]
	}
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-c.incoming:
			c.log = append(c.log, ev)
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s; saw %v", what, c.log)
			return nil
		}
	}
}

func (c *collector) indexOf(match func(event.Event) bool) int {
	for i, ev := range c.log {
		if match(ev) {
			return i
		}
	}
	return -1
}

func isListenerStarted(ep endpoint.Endpoint) func(event.Event) bool {
	return func(ev event.Event) bool {
		ls, ok := ev.(event.ListenerStarted)
		return ok && ls.Endpoint == ep
	}
}

func mustParse(t *testing.T, s string) endpoint.Endpoint {
	t.Helper()
	ep, err := endpoint.Parse(s)
	require.NoError(t, err)
	return ep
}

// reserveEndpoint asks the kernel for a free port on 127.0.0.1 and returns
// it as an endpoint, so concurrent test runs never collide on fixed ports.
func reserveEndpoint(t *testing.T, proto string) endpoint.Endpoint {
	t.Helper()
	var addr string
	switch proto {
	case "udp":
		pc, err := net.ListenPacket("udp", "127.0.0.1:0")
		require.NoError(t, err)
		addr = pc.LocalAddr().String()
		require.NoError(t, pc.Close())
	case "tcp":
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr = ln.Addr().String()
		require.NoError(t, ln.Close())
	default:
		t.Fatalf("unsupported proto %q", proto)
	}
	return mustParse(t, proto+" "+addr)
}

func TestEngineDatagramRoundTrip(t *testing.T) {
	engine := New(NewOptions())
	c := newCollector()
	engine.AddObserver(c)

	listenerEP := reserveEndpoint(t, "udp")
	sourceEP := reserveEndpoint(t, "udp")
	engine.StartListenerAsync(listenerEP)
	engine.StartListenerAsync(sourceEP)
	c.waitFor(t, "destination listener", isListenerStarted(listenerEP))
	c.waitFor(t, "source listener", isListenerStarted(sourceEP))

	engine.SendAsync(&sourceEP, listenerEP, []byte("hi"), "t1")

	received := c.waitFor(t, "Received", func(ev event.Event) bool {
		_, ok := ev.(event.Received)
		return ok
	}).(event.Received)
	assert.Equal(t, []byte("hi"), received.Data)
	assert.Equal(t, sourceEP, received.From,
		"reply-from-same-identity: the datagram must originate from the cached bound socket")

	c.waitFor(t, "Sent", func(ev event.Event) bool {
		sent, ok := ev.(event.Sent)
		return ok && sent.Token == "t1" && sent.BytesSent == 2
	})

	sendingIdx := c.indexOf(func(ev event.Event) bool {
		s, ok := ev.(event.Sending)
		return ok && s.Token == "t1" && s.Bytes == 2
	})
	sentIdx := c.indexOf(func(ev event.Event) bool {
		_, ok := ev.(event.Sent)
		return ok
	})
	require.GreaterOrEqual(t, sendingIdx, 0, "Sending must be emitted")
	assert.Less(t, sendingIdx, sentIdx, "Sending must precede Sent")
}

func TestEngineStreamRoundTrip(t *testing.T) {
	engine := New(NewOptions())
	c := newCollector()
	engine.AddObserver(c)

	listenerEP := reserveEndpoint(t, "tcp")
	engine.StartListenerAsync(listenerEP)
	c.waitFor(t, "listener", isListenerStarted(listenerEP))

	engine.SendAsync(nil, listenerEP, []byte("ping"), "t2")

	c.waitFor(t, "Established", func(ev event.Event) bool {
		_, ok := ev.(event.Established)
		return ok
	})
	c.waitFor(t, "Sent", func(ev event.Event) bool {
		sent, ok := ev.(event.Sent)
		return ok && sent.Token == "t2" && sent.BytesSent == 4
	})
	received := c.waitFor(t, "Received", func(ev event.Event) bool {
		_, ok := ev.(event.Received)
		return ok
	}).(event.Received)
	assert.Equal(t, []byte("ping"), received.Data)

	c.waitFor(t, "Closed", func(ev event.Event) bool {
		_, ok := ev.(event.Closed)
		return ok
	})
}

func TestEngineStreamConnectionRefused(t *testing.T) {
	engine := New(NewOptions())
	c := newCollector()
	engine.AddObserver(c)

	// A reserved-then-released port: nothing listens here.
	target := reserveEndpoint(t, "tcp")
	engine.SendAsync(nil, target, []byte("void"), "t3")

	failed := c.waitFor(t, "ConnectionFailed", func(ev event.Event) bool {
		_, ok := ev.(event.ConnectionFailed)
		return ok
	}).(event.ConnectionFailed)
	assert.Equal(t, event.FailureRefused, failed.Reason)
	assert.Equal(t, "t3", failed.Token)

	for _, ev := range c.log {
		switch ev.(type) {
		case event.Sent, event.Established:
			t.Fatalf("no Sent/Established expected for a refused connect, got %T", ev)
		}
	}
}

func TestEngineListenerConstructionFailure(t *testing.T) {
	engine := New(NewOptions())
	c := newCollector()
	engine.AddObserver(c)

	// Bypasses Parse to hit the address builder's error path.
	bad := endpoint.Endpoint{Proto: endpoint.ProtoBP, Addr: "mailto:x@y"}
	engine.StartListenerAsync(bad)

	c.waitFor(t, "SocketError", func(ev event.Event) bool {
		se, ok := ev.(event.SocketError)
		return ok && se.Endpoint == bad
	})
}

func TestEngineBPSendSurfacesOutcomeAsEvent(t *testing.T) {
	engine := New(NewOptions())
	c := newCollector()
	engine.AddObserver(c)

	target := mustParse(t, "bp ipn:1.2")
	engine.SendAsync(nil, target, []byte("bundle"), "tb")

	// Hosts without the AF_BP kernel module report SendFailed; hosts with
	// it report Sent. Either way the outcome is an event, never a panic or
	// a silent drop.
	c.waitFor(t, "Sent or SendFailed", func(ev event.Event) bool {
		switch e := ev.(type) {
		case event.Sent:
			return e.Token == "tb"
		case event.SendFailed:
			return e.Token == "tb"
		}
		return false
	})
}

func TestEngineSendUnparsedTargetFails(t *testing.T) {
	engine := New(NewOptions())
	c := newCollector()
	engine.AddObserver(c)

	bad := endpoint.Endpoint{Proto: endpoint.ProtoUDP, Addr: "not-a-host-port"}
	engine.SendAsync(nil, bad, []byte("x"), "t4")

	c.waitFor(t, "SendFailed", func(ev event.Event) bool {
		sf, ok := ev.(event.SendFailed)
		return ok && sf.Token == "t4"
	})
}

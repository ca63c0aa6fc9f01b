package event

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/eapache/queue"
	"github.com/sirupsen/logrus"
)

// RecvDelayEnvVar holds an optional artificial delay in milliseconds applied
// to Received events before fan-out, for exercising consumer back-pressure.
// Unset or empty means no delay.
const RecvDelayEnvVar = "SOCKET_ENGINE_RECV_DELAY_MS"

// observerHandle pairs an observer with its own lock so a slow delivery to
// one observer never blocks delivery to the others longer than one event.
type observerHandle struct {
	mu  sync.Mutex
	obs Observer
}

func (h *observerHandle) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": "observerHandle.deliver",
				"panic":    r,
			}).Warn("Observer panicked; skipping it for this event")
		}
	}()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.obs.OnEngineEvent(ev)
}

// Bus fans engine events out to all registered observers. Publication is
// non-blocking: events are appended to a FIFO and drained by a single
// dispatcher goroutine, which preserves publication order across the whole
// engine and guarantees no event is dropped.
type Bus struct {
	clk       clock.Clock
	recvDelay time.Duration

	mu        sync.Mutex
	observers []*observerHandle
	pending   *queue.Queue

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewBus creates a bus and starts its dispatcher. A nil clock selects the
// real clock. The artificial receive delay is read from RecvDelayEnvVar.
func NewBus(clk clock.Clock) *Bus {
	if clk == nil {
		clk = clock.New()
	}
	b := &Bus{
		clk:       clk,
		recvDelay: recvDelayFromEnv(),
		pending:   queue.New(),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go b.dispatchLoop()
	return b
}

// stop terminates the dispatcher. The engine never stops its bus (listener
// loops run until process exit), but tests use this to avoid leaking the
// dispatcher goroutine.
func (b *Bus) stop() {
	b.stopOnce.Do(func() { close(b.done) })
}

func recvDelayFromEnv() time.Duration {
	raw := os.Getenv(RecvDelayEnvVar)
	if raw == "" {
		return 0
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		logrus.WithFields(logrus.Fields{
			"function": "recvDelayFromEnv",
			"value":    raw,
		}).Warn("Ignoring invalid receive delay")
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// AddObserver appends an observer to the registry. Registration is
// append-only for the lifetime of the bus; there is no removal.
func (b *Bus) AddObserver(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, &observerHandle{obs: o})
}

// Publish enqueues an event for delivery to every registered observer.
// Events published from the same goroutine are delivered in publication
// order.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	b.pending.Add(ev)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bus) dispatchLoop() {
	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
		}
		for {
			b.mu.Lock()
			if b.pending.Length() == 0 {
				b.mu.Unlock()
				break
			}
			ev := b.pending.Remove().(Event)
			handles := make([]*observerHandle, len(b.observers))
			copy(handles, b.observers)
			b.mu.Unlock()

			if _, ok := ev.(Received); ok && b.recvDelay > 0 {
				b.clk.Sleep(b.recvDelay)
			}

			for _, h := range handles {
				h.deliver(ev)
			}
		}
	}
}

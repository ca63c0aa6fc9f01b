package socketengine

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/DTN-MTP/socket-engine/transport"
)

// Runner is the execution context the engine dispatches background work
// onto. The default spawns a goroutine per task; tests can inject a
// synchronous or single-threaded runner for deterministic scheduling.
type Runner interface {
	Go(fn func())
}

type goroutineRunner struct{}

func (goroutineRunner) Go(fn func()) { go fn() }

// Options configures an Engine.
type Options struct {
	// PollInterval is the sleep between would-block retries in polling
	// receive loops.
	PollInterval time.Duration

	// ConnectTimeout bounds outbound stream connects.
	ConnectTimeout time.Duration

	// Clock drives polling sleeps and the artificial receive delay.
	Clock clock.Clock

	// Runner executes background listener and sender work.
	Runner Runner
}

// NewOptions returns options with the default timings, the real clock, and
// goroutine-based execution.
func NewOptions() *Options {
	return &Options{
		PollInterval:   transport.DefaultPollInterval,
		ConnectTimeout: transport.DefaultConnectTimeout,
		Clock:          clock.New(),
		Runner:         goroutineRunner{},
	}
}

func (o *Options) withDefaults() *Options {
	out := *o
	if out.PollInterval <= 0 {
		out.PollInterval = transport.DefaultPollInterval
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = transport.DefaultConnectTimeout
	}
	if out.Clock == nil {
		out.Clock = clock.New()
	}
	if out.Runner == nil {
		out.Runner = goroutineRunner{}
	}
	return &out
}

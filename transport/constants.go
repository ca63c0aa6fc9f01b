package transport

import "time"

// Bundle protocol socket constants. AF_BP is the kernel module's address
// family number; it is not defined by golang.org/x/sys.
const (
	AFBP        = 28
	BPSchemeIPN = 1
)

// Buffer sizing.
const (
	// TCPBufferSize is the per-connection stream read buffer. Each read is
	// forwarded as one Received event, whatever the OS returned.
	TCPBufferSize = 4096

	// UDPMaxDatagramSize is the largest payload an IPv4 UDP datagram can
	// carry; receive buffers for datagram-like sockets are sized to it.
	UDPMaxDatagramSize = 65507
)

// Timing defaults, overridable through the engine options.
const (
	// DefaultPollInterval is the sleep between would-block retries in the
	// polling loops.
	DefaultPollInterval = 10 * time.Millisecond

	// DefaultConnectTimeout bounds outbound stream connects.
	DefaultConnectTimeout = 10 * time.Second
)

package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DTN-MTP/socket-engine/endpoint"
)

func TestNewGenericSocketResolvesAddresses(t *testing.T) {
	udp, err := endpoint.Parse("udp 127.0.0.1:0")
	require.NoError(t, err)
	sock, err := NewGenericSocket(udp)
	require.NoError(t, err)
	assert.Equal(t, udp, sock.Endpoint)
	assert.NotNil(t, sock.udpAddr)
	assert.False(t, sock.Listening())

	tcp, err := endpoint.Parse("tcp 127.0.0.1:0")
	require.NoError(t, err)
	sock, err = NewGenericSocket(tcp)
	require.NoError(t, err)
	assert.NotNil(t, sock.tcpAddr)
}

func TestNewGenericSocketRejectsBadBPAddress(t *testing.T) {
	ep := endpoint.Endpoint{Proto: endpoint.ProtoBP, Addr: "ipn:not.numeric"}
	_, err := NewGenericSocket(ep)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidBPAddress)

	ep = endpoint.Endpoint{Proto: endpoint.ProtoBP, Addr: "dtn:somewhere/inbox"}
	_, err = NewGenericSocket(ep)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemeNotImplemented)
}

func TestConfigureForListeningIsIdempotent(t *testing.T) {
	ep, err := endpoint.Parse("udp 127.0.0.1:0")
	require.NoError(t, err)
	sock, err := NewGenericSocket(ep)
	require.NoError(t, err)
	defer sock.Close()

	require.NoError(t, sock.ConfigureForListening(context.Background()))
	require.True(t, sock.Listening())
	bound := sock.LocalAddr()
	require.NotNil(t, bound)

	// Second call must not rebind or error.
	require.NoError(t, sock.ConfigureForListening(context.Background()))
	assert.Equal(t, bound, sock.LocalAddr())
}

func TestConfigureForListeningTCP(t *testing.T) {
	ep, err := endpoint.Parse("tcp 127.0.0.1:0")
	require.NoError(t, err)
	sock, err := NewGenericSocket(ep)
	require.NoError(t, err)
	defer sock.Close()

	require.NoError(t, sock.ConfigureForListening(context.Background()))
	require.NotNil(t, sock.ln)
	require.NoError(t, sock.ConfigureForListening(context.Background()))
}

func TestDuplicateSharesBoundHandle(t *testing.T) {
	ep, err := endpoint.Parse("udp 127.0.0.1:0")
	require.NoError(t, err)
	sock, err := NewGenericSocket(ep)
	require.NoError(t, err)
	defer sock.Close()
	require.NoError(t, sock.ConfigureForListening(context.Background()))

	dup, err := sock.Duplicate()
	require.NoError(t, err)

	assert.Equal(t, sock.Endpoint, dup.Endpoint)
	assert.True(t, dup.Listening())
	assert.Same(t, sock.PacketConn(), dup.PacketConn(),
		"duplicates of a net-backed socket share the same handle")
}

func TestBPSocketCreation(t *testing.T) {
	ep, err := endpoint.Parse("bp ipn:1.2")
	require.NoError(t, err)

	sock, err := NewGenericSocket(ep)
	if err != nil {
		// No AF_BP kernel support on this host (or non-linux build).
		t.Skipf("bundle protocol socket unavailable: %v", err)
	}
	defer sock.Close()

	require.NotNil(t, sock.bpAddr)
	assert.Equal(t, uint32(1), sock.bpAddr.NodeID)
	assert.Equal(t, uint32(2), sock.bpAddr.ServiceID)

	dup, err := sock.Duplicate()
	require.NoError(t, err)
	assert.NotEqual(t, sock.bp.fd, dup.bp.fd, "bundle protocol duplicates get their own descriptor")
	require.NoError(t, dup.Close())
}

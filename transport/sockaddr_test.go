package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBPSockaddrIPN(t *testing.T) {
	sa, err := BuildBPSockaddr("ipn:42.7")
	require.NoError(t, err)

	assert.Equal(t, uint16(AFBP), sa.Family)
	assert.Equal(t, uint32(BPSchemeIPN), sa.Scheme)
	assert.Equal(t, uint32(42), sa.NodeID)
	assert.Equal(t, uint32(7), sa.ServiceID)
	assert.Equal(t, "ipn:42.7", sa.String())
}

func TestBuildBPSockaddrRejects(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr error
	}{
		{"empty", "", ErrInvalidBPAddress},
		{"missing dot", "ipn:12", ErrInvalidBPAddress},
		{"too many dots", "ipn:1.2.3", ErrInvalidBPAddress},
		{"empty node", "ipn:.2", ErrInvalidBPAddress},
		{"empty service", "ipn:1.", ErrInvalidBPAddress},
		{"non-numeric node", "ipn:abc.1", ErrInvalidBPAddress},
		{"non-numeric service", "ipn:1.abc", ErrInvalidBPAddress},
		{"node overflow", "ipn:4294967296.1", ErrInvalidBPAddress},
		{"dtn unimplemented", "dtn:nodename/inbox", ErrSchemeNotImplemented},
		{"unknown scheme", "mailto:x@y", ErrInvalidBPAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildBPSockaddr(tt.addr)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBPSockaddrMarshalLayout(t *testing.T) {
	sa, err := BuildBPSockaddr("ipn:42.7")
	require.NoError(t, err)

	storage, length := sa.Marshal()
	require.Equal(t, BPSockaddrLen, length, "declared length must be the struct size, not the storage capacity")

	assert.Equal(t, uint16(AFBP), nativeEndian.Uint16(storage[0:2]))
	assert.Equal(t, []byte{0, 0}, storage[2:4], "struct padding must be zero")
	assert.Equal(t, uint32(BPSchemeIPN), nativeEndian.Uint32(storage[4:8]))
	assert.Equal(t, uint32(42), nativeEndian.Uint32(storage[8:12]))
	assert.Equal(t, uint32(7), nativeEndian.Uint32(storage[12:16]))

	var zeros [SockaddrStorageLen - BPSockaddrLen]byte
	assert.Equal(t, zeros[:], storage[BPSockaddrLen:], "storage beyond the record must stay zeroed")
}

func TestBPSockaddrServiceIDIsolation(t *testing.T) {
	a, err := BuildBPSockaddr("ipn:1.2")
	require.NoError(t, err)
	b, err := BuildBPSockaddr("ipn:1.3")
	require.NoError(t, err)

	sa, la := a.Marshal()
	sb, lb := b.Marshal()
	require.Equal(t, la, lb)

	// The two records may differ only in the service id field's bytes.
	assert.True(t, bytes.Equal(sa[:12], sb[:12]), "bytes before the service id must match")
	assert.False(t, bytes.Equal(sa[12:16], sb[12:16]), "service id bytes must differ")
	assert.True(t, bytes.Equal(sa[16:], sb[16:]), "bytes after the record must match")
}

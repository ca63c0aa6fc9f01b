package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unsafe"
)

// Low-level address construction errors.
var (
	ErrInvalidBPAddress     = errors.New("invalid bundle protocol address")
	ErrSchemeNotImplemented = errors.New("dtn scheme not yet implemented")
)

// BPSockaddr is the explicit form of the kernel's sockaddr_bp record for the
// IPN naming scheme. The C layout it must serialize to is
//
//	struct sockaddr_bp {
//	    sa_family_t bp_family;   // offset 0, 2 bytes
//	    uint32_t    bp_scheme;   // offset 4
//	    union { struct { uint32_t node_id, service_id; } ipn; } bp_addr;
//	};                           // offsets 8 and 12, total size 16
//
// fields in host byte order.
type BPSockaddr struct {
	Family    uint16
	Scheme    uint32
	NodeID    uint32
	ServiceID uint32
}

// BPSockaddrLen is the byte size of the serialized record, and the value
// passed as the address length in socket calls. The zero padding of the
// storage beyond it is never counted.
const BPSockaddrLen = 16

// SockaddrStorageLen is the size of struct sockaddr_storage, the generic
// buffer every socket call accepts regardless of family.
const SockaddrStorageLen = 128

// nativeEndian is the host byte order; sockaddr integer fields for this
// family are written natively, not network order. This probe is the only
// unsafe code in the package outside the raw syscalls.
var nativeEndian binary.ByteOrder = func() binary.ByteOrder {
	var x uint16 = 0x00FF
	if *(*byte)(unsafe.Pointer(&x)) == 0xFF {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// BuildBPSockaddr converts a bundle protocol address string into its
// low-level record. Only the "ipn:<node>.<service>" scheme is implemented;
// "dtn:" names are recognized but rejected as unimplemented.
func BuildBPSockaddr(addr string) (*BPSockaddr, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidBPAddress)
	}

	if body, ok := strings.CutPrefix(addr, "ipn:"); ok {
		node, service, found := strings.Cut(body, ".")
		if !found || node == "" || service == "" || strings.Contains(service, ".") {
			return nil, fmt.Errorf("%w: %q is not ipn:<node>.<service>", ErrInvalidBPAddress, addr)
		}
		nodeID, err := strconv.ParseUint(node, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid node id %q", ErrInvalidBPAddress, node)
		}
		serviceID, err := strconv.ParseUint(service, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid service id %q", ErrInvalidBPAddress, service)
		}
		return &BPSockaddr{
			Family:    AFBP,
			Scheme:    BPSchemeIPN,
			NodeID:    uint32(nodeID),
			ServiceID: uint32(serviceID),
		}, nil
	}

	if strings.HasPrefix(addr, "dtn:") {
		return nil, ErrSchemeNotImplemented
	}
	return nil, fmt.Errorf("%w: unknown scheme in %q", ErrInvalidBPAddress, addr)
}

// Marshal serializes the record into a zero-initialized generic address
// storage buffer and returns it with the record's true byte length. This is
// the single boundary where the in-memory layout is produced.
func (sa *BPSockaddr) Marshal() (storage [SockaddrStorageLen]byte, length int) {
	nativeEndian.PutUint16(storage[0:2], sa.Family)
	// 2 bytes of struct padding before bp_scheme.
	nativeEndian.PutUint32(storage[4:8], sa.Scheme)
	nativeEndian.PutUint32(storage[8:12], sa.NodeID)
	nativeEndian.PutUint32(storage[12:16], sa.ServiceID)
	return storage, BPSockaddrLen
}

// String renders the address back into its naming-scheme form.
func (sa *BPSockaddr) String() string {
	if sa.Scheme == BPSchemeIPN {
		return fmt.Sprintf("ipn:%d.%d", sa.NodeID, sa.ServiceID)
	}
	return fmt.Sprintf("scheme %d unknown", sa.Scheme)
}

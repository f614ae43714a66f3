package dns

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// Kind identifies one of the record types this tool manages.
type Kind int

const (
	KindHost Kind = iota + 1
	KindHostAddressV4
	KindHostAddressV6
	KindPTR
)

// ErrInvalidReference is returned when a reference does not name a known record kind.
var ErrInvalidReference = errors.New("invalid record reference")

// Object returns the WAPI object path for the kind, e.g. "record:host".
func (k Kind) Object() string {
	switch k {
	case KindHost:
		return "record:host"
	case KindHostAddressV4:
		return "record:host_ipv4addr"
	case KindHostAddressV6:
		return "record:host_ipv6addr"
	case KindPTR:
		return "record:ptr"
	default:
		return ""
	}
}

func (k Kind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindHostAddressV4:
		return "host-ipv4"
	case KindHostAddressV6:
		return "host-ipv6"
	case KindPTR:
		return "ptr"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// HostAddressKind returns the host-address kind matching the address family.
func HostAddressKind(addr netip.Addr) Kind {
	if addr.Unmap().Is4() {
		return KindHostAddressV4
	}
	return KindHostAddressV6
}

// Reference is the opaque handle the appliance issues for a persisted record.
// Raw is passed back verbatim on update and delete.
type Reference struct {
	Kind Kind
	Raw  string
}

func (r Reference) String() string { return r.Raw }

// IsZero reports whether the reference is unset, i.e. the record was never persisted.
func (r Reference) IsZero() bool { return r.Raw == "" }

// ParseReference classifies a WAPI reference such as
// "record:host/ZG5zLmhvc3Qk...:app.example.com/default" by its object prefix.
func ParseReference(raw string) (Reference, error) {
	object, _, ok := strings.Cut(raw, "/")
	if !ok || object == "" {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, raw)
	}
	var kind Kind
	switch object {
	case "record:host":
		kind = KindHost
	case "record:host_ipv4addr":
		kind = KindHostAddressV4
	case "record:host_ipv6addr":
		kind = KindHostAddressV6
	case "record:ptr":
		kind = KindPTR
	default:
		return Reference{}, fmt.Errorf("%w: unsupported object %q", ErrInvalidReference, object)
	}
	return Reference{Kind: kind, Raw: raw}, nil
}

// HostAddress is a single forward address entry of a host record.
type HostAddress struct {
	Address          netip.Addr
	ConfigureForDHCP bool
	MAC              string
}

// HostRecord maps a hostname to an ordered set of addresses.
//
// A HostRecord returned by a by-address lookup carries the reference of the
// matching address entry (KindHostAddressV4/V6) rather than of the parent host.
type HostRecord struct {
	Ref       Reference
	Name      string
	Addresses []HostAddress
	Comment   string
}

// FirstAddress returns the first forward address, or the zero Addr when there is none.
func (h *HostRecord) FirstAddress() netip.Addr {
	if h == nil || len(h.Addresses) == 0 {
		return netip.Addr{}
	}
	return h.Addresses[0].Address
}

// FirstAddressLike returns the first forward address in the same family as
// addr, or the zero Addr when the host has none in that family.
func (h *HostRecord) FirstAddressLike(addr netip.Addr) netip.Addr {
	if h == nil {
		return netip.Addr{}
	}
	want4 := addr.Unmap().Is4()
	for _, a := range h.Addresses {
		got := a.Address.Unmap()
		if got.Is4() == want4 {
			return got
		}
	}
	return netip.Addr{}
}

// AddressRecord is a PTR record mapping an address back to a hostname.
type AddressRecord struct {
	Ref      Reference
	Address  netip.Addr
	PointsTo string
	Comment  string
}

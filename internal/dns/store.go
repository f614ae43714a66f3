package dns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
)

// ErrAmbiguousMatch is matched by errors.Is for any *AmbiguousMatchError.
var ErrAmbiguousMatch = errors.New("multiple records matched")

// AmbiguousMatchError reports a lookup that matched more than one record.
type AmbiguousMatchError struct {
	Kind  Kind
	Query string
	Count int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%s lookup %s: %d records matched, expected at most one", e.Kind, e.Query, e.Count)
}

func (e *AmbiguousMatchError) Is(target error) bool { return target == ErrAmbiguousMatch }

// Store is the record store the reconciler works against.
// Lookups return (nil, nil) when nothing matched.
type Store interface {
	FindHostByName(ctx context.Context, name string) (*HostRecord, error)
	FindHostByAddress(ctx context.Context, addr netip.Addr) (*HostRecord, error)
	FindPtrByName(ctx context.Context, name string) (*AddressRecord, error)
	FindPtrByAddress(ctx context.Context, addr netip.Addr) (*AddressRecord, error)
	CreateHost(ctx context.Context, name string, addr netip.Addr, comment string) (Reference, error)
	CreatePtr(ctx context.Context, name string, addr netip.Addr, comment string) (Reference, error)
	DeleteByReference(ctx context.Context, ref Reference) error
}

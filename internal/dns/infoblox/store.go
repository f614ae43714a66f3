package infoblox

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/ib-host-tool/internal/dns"
)

// Store implements dns.Store on top of the WAPI client.
type Store struct {
	client *Client
	view   string
	log    logr.Logger
}

var _ dns.Store = (*Store)(nil)

// NewStore returns a Store backed by client. When view is non-empty, searches
// are restricted to that DNS view and new records are created in it.
func NewStore(client *Client, view string, log logr.Logger) *Store {
	return &Store{client: client, view: view, log: log}
}

// addrField returns the WAPI field name for the address family.
func addrField(addr netip.Addr) string {
	if addr.Unmap().Is4() {
		return "ipv4addr"
	}
	return "ipv6addr"
}

func addrString(addr netip.Addr) string {
	return addr.Unmap().String()
}

func (s *Store) query(field, value, returnFields string) url.Values {
	q := url.Values{}
	q.Set(field, value)
	if s.view != "" {
		q.Set("view", s.view)
	}
	if returnFields != "" {
		q.Set("_return_fields+", returnFields)
	}
	return q
}

func parseRef(raw string) (dns.Reference, error) {
	ref, err := dns.ParseReference(raw)
	if err != nil {
		return dns.Reference{}, fmt.Errorf("infoblox: %w", err)
	}
	return ref, nil
}

func toHostAddresses(objs []hostAddrObj) ([]dns.HostAddress, error) {
	out := make([]dns.HostAddress, 0, len(objs))
	for _, o := range objs {
		addr, err := netip.ParseAddr(o.addr())
		if err != nil {
			return nil, fmt.Errorf("infoblox: host address %q: %w", o.addr(), err)
		}
		ha := dns.HostAddress{Address: addr, MAC: o.MAC}
		if o.ConfigureForDHCP != nil {
			ha.ConfigureForDHCP = *o.ConfigureForDHCP
		}
		out = append(out, ha)
	}
	return out, nil
}

// FindHostByName returns the host record named name, or nil.
func (s *Store) FindHostByName(ctx context.Context, name string) (*dns.HostRecord, error) {
	q := s.query("name", dns.NormalizeName(name), "comment,ipv6addrs")
	var rows []hostObject
	if err := s.client.Get(ctx, dns.KindHost.Object(), q, &rows); err != nil {
		return nil, err
	}
	s.log.V(1).Info("host lookup by name", "name", name, "matches", len(rows))
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 {
		return nil, &dns.AmbiguousMatchError{Kind: dns.KindHost, Query: "name=" + name, Count: len(rows)}
	}

	row := rows[0]
	ref, err := parseRef(row.Ref)
	if err != nil {
		return nil, err
	}
	addrs, err := toHostAddresses(append(row.Ipv4Addrs, row.Ipv6Addrs...))
	if err != nil {
		return nil, err
	}
	return &dns.HostRecord{Ref: ref, Name: row.Name, Addresses: addrs, Comment: row.Comment}, nil
}

// FindHostByAddress returns the host address entry holding addr, or nil.
func (s *Store) FindHostByAddress(ctx context.Context, addr netip.Addr) (*dns.HostRecord, error) {
	kind := dns.HostAddressKind(addr)
	field := addrField(addr)
	q := s.query(field, addrString(addr), "")
	var rows []hostAddrObj
	if err := s.client.Get(ctx, kind.Object(), q, &rows); err != nil {
		return nil, err
	}
	s.log.V(1).Info("host lookup by address", "address", addr, "matches", len(rows))
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 {
		return nil, &dns.AmbiguousMatchError{Kind: kind, Query: field + "=" + addrString(addr), Count: len(rows)}
	}

	row := rows[0]
	ref, err := parseRef(row.Ref)
	if err != nil {
		return nil, err
	}
	addrs, err := toHostAddresses(rows)
	if err != nil {
		return nil, err
	}
	return &dns.HostRecord{Ref: ref, Name: row.Host, Addresses: addrs}, nil
}

func (s *Store) findPtr(ctx context.Context, field, value string) (*dns.AddressRecord, error) {
	q := s.query(field, value, "ipv4addr,ipv6addr,comment")
	var rows []ptrObject
	if err := s.client.Get(ctx, dns.KindPTR.Object(), q, &rows); err != nil {
		return nil, err
	}
	s.log.V(1).Info("ptr lookup", "field", field, "value", value, "matches", len(rows))
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 {
		return nil, &dns.AmbiguousMatchError{Kind: dns.KindPTR, Query: field + "=" + value, Count: len(rows)}
	}

	row := rows[0]
	ref, err := parseRef(row.Ref)
	if err != nil {
		return nil, err
	}
	rec := &dns.AddressRecord{Ref: ref, PointsTo: row.PtrDname, Comment: row.Comment}
	if a := row.addr(); a != "" {
		addr, err := netip.ParseAddr(a)
		if err != nil {
			return nil, fmt.Errorf("infoblox: ptr address %q: %w", a, err)
		}
		rec.Address = addr
	}
	return rec, nil
}

// FindPtrByName returns the PTR record pointing at name, or nil.
func (s *Store) FindPtrByName(ctx context.Context, name string) (*dns.AddressRecord, error) {
	return s.findPtr(ctx, "ptrdname", dns.NormalizeName(name))
}

// FindPtrByAddress returns the PTR record for addr, or nil.
func (s *Store) FindPtrByAddress(ctx context.Context, addr netip.Addr) (*dns.AddressRecord, error) {
	return s.findPtr(ctx, addrField(addr), addrString(addr))
}

// CreateHost creates a host record mapping name to addr.
func (s *Store) CreateHost(ctx context.Context, name string, addr netip.Addr, comment string) (dns.Reference, error) {
	body := hostObject{
		Name:    dns.NormalizeName(name),
		Comment: comment,
		View:    s.view,
	}
	if addrField(addr) == "ipv6addr" {
		body.Ipv6Addrs = []hostAddrObj{{Ipv6Addr: addrString(addr)}}
	} else {
		body.Ipv4Addrs = []hostAddrObj{{Ipv4Addr: addrString(addr)}}
	}

	s.log.Info("creating host record", "name", name, "address", addr)
	raw, err := s.client.Post(ctx, dns.KindHost.Object(), body)
	if err != nil {
		return dns.Reference{}, fmt.Errorf("creating host record for %s: %w", name, err)
	}
	s.log.Info("host record created", "ref", raw)
	return parseRef(raw)
}

// CreatePtr creates a PTR record mapping addr back to name.
func (s *Store) CreatePtr(ctx context.Context, name string, addr netip.Addr, comment string) (dns.Reference, error) {
	body := ptrObject{
		PtrDname: dns.NormalizeName(name),
		Comment:  comment,
		View:     s.view,
	}
	if addrField(addr) == "ipv6addr" {
		body.Ipv6Addr = addrString(addr)
	} else {
		body.Ipv4Addr = addrString(addr)
	}

	s.log.Info("creating ptr record", "name", name, "address", addr)
	raw, err := s.client.Post(ctx, dns.KindPTR.Object(), body)
	if err != nil {
		return dns.Reference{}, fmt.Errorf("creating ptr record for %s: %w", addr, err)
	}
	s.log.Info("ptr record created", "ref", raw)
	return parseRef(raw)
}

// DeleteByReference removes the record behind ref.
func (s *Store) DeleteByReference(ctx context.Context, ref dns.Reference) error {
	if ref.IsZero() {
		return fmt.Errorf("infoblox: delete: %w: empty reference", dns.ErrInvalidReference)
	}
	s.log.Info("deleting record", "kind", ref.Kind.String(), "ref", ref.Raw)
	if err := s.client.Delete(ctx, ref.Raw); err != nil {
		return fmt.Errorf("deleting %s record: %w", ref.Kind, err)
	}
	return nil
}

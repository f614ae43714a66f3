package dns

import (
	"errors"
	"net/netip"
	"testing"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		raw      string
		wantKind Kind
		wantErr  bool
	}{
		{"record:host/ZG5zLmhvc3QkLl9kZWZhdWx0LmNvbS5leGFtcGxlLmFwcA:app.example.com/default", KindHost, false},
		{"record:host_ipv4addr/ZG5zLmhvc3RfYWRkcmVzcyQ:10.0.0.1/app.example.com/default", KindHostAddressV4, false},
		{"record:host_ipv6addr/ZG5zLmhvc3RfYWRkcmVzcyQ:2001%3Adb8%3A%3A1/app.example.com/default", KindHostAddressV6, false},
		{"record:ptr/ZG5zLmJpbmRfcHRyJA:1.0.0.10.in-addr.arpa/default", KindPTR, false},
		{"record:a/ZG5zLmJpbmRfYSQ:app.example.com/default", 0, true},
		{"record:host", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			ref, err := ParseReference(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidReference) {
					t.Fatalf("ParseReference(%q): expected ErrInvalidReference, got %v", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReference(%q): unexpected error: %v", tt.raw, err)
			}
			if ref.Kind != tt.wantKind {
				t.Errorf("ParseReference(%q): got kind %s, want %s", tt.raw, ref.Kind, tt.wantKind)
			}
			if ref.Raw != tt.raw {
				t.Errorf("ParseReference(%q): raw changed to %q", tt.raw, ref.Raw)
			}
		})
	}
}

func TestKindObject(t *testing.T) {
	want := map[Kind]string{
		KindHost:          "record:host",
		KindHostAddressV4: "record:host_ipv4addr",
		KindHostAddressV6: "record:host_ipv6addr",
		KindPTR:           "record:ptr",
	}
	for k, obj := range want {
		if got := k.Object(); got != obj {
			t.Errorf("%s.Object(): got %q, want %q", k, got, obj)
		}
	}
	if got := Kind(99).Object(); got != "" {
		t.Errorf("unknown kind Object(): got %q, want empty", got)
	}
}

func TestHostAddressKind(t *testing.T) {
	if k := HostAddressKind(netip.MustParseAddr("10.0.0.1")); k != KindHostAddressV4 {
		t.Errorf("expected host-ipv4 for 10.0.0.1, got %s", k)
	}
	if k := HostAddressKind(netip.MustParseAddr("::ffff:10.0.0.1")); k != KindHostAddressV4 {
		t.Errorf("expected host-ipv4 for mapped address, got %s", k)
	}
	if k := HostAddressKind(netip.MustParseAddr("2001:db8::1")); k != KindHostAddressV6 {
		t.Errorf("expected host-ipv6 for 2001:db8::1, got %s", k)
	}
}

func TestFirstAddress(t *testing.T) {
	var nilHost *HostRecord
	if nilHost.FirstAddress().IsValid() {
		t.Error("expected invalid address for nil host")
	}

	h := &HostRecord{Addresses: []HostAddress{
		{Address: netip.MustParseAddr("10.0.0.2")},
		{Address: netip.MustParseAddr("10.0.0.3")},
	}}
	if got := h.FirstAddress(); got != netip.MustParseAddr("10.0.0.2") {
		t.Errorf("expected 10.0.0.2, got %s", got)
	}
}

func TestFirstAddressLike(t *testing.T) {
	h := &HostRecord{Addresses: []HostAddress{
		{Address: netip.MustParseAddr("10.0.0.2")},
		{Address: netip.MustParseAddr("2001:db8::2")},
		{Address: netip.MustParseAddr("2001:db8::3")},
	}}

	tests := []struct {
		like string
		want netip.Addr
	}{
		{"10.9.9.9", netip.MustParseAddr("10.0.0.2")},
		{"::ffff:10.9.9.9", netip.MustParseAddr("10.0.0.2")},
		{"2001:db8::9", netip.MustParseAddr("2001:db8::2")},
	}
	for _, tt := range tests {
		t.Run(tt.like, func(t *testing.T) {
			if got := h.FirstAddressLike(netip.MustParseAddr(tt.like)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	v4only := &HostRecord{Addresses: []HostAddress{{Address: netip.MustParseAddr("10.0.0.2")}}}
	if v4only.FirstAddressLike(netip.MustParseAddr("2001:db8::9")).IsValid() {
		t.Error("expected no IPv6 address on an IPv4-only host")
	}
	var nilHost *HostRecord
	if nilHost.FirstAddressLike(netip.MustParseAddr("10.0.0.1")).IsValid() {
		t.Error("expected invalid address for nil host")
	}
}

func TestAmbiguousMatchError(t *testing.T) {
	var err error = &AmbiguousMatchError{Kind: KindPTR, Query: "ptrdname=app.example.com", Count: 2}
	if !errors.Is(err, ErrAmbiguousMatch) {
		t.Fatal("expected errors.Is(err, ErrAmbiguousMatch)")
	}
	want := "ptr lookup ptrdname=app.example.com: 2 records matched, expected at most one"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

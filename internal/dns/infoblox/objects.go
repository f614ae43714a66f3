package infoblox

// hostObject is the record:host shape.
type hostObject struct {
	Ref       string        `json:"_ref,omitempty"`
	Name      string        `json:"name"`
	Comment   string        `json:"comment,omitempty"`
	Ipv4Addrs []hostAddrObj `json:"ipv4addrs,omitempty"`
	Ipv6Addrs []hostAddrObj `json:"ipv6addrs,omitempty"`
	View      string        `json:"view,omitempty"`
}

// hostAddrObj is a record:host_ipv4addr or record:host_ipv6addr entry,
// either nested in a host or returned by a by-address search.
type hostAddrObj struct {
	Ref              string `json:"_ref,omitempty"`
	Host             string `json:"host,omitempty"`
	Ipv4Addr         string `json:"ipv4addr,omitempty"`
	Ipv6Addr         string `json:"ipv6addr,omitempty"`
	ConfigureForDHCP *bool  `json:"configure_for_dhcp,omitempty"`
	MAC              string `json:"mac,omitempty"`
}

func (a hostAddrObj) addr() string {
	if a.Ipv4Addr != "" {
		return a.Ipv4Addr
	}
	return a.Ipv6Addr
}

// ptrObject is the record:ptr shape.
type ptrObject struct {
	Ref      string `json:"_ref,omitempty"`
	PtrDname string `json:"ptrdname"`
	Ipv4Addr string `json:"ipv4addr,omitempty"`
	Ipv6Addr string `json:"ipv6addr,omitempty"`
	Name     string `json:"name,omitempty"`
	Comment  string `json:"comment,omitempty"`
	View     string `json:"view,omitempty"`
}

func (p ptrObject) addr() string {
	if p.Ipv4Addr != "" {
		return p.Ipv4Addr
	}
	return p.Ipv6Addr
}

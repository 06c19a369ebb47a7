// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package utils

import (
	"net"
	"testing"
)

func TestIPv4Uint32RoundTrip(t *testing.T) {
	cases := []struct {
		ip   string
		long uint32
	}{
		{"127.0.0.1", 2130706433},
		{"0.0.0.0", 0},
		{"255.255.255.255", 4294967295},
		{"192.168.1.10", 3232235786},
	}
	for _, c := range cases {
		long, err := IPv4ToUint32(net.ParseIP(c.ip))
		if err != nil {
			t.Fatalf("%s: %v", c.ip, err)
		}
		if long != c.long {
			t.Errorf("%s: expected %d, got %d", c.ip, c.long, long)
		}
		back := Uint32ToIPv4(long)
		if back.String() != c.ip {
			t.Errorf("%d: expected %s, got %s", long, c.ip, back.String())
		}
	}
}

func TestIPv4ToUint32RejectsIPv6(t *testing.T) {
	_, err := IPv4ToUint32(net.ParseIP("2001:db8::1"))
	if err == nil {
		t.Error("expected an error for an IPv6 address")
	}
}

func TestAddrToIP(t *testing.T) {
	tcpAddr := &net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 6667}
	if ip := AddrToIP(tcpAddr); ip.String() != "10.0.0.1" {
		t.Errorf("expected 10.0.0.1, got %s", ip)
	}
}

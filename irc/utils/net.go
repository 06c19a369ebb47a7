// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2016 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package utils

import (
	"encoding/binary"
	"errors"
	"net"
)

var (
	ErrNotIPv4 = errors.New("not an IPv4 address")
)

// AddrToIP returns the IP address for a net.Addr, or nil if it has none
// (e.g. a unix domain socket).
func AddrToIP(addr net.Addr) net.IP {
	if tcpaddr, ok := addr.(*net.TCPAddr); ok {
		return tcpaddr.IP
	}
	return nil
}

// IPv4ToUint32 encodes an IPv4 address as an unsigned 32-bit integer,
// most significant octet first, as used on the wire by DCC offers.
func IPv4ToUint32(ip net.IP) (result uint32, err error) {
	quad := ip.To4()
	if quad == nil {
		return 0, ErrNotIPv4
	}
	return binary.BigEndian.Uint32(quad), nil
}

// Uint32ToIPv4 is the inverse of IPv4ToUint32.
func Uint32ToIPv4(addr uint32) net.IP {
	var quad [4]byte
	binary.BigEndian.PutUint32(quad[:], addr)
	return net.IPv4(quad[0], quad[1], quad[2], quad[3])
}

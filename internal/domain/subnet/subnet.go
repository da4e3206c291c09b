// Package subnet выбирает адреса хостов из IPv4 подсетей
package subnet

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"net/netip"
)

// HostCount возвращает число адресов хостов в подсети.
// Для префиксов до /30 сетевой и broadcast адреса исключаются,
// /31 и /32 отдают все адреса.
func HostCount(p netip.Prefix) uint64 {
	bits := p.Bits()
	size := uint64(1) << (32 - bits)
	if bits >= 31 {
		return size
	}
	return size - 2
}

// firstHost возвращает первый адрес хоста как число
func firstHost(p netip.Prefix) uint32 {
	base := toUint32(p.Masked().Addr())
	if p.Bits() >= 31 {
		return base
	}
	return base + 1
}

// Hosts возвращает первые limit хостов подсети по порядку
func Hosts(p netip.Prefix, limit int) ([]netip.Addr, error) {
	if !p.IsValid() || !p.Addr().Is4() {
		return nil, fmt.Errorf("not an IPv4 subnet: %s", p)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	n := HostCount(p)
	if uint64(limit) < n {
		n = uint64(limit)
	}

	first := firstHost(p)
	hosts := make([]netip.Addr, 0, n)
	for i := uint64(0); i < n; i++ {
		hosts = append(hosts, fromUint32(first+uint32(i)))
	}
	return hosts, nil
}

// RandomHost равновероятно выбирает хост из подсети
func RandomHost(p netip.Prefix, rng *rand.Rand) netip.Addr {
	offset := rng.Uint64N(HostCount(p))
	return fromUint32(firstHost(p) + uint32(offset))
}

func toUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func fromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

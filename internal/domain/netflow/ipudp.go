package netflow

import (
	"encoding/binary"
	"net/netip"
)

const (
	IPv4HeaderSize = 20
	UDPHeaderSize  = 8

	// Port стандартный порт NetFlow, используется как source и destination
	Port = 2055

	defaultTTL = 64
)

type IPv4Header struct {
	TOS         uint8
	TotalLength uint16
	ID          uint16
	TTL         uint8
	Protocol    uint8
	Checksum    uint16
	SrcIP       netip.Addr
	DstIP       netip.Addr
}

// WriteIPv4 пишет 20-байтовый заголовок без опций (Version=4, IHL=5, без фрагментации)
func WriteIPv4(buf []byte, ip *IPv4Header) {
	_ = buf[IPv4HeaderSize-1]
	buf[0] = 4<<4 | 5
	buf[1] = ip.TOS
	binary.BigEndian.PutUint16(buf[2:4], ip.TotalLength)
	binary.BigEndian.PutUint16(buf[4:6], ip.ID)
	binary.BigEndian.PutUint16(buf[6:8], 0) // flags + fragment offset
	buf[8] = ip.TTL
	buf[9] = ip.Protocol
	binary.BigEndian.PutUint16(buf[10:12], ip.Checksum)
	src := ip.SrcIP.As4()
	dst := ip.DstIP.As4()
	copy(buf[12:16], src[:])
	copy(buf[16:20], dst[:])
}

type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
}

func WriteUDP(buf []byte, udp *UDPHeader) {
	_ = buf[UDPHeaderSize-1]
	binary.BigEndian.PutUint16(buf[0:2], udp.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], udp.DstPort)
	binary.BigEndian.PutUint16(buf[4:6], udp.Length)
	binary.BigEndian.PutUint16(buf[6:8], udp.Checksum)
}

// IPv4Checksum считает контрольную сумму заголовка; поле checksum должно быть обнулено
func IPv4Checksum(header []byte) uint16 {
	return ^fold(sum16(0, header))
}

// UDPChecksum считает контрольную сумму UDP с псевдозаголовком.
// ipHeader - 20 байт IPv4 заголовка, segment - UDP заголовок + данные
// с обнулённым полем checksum.
func UDPChecksum(ipHeader, segment []byte) uint16 {
	sum := sum16(0, ipHeader[12:20]) // src + dst
	sum += uint32(ProtocolUDP)
	sum += uint32(len(segment))
	sum = sum16(sum, segment)

	checksum := ^fold(sum)
	if checksum == 0 {
		checksum = 0xFFFF // для UDP 0 означает "не считалась"
	}
	return checksum
}

func sum16(sum uint32, b []byte) uint32 {
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	if n%2 == 1 {
		sum += uint32(b[n-1]) << 8
	}
	return sum
}

func fold(sum uint32) uint16 {
	for sum > 0xFFFF {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return uint16(sum)
}

package netflow

import (
	"encoding/binary"
	"net/netip"
)

const (
	ProtocolTCP uint8 = 6
	ProtocolUDP uint8 = 17
)

// V5Record представляет одну flow запись в NetFlow v5 пакете (48 байт)
type V5Record struct {
	SrcAddr  [4]byte // IP адрес источника
	DstAddr  [4]byte // IP адрес назначения
	NextHop  [4]byte // IP адрес следующего hop (0.0.0.0)
	Input    uint16  // SNMP индекс входного интерфейса
	Output   uint16  // SNMP индекс выходного интерфейса
	Packets  uint32  // Количество пакетов в flow
	Bytes    uint32  // Количество байт в flow
	First    uint32  // SysUptime первого пакета
	Last     uint32  // SysUptime последнего пакета
	SrcPort  uint16  // TCP/UDP порт источника
	DstPort  uint16  // TCP/UDP порт назначения
	Pad1     uint8   // Unused (zero)
	TCPFlags uint8   // Совокупность TCP флагов
	Protocol uint8   // IP протокол (6=TCP, 17=UDP)
	ToS      uint8   // IP Type of Service
	SrcAS    uint16  // Autonomous system источника
	DstAS    uint16  // Autonomous system назначения
	SrcMask  uint8   // Маска подсети источника
	DstMask  uint8   // Маска подсети назначения
	Pad2     uint16  // Unused (zero)
}

// SetAddrs копирует IPv4 адреса источника и назначения
func (r *V5Record) SetAddrs(src, dst netip.Addr) {
	r.SrcAddr = src.As4()
	r.DstAddr = dst.As4()
}

// MarshalTo пишет запись в первые RecordSize байт buf
func (r *V5Record) MarshalTo(buf []byte) {
	_ = buf[RecordSize-1]

	copy(buf[0:4], r.SrcAddr[:])
	copy(buf[4:8], r.DstAddr[:])
	copy(buf[8:12], r.NextHop[:])

	binary.BigEndian.PutUint16(buf[12:14], r.Input)
	binary.BigEndian.PutUint16(buf[14:16], r.Output)

	binary.BigEndian.PutUint32(buf[16:20], r.Packets)
	binary.BigEndian.PutUint32(buf[20:24], r.Bytes)
	binary.BigEndian.PutUint32(buf[24:28], r.First)
	binary.BigEndian.PutUint32(buf[28:32], r.Last)

	binary.BigEndian.PutUint16(buf[32:34], r.SrcPort)
	binary.BigEndian.PutUint16(buf[34:36], r.DstPort)
	buf[36] = r.Pad1
	buf[37] = r.TCPFlags
	buf[38] = r.Protocol
	buf[39] = r.ToS

	binary.BigEndian.PutUint16(buf[40:42], r.SrcAS)
	binary.BigEndian.PutUint16(buf[42:44], r.DstAS)
	buf[44] = r.SrcMask
	buf[45] = r.DstMask
	binary.BigEndian.PutUint16(buf[46:48], r.Pad2)
}

// ToBytes сериализует запись в байты (network byte order)
func (r *V5Record) ToBytes() []byte {
	buf := make([]byte, RecordSize)
	r.MarshalTo(buf)
	return buf
}

// ParseV5Record обратная операция к MarshalTo
func ParseV5Record(buf []byte) (*V5Record, bool) {
	if len(buf) < RecordSize {
		return nil, false
	}
	r := &V5Record{
		Input:    binary.BigEndian.Uint16(buf[12:14]),
		Output:   binary.BigEndian.Uint16(buf[14:16]),
		Packets:  binary.BigEndian.Uint32(buf[16:20]),
		Bytes:    binary.BigEndian.Uint32(buf[20:24]),
		First:    binary.BigEndian.Uint32(buf[24:28]),
		Last:     binary.BigEndian.Uint32(buf[28:32]),
		SrcPort:  binary.BigEndian.Uint16(buf[32:34]),
		DstPort:  binary.BigEndian.Uint16(buf[34:36]),
		Pad1:     buf[36],
		TCPFlags: buf[37],
		Protocol: buf[38],
		ToS:      buf[39],
		SrcAS:    binary.BigEndian.Uint16(buf[40:42]),
		DstAS:    binary.BigEndian.Uint16(buf[42:44]),
		SrcMask:  buf[44],
		DstMask:  buf[45],
		Pad2:     binary.BigEndian.Uint16(buf[46:48]),
	}
	copy(r.SrcAddr[:], buf[0:4])
	copy(r.DstAddr[:], buf[4:8])
	copy(r.NextHop[:], buf[8:12])
	return r, true
}

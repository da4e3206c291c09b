package netflow

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/netip"

	"github.com/NGRsoftlab/nf5gen/internal/domain/subnet"
)

// PacketSize полный размер пакета: IPv4 + UDP + заголовок NetFlow + записи
const PacketSize = IPv4HeaderSize + UDPHeaderSize + HeaderSize + RecordsPerPacket*RecordSize

// ErrInvalidSource адрес из enrichment пула не является IPv4.
// Пул валидируется при загрузке, поэтому ошибка означает нарушение целостности.
var ErrInvalidSource = errors.New("invalid enrichment source address")

// AddressSource бесконечный источник адресов для поля SrcAddr записей
type AddressSource interface {
	Next() netip.Addr
}

// Synthesizer собирает NetFlow v5 пакеты со случайными, но правдоподобными записями.
// Не потокобезопасен: им владеет одна горутина генерации.
type Synthesizer struct {
	sources          AddressSource
	dstSubnet        netip.Prefix
	rng              *rand.Rand
	computeChecksums bool
}

func NewSynthesizer(sources AddressSource, dstSubnet netip.Prefix, rng *rand.Rand, computeChecksums bool) (*Synthesizer, error) {
	if sources == nil {
		return nil, errors.New("address source is required")
	}
	if !dstSubnet.IsValid() || !dstSubnet.Addr().Is4() {
		return nil, fmt.Errorf("destination subnet must be IPv4, got %s", dstSubnet)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Synthesizer{
		sources:          sources,
		dstSubnet:        dstSubnet.Masked(),
		rng:              rng,
		computeChecksums: computeChecksums,
	}, nil
}

// BuildPacket собирает пакет exporter -> collector с номером последовательности seq.
// Каждая из RecordsPerPacket записей берёт источник из пула, а назначение
// случайно из подсети назначения.
func (s *Synthesizer) BuildPacket(exporter, collector netip.Addr, seq uint32) ([]byte, error) {
	if !exporter.Is4() || !collector.Is4() {
		return nil, fmt.Errorf("exporter %s and collector %s must be IPv4", exporter, collector)
	}

	buf := make([]byte, PacketSize)
	header := NewV5Header(RecordsPerPacket, seq)
	uptime := header.SysUptime

	ipOff := 0
	udpOff := ipOff + IPv4HeaderSize
	nfOff := udpOff + UDPHeaderSize
	header.MarshalTo(buf[nfOff:])

	var rec V5Record
	off := nfOff + HeaderSize
	for i := 0; i < RecordsPerPacket; i++ {
		src := s.sources.Next()
		if !src.Is4() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSource, src.String())
		}
		s.fillRecord(&rec, src, subnet.RandomHost(s.dstSubnet, s.rng), uptime)
		rec.MarshalTo(buf[off:])
		off += RecordSize
	}

	WriteUDP(buf[udpOff:], &UDPHeader{
		SrcPort: Port,
		DstPort: Port,
		Length:  uint16(PacketSize - IPv4HeaderSize),
	})
	WriteIPv4(buf[ipOff:], &IPv4Header{
		TotalLength: uint16(PacketSize),
		TTL:         defaultTTL,
		Protocol:    ProtocolUDP,
		SrcIP:       exporter,
		DstIP:       collector,
	})

	// по умолчанию контрольные суммы нулевые, как у исходного генератора
	if s.computeChecksums {
		udpSum := UDPChecksum(buf[ipOff:udpOff], buf[udpOff:])
		buf[udpOff+6] = byte(udpSum >> 8)
		buf[udpOff+7] = byte(udpSum)

		ipSum := IPv4Checksum(buf[ipOff:udpOff])
		buf[ipOff+10] = byte(ipSum >> 8)
		buf[ipOff+11] = byte(ipSum)
	}

	return buf, nil
}

// fillRecord заполняет запись значениями из документированных диапазонов
func (s *Synthesizer) fillRecord(r *V5Record, src, dst netip.Addr, uptime uint32) {
	*r = V5Record{}
	r.SetAddrs(src, dst)

	r.Input = uint16(s.between(17000, 17099))
	r.Output = uint16(s.between(17000, 17099))
	r.Packets = uint32(s.between(1, 1000))
	r.Bytes = uint32(s.between(1, 100000))
	r.Last = uptime
	r.First = uptime - uint32(s.between(1, 1000))
	r.SrcPort = uint16(s.between(1024, 65535))
	r.DstPort = uint16(s.between(1024, 65535))
	r.TCPFlags = uint8(s.between(0, 255))
	if s.rng.IntN(2) == 0 {
		r.Protocol = ProtocolTCP
	} else {
		r.Protocol = ProtocolUDP
	}
	r.ToS = uint8(s.between(0, 255))
	r.SrcAS = uint16(s.between(0, 65535))
	r.DstAS = uint16(s.between(0, 65535))
	r.SrcMask = uint8(s.between(0, 32))
	r.DstMask = uint8(s.between(0, 32))
}

// between возвращает случайное число из [lo, hi] включительно
func (s *Synthesizer) between(lo, hi int) int {
	return lo + s.rng.IntN(hi-lo+1)
}

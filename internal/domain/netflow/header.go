// Package netflow собирает NetFlow v5 экспорт-пакеты в сетевом порядке байт
package netflow

import (
	"encoding/binary"
	"time"
)

const (
	Version = 5

	HeaderSize = 24
	RecordSize = 48

	// RecordsPerPacket фиксированное число записей в пакете
	RecordsPerPacket = 10
)

var nowFunc = time.Now

// bootTime используется для расчета SysUptime (имитируем время запуска)
var bootTime = time.Now()

// V5Header представляет заголовок NetFlow v5 пакета (24 байта)
type V5Header struct {
	Version      uint16 // Версия NetFlow (5)
	Count        uint16 // Количество flow records в пакете
	SysUptime    uint32 // Время работы системы (миллисекунды)
	UnixSecs     uint32 // Секунды с 1 января 1970 UTC
	UnixNsecs    uint32 // Наносекунды (остаток)
	FlowSequence uint32 // Номер последовательности
	EngineType   uint8  // Тип engine (0)
	EngineID     uint8  // ID engine (0)
	SamplingMode uint16 // Режим сэмплирования (0 = не используется)
}

// NewV5Header создает новый заголовок с текущим временем
func NewV5Header(count uint16, sequence uint32) *V5Header {
	now := nowFunc()

	return &V5Header{
		Version:      Version,
		Count:        count,
		SysUptime:    sysUptime(now),
		UnixSecs:     uint32(now.Unix()),
		UnixNsecs:    uint32(now.Nanosecond()),
		FlowSequence: sequence,
		EngineType:   0,
		EngineID:     0,
		SamplingMode: 0,
	}
}

// MarshalTo пишет заголовок в первые HeaderSize байт buf
func (h *V5Header) MarshalTo(buf []byte) {
	_ = buf[HeaderSize-1]
	binary.BigEndian.PutUint16(buf[0:2], h.Version)
	binary.BigEndian.PutUint16(buf[2:4], h.Count)
	binary.BigEndian.PutUint32(buf[4:8], h.SysUptime)
	binary.BigEndian.PutUint32(buf[8:12], h.UnixSecs)
	binary.BigEndian.PutUint32(buf[12:16], h.UnixNsecs)
	binary.BigEndian.PutUint32(buf[16:20], h.FlowSequence)
	buf[20] = h.EngineType
	buf[21] = h.EngineID
	binary.BigEndian.PutUint16(buf[22:24], h.SamplingMode)
}

// ToBytes сериализует заголовок (network byte order)
func (h *V5Header) ToBytes() []byte {
	buf := make([]byte, HeaderSize)
	h.MarshalTo(buf)
	return buf
}

// ParseV5Header разбирает заголовок из buf; используется в тестах и отладке
func ParseV5Header(buf []byte) (*V5Header, bool) {
	if len(buf) < HeaderSize {
		return nil, false
	}
	return &V5Header{
		Version:      binary.BigEndian.Uint16(buf[0:2]),
		Count:        binary.BigEndian.Uint16(buf[2:4]),
		SysUptime:    binary.BigEndian.Uint32(buf[4:8]),
		UnixSecs:     binary.BigEndian.Uint32(buf[8:12]),
		UnixNsecs:    binary.BigEndian.Uint32(buf[12:16]),
		FlowSequence: binary.BigEndian.Uint32(buf[16:20]),
		EngineType:   buf[20],
		EngineID:     buf[21],
		SamplingMode: binary.BigEndian.Uint16(buf[22:24]),
	}, true
}

// sysUptime миллисекунды с bootTime, по модулю 2^32
func sysUptime(now time.Time) uint32 {
	return uint32(now.Sub(bootTime).Milliseconds())
}

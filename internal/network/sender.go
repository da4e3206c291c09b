// Package network включает в себя интерфейс и реализации отправки готовых пакетов:
// raw IPv4 сокет, UDP сокет и запись в pcap файл
package network

import (
	"github.com/NGRsoftlab/nf5gen/internal/domain/netflow"
)

// headersSize IPv4 + UDP заголовки, которые строит генератор
const headersSize = netflow.IPv4HeaderSize + netflow.UDPHeaderSize

type Sender interface {
	// Send отправляет один полный пакет (IPv4 + UDP + NetFlow)
	Send(data []byte) error

	// Close закрывает сокет или файл; повторный вызов безопасен
	Close() error

	// IsHealthy возвращает true, если Sender способен работать
	// Второе значение для диагностики
	IsHealthy() (bool, string)

	// GetStats возвращает метрики, в зависимости от реализации
	GetStats() map[string]any
}

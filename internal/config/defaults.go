package config

import (
	"time"
)

// DefaultConfig возвращает значения по умолчанию. Обязательные ключи
// (скорость, подсети, коллектор) остаются пустыми: их задаёт файл, env или флаги.
func DefaultConfig() *Config {
	return &Config{
		NumberOfExporters: 10000,
		EnrichmentFile:    "ipaddrs.yml",
		Transport:         TransportRaw,
		PcapFile:          "nf5gen.pcap",
		ShutdownGrace:     500 * time.Millisecond,
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Listen:   "", // выключено
			Interval: 5 * time.Second,
		},
	}
}

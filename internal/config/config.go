// Package config provides app configuration managment & validation
package config

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	TransportRaw  = "raw"
	TransportUDP  = "udp"
	TransportPcap = "pcap"

	maxFlowsPerSecond = 1_000_000
)

// Config описывает один запуск генератора. Имена ключей совпадают с config.json
// исходного генератора, чтобы старые конфиги читались без изменений.
type Config struct {
	FlowsPerSecond      int    `yaml:"flows_per_second" json:"flows_per_second" envconfig:"FLOWS_PER_SECOND"`
	NumberOfExporters   int    `yaml:"number_of_exporters" json:"number_of_exporters" envconfig:"NUMBER_OF_EXPORTERS"`
	SourcePacketSubnet  string `yaml:"source_packet_subnet" json:"source_packet_subnet" envconfig:"SOURCE_PACKET_SUBNET"`
	DestinationIPSubnet string `yaml:"destination_ip_subnet" json:"destination_ip_subnet" envconfig:"DESTINATION_IP_SUBNET"`
	CollectorIP         string `yaml:"collector_ip" json:"collector_ip" envconfig:"COLLECTOR_IP"`
	CollectorPort       int    `yaml:"collector_port" json:"collector_port" envconfig:"COLLECTOR_PORT"`

	EnrichmentFile      string        `yaml:"enrichment_file" json:"enrichment_file" envconfig:"ENRICHMENT_FILE"`
	Transport           string        `yaml:"transport" json:"transport" envconfig:"TRANSPORT"`
	PcapFile            string        `yaml:"pcap_file" json:"pcap_file" envconfig:"PCAP_FILE"`
	ComputeChecksums    bool          `yaml:"compute_checksums" json:"compute_checksums" envconfig:"COMPUTE_CHECKSUMS"`
	InitialFlowSequence *uint32       `yaml:"initial_flow_sequence" json:"initial_flow_sequence" envconfig:"INITIAL_FLOW_SEQUENCE"`
	Duration            time.Duration `yaml:"duration" json:"duration" envconfig:"DURATION"`
	ShutdownGrace       time.Duration `yaml:"shutdown_grace" json:"shutdown_grace" envconfig:"SHUTDOWN_GRACE"`

	Log     LogConfig     `yaml:"log" json:"log" envconfig:"LOG"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics" envconfig:"METRICS"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level" envconfig:"LEVEL"`
	JSON  bool   `yaml:"json" json:"json" envconfig:"JSON"`
}

type MetricsConfig struct {
	Listen   string        `yaml:"listen" json:"listen" envconfig:"LISTEN"`
	Interval time.Duration `yaml:"interval" json:"interval" envconfig:"INTERVAL"`
}

// Validate проверяет конфигурацию целиком; обязательные ключи называются по имени
func (c *Config) Validate() error {
	if c.FlowsPerSecond <= 0 {
		return errors.New("flows_per_second is required and must be positive")
	}
	if c.FlowsPerSecond > maxFlowsPerSecond {
		return fmt.Errorf("flows_per_second too high: %d (max %d)", c.FlowsPerSecond, maxFlowsPerSecond)
	}
	if c.NumberOfExporters <= 0 {
		return errors.New("number_of_exporters must be positive")
	}

	if _, err := c.SourcePrefix(); err != nil {
		return err
	}
	if _, err := c.DestinationPrefix(); err != nil {
		return err
	}
	if _, err := c.CollectorAddr(); err != nil {
		return err
	}
	if c.CollectorPort <= 0 || c.CollectorPort > 65535 {
		return fmt.Errorf("collector_port is required and must be in 1..65535, got %d", c.CollectorPort)
	}

	switch c.Transport {
	case TransportRaw, TransportUDP:
	case TransportPcap:
		if c.PcapFile == "" {
			return errors.New("pcap_file is required for pcap transport")
		}
	default:
		return fmt.Errorf("unsupported transport: %q (supported: raw, udp, pcap)", c.Transport)
	}

	if c.EnrichmentFile == "" {
		return errors.New("enrichment_file is required")
	}
	if c.Duration < 0 {
		return errors.New("duration must not be negative")
	}
	if c.ShutdownGrace <= 0 {
		return errors.New("shutdown_grace must be positive")
	}
	if c.Metrics.Interval <= 0 {
		return errors.New("metrics.interval must be positive")
	}
	return nil
}

// SourcePrefix разбирает source_packet_subnet
func (c *Config) SourcePrefix() (netip.Prefix, error) {
	return parseIPv4Prefix("source_packet_subnet", c.SourcePacketSubnet)
}

// DestinationPrefix разбирает destination_ip_subnet
func (c *Config) DestinationPrefix() (netip.Prefix, error) {
	return parseIPv4Prefix("destination_ip_subnet", c.DestinationIPSubnet)
}

// CollectorAddr разбирает collector_ip
func (c *Config) CollectorAddr() (netip.Addr, error) {
	if c.CollectorIP == "" {
		return netip.Addr{}, errors.New("collector_ip is required")
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(c.CollectorIP))
	if err != nil || !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("collector_ip must be an IPv4 address, got %q", c.CollectorIP)
	}
	return addr, nil
}

// CollectorEndpoint возвращает "ip:port" коллектора
func (c *Config) CollectorEndpoint() string {
	return net.JoinHostPort(c.CollectorIP, fmt.Sprint(c.CollectorPort))
}

// parseIPv4Prefix принимает CIDR и с установленными битами хоста, возвращает маскированный префикс
func parseIPv4Prefix(key, value string) (netip.Prefix, error) {
	if value == "" {
		return netip.Prefix{}, fmt.Errorf("%s is required", key)
	}
	p, err := netip.ParsePrefix(strings.TrimSpace(value))
	if err != nil {
		return netip.Prefix{}, errors.Wrapf(err, "invalid %s", key)
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("%s must be an IPv4 subnet, got %q", key, value)
	}
	return p.Masked(), nil
}

package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix префикс переменных окружения: NF5GEN_FLOWS_PER_SECOND, NF5GEN_LOG_LEVEL, ...
const EnvPrefix = "NF5GEN"

// Flags значения CLI флагов, которые перекрывают файл и окружение.
// Нулевое значение означает "флаг не задан".
type Flags struct {
	ConfigFile    string
	Rate          int
	Collector     string // host:port
	Transport     string
	LogLevel      string
	JSONLog       bool
	Duration      time.Duration
	MetricsListen string
}

// Loader собирает конфигурацию по слоям: defaults -> файл -> .env -> env -> флаги
type Loader struct {
	config *Config
}

func NewLoader() *Loader {
	return &Loader{config: DefaultConfig()}
}

// LoadFromFile читает YAML или JSON (JSON является подмножеством YAML).
// Пустой путь пропускается.
func (l *Loader) LoadFromFile(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Errorf("config file not found: %s", path)
		}
		return errors.Wrap(err, "failed to read config file")
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	if err := yaml.Unmarshal(data, l.config); err != nil {
		return errors.Wrap(err, "failed to parse config file")
	}
	return nil
}

// LoadDotEnv подгружает переменные из .env файла, если он существует.
// Уже выставленные переменные окружения не перезаписываются.
func (l *Loader) LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return errors.Wrapf(godotenv.Load(path), "failed to load %s", path)
}

// LoadFromEnv применяет переменные окружения с префиксом EnvPrefix
func (l *Loader) LoadFromEnv() error {
	return errors.Wrap(envconfig.Process(EnvPrefix, l.config), "invalid environment")
}

// ApplyFlags применяет заданные CLI флаги (наивысший приоритет)
func (l *Loader) ApplyFlags(flags *Flags) error {
	if flags == nil {
		return nil
	}

	if flags.Rate != 0 {
		l.config.FlowsPerSecond = flags.Rate
	}
	if flags.Collector != "" {
		host, port, err := splitCollector(flags.Collector)
		if err != nil {
			return err
		}
		l.config.CollectorIP = host
		l.config.CollectorPort = port
	}
	if flags.Transport != "" {
		l.config.Transport = strings.ToLower(flags.Transport)
	}
	if flags.LogLevel != "" {
		l.config.Log.Level = flags.LogLevel
	}
	if flags.JSONLog {
		l.config.Log.JSON = true
	}
	if flags.Duration != 0 {
		l.config.Duration = flags.Duration
	}
	if flags.MetricsListen != "" {
		l.config.Metrics.Listen = flags.MetricsListen
	}
	return nil
}

func (l *Loader) GetConfig() *Config {
	return l.config
}

// LoadConfig загружает конфигурацию из всех источников и валидирует её
func LoadConfig(path string, flags *Flags) (*Config, error) {
	svc := NewService(path, flags)
	if err := svc.Load(); err != nil {
		return nil, err
	}
	return svc.GetConfig(), nil
}

func splitCollector(hostport string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(hostport))
	if err != nil {
		return "", 0, errors.Wrapf(err, "invalid collector address %q", hostport)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, errors.Errorf("invalid collector port %q", portStr)
	}
	return host, port, nil
}

// Package cli отвечает за парсинг командной строки.
package cli

import (
	"io"
	"os"

	urfave "github.com/urfave/cli"

	"github.com/NGRsoftlab/nf5gen/internal/config"
	"github.com/NGRsoftlab/nf5gen/internal/enrichment"
)

// DefaultConfigFile используется, если -c не задан и файл существует
const DefaultConfigFile = "config.json"

type Command int

const (
	// CommandNone help или version уже выведены, запускать нечего
	CommandNone Command = iota
	CommandRun
	CommandGenerate
)

// GenerateFlags параметры команды gen-enrichment
type GenerateFlags struct {
	Out      string
	Network  string
	Entries  int
	Extended bool
	Seed     uint64
	SeedSet  bool
	LogLevel string
}

// Result разобранная командная строка
type Result struct {
	Command  Command
	Run      *config.Flags
	Generate *GenerateFlags
}

// Parser инкапсулирует urfave/cli приложение. Action только сохраняют результат,
// выполнение остается за main.
type Parser struct {
	app    *urfave.App
	result *Result
}

func NewParser(version string) *Parser {
	p := &Parser{}

	app := urfave.NewApp()
	app.Name = "nf5gen"
	app.Usage = "synthetic NetFlow v5 traffic generator"
	app.Version = version
	app.Flags = runFlags()
	app.Action = p.runAction
	app.Commands = []urfave.Command{
		{
			Name:   "run",
			Usage:  "generate and send NetFlow v5 packets (default)",
			Flags:  runFlags(),
			Action: p.runAction,
		},
		{
			Name:   "gen-enrichment",
			Usage:  "write an enrichment document for testing",
			Flags:  generateFlags(),
			Action: p.generateAction,
		},
	}

	p.app = app
	return p
}

// SetOutput куда печатать help и ошибки использования
func (p *Parser) SetOutput(w io.Writer) {
	p.app.Writer = w
	p.app.ErrWriter = w
}

// Parse разбирает аргументы без имени программы (обычно os.Args[1:])
func (p *Parser) Parse(args []string) (*Result, error) {
	p.result = &Result{}
	if err := p.app.Run(append([]string{p.app.Name}, args...)); err != nil {
		return nil, err
	}
	return p.result, nil
}

func runFlags() []urfave.Flag {
	return []urfave.Flag{
		urfave.StringFlag{Name: "config, c", Usage: "configuration file (YAML or JSON), default " + DefaultConfigFile + " if present"},
		urfave.IntFlag{Name: "rate, r", Usage: "packets per second (overrides flows_per_second)"},
		urfave.StringFlag{Name: "collector, d", Usage: "collector host:port"},
		urfave.StringFlag{Name: "transport, T", Usage: "raw, udp or pcap"},
		urfave.DurationFlag{Name: "duration, t", Usage: "how long to run (e.g. 30s, 5m); 0 = endless"},
		urfave.StringFlag{Name: "log-level, l", Usage: "debug, info, warn, error"},
		urfave.BoolFlag{Name: "json-log", Usage: "log in JSON"},
		urfave.StringFlag{Name: "metrics-listen", Usage: "address for /metrics, e.g. :9090"},
	}
}

func generateFlags() []urfave.Flag {
	return []urfave.Flag{
		urfave.StringFlag{Name: "out, o", Value: "ipaddrs.yml", Usage: "output file"},
		urfave.StringFlag{Name: "network, n", Value: enrichment.DefaultNetwork, Usage: "IPv4 network to take hosts from"},
		urfave.IntFlag{Name: "entries, e", Value: enrichment.DefaultEntries, Usage: "number of entries"},
		urfave.BoolFlag{Name: "extended, x", Usage: "add business metadata fields"},
		urfave.Uint64Flag{Name: "seed", Usage: "random seed for reproducible output"},
		urfave.StringFlag{Name: "log-level, l", Value: "info", Usage: "debug, info, warn, error"},
	}
}

func (p *Parser) runAction(c *urfave.Context) error {
	p.result.Command = CommandRun
	p.result.Run = &config.Flags{
		ConfigFile:    resolveConfigPath(c.String("config")),
		Rate:          c.Int("rate"),
		Collector:     c.String("collector"),
		Transport:     c.String("transport"),
		LogLevel:      c.String("log-level"),
		JSONLog:       c.Bool("json-log"),
		Duration:      c.Duration("duration"),
		MetricsListen: c.String("metrics-listen"),
	}
	return nil
}

func (p *Parser) generateAction(c *urfave.Context) error {
	p.result.Command = CommandGenerate
	p.result.Generate = &GenerateFlags{
		Out:      c.String("out"),
		Network:  c.String("network"),
		Entries:  c.Int("entries"),
		Extended: c.Bool("extended"),
		Seed:     c.Uint64("seed"),
		SeedSet:  c.IsSet("seed"),
		LogLevel: c.String("log-level"),
	}
	return nil
}

// resolveConfigPath пустой путь заменяется на DefaultConfigFile, если он есть на диске
func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

package enrichment

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"net/netip"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/NGRsoftlab/nf5gen/internal/domain/subnet"
	"github.com/NGRsoftlab/nf5gen/internal/logger"
)

const (
	DefaultNetwork       = "10.0.0.0/14"
	DefaultEntries       = 50000
	DefaultIPsPerAppcode = 25
	DefaultIPsPerDomain  = 100
)

// Categories наборы значений для расширенных полей метаданных.
// Пустой набор означает, что поле не пишется.
type Categories struct {
	LinesOfBusiness     []string
	Owners              []string
	AppNames            []string
	L3s                 []string
	L3ITOrganizations   []string
	BusinessCriticality []int
	// CrownJewel выбирается равновероятно, повторы задают вес
	CrownJewel []string
}

// DefaultCategories возвращает наборы, совместимые с расширенными фикстурами
func DefaultCategories() *Categories {
	c := &Categories{
		LinesOfBusiness:   numbered("LOB_", 20),
		Owners:            numbered("Owner_", 1000),
		AppNames:          numbered("App_", 2000),
		L3s:               numbered("L3_", 1000),
		L3ITOrganizations: numbered("L3IT_", 500),
	}
	for i := 1; i <= 10; i++ {
		c.BusinessCriticality = append(c.BusinessCriticality, i)
	}
	for i := 0; i < 100; i++ {
		if i < 90 {
			c.CrownJewel = append(c.CrownJewel, "No")
		} else {
			c.CrownJewel = append(c.CrownJewel, "Yes")
		}
	}
	return c
}

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + strconv.Itoa(i+1)
	}
	return out
}

// GenerateOptions параметры фикстуры; нулевые значения заменяются дефолтами
type GenerateOptions struct {
	Network       netip.Prefix
	Entries       int
	IPsPerAppcode int
	IPsPerDomain  int
	// Categories nil - только базовые поля (.appcode, .device.*)
	Categories *Categories
	Rand       *rand.Rand
	Logger     logger.Logger
}

func (o *GenerateOptions) setDefaults() {
	if !o.Network.IsValid() {
		o.Network = netip.MustParsePrefix(DefaultNetwork)
	}
	if o.Entries <= 0 {
		o.Entries = DefaultEntries
	}
	if o.IPsPerAppcode <= 0 {
		o.IPsPerAppcode = DefaultIPsPerAppcode
	}
	if o.IPsPerDomain <= 0 {
		o.IPsPerDomain = DefaultIPsPerDomain
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

// Generate пишет enrichment документ: первые Entries хостов сети,
// ключ "ip/32", значение {metadata: {...}}. Возвращает число записей.
func Generate(w io.Writer, opts GenerateOptions) (int, error) {
	opts.setDefaults()

	hosts, err := subnet.Hosts(opts.Network, opts.Entries)
	if err != nil {
		return 0, errors.Wrap(err, "enrichment network")
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	progressStep := len(hosts) / 10
	appcode := ""
	appcodeCounter := 1

	for i, ip := range hosts {
		if i%opts.IPsPerAppcode == 0 {
			appcode = fmt.Sprintf("APP%06d", appcodeCounter)
			appcodeCounter++
		}

		meta := &yaml.Node{Kind: yaml.MappingNode}
		addField(meta, ".appcode", appcode)
		addField(meta, ".device.domain", fmt.Sprintf("some_domain_%d.elf.com", i/opts.IPsPerDomain+1))
		addField(meta, ".device.name", fmt.Sprintf("some_server_%d", i+1))
		if opts.Categories != nil {
			addCategories(meta, opts.Categories, opts.Rand)
		}

		entry := &yaml.Node{Kind: yaml.MappingNode}
		entry.Content = append(entry.Content, scalar("metadata"), meta)
		root.Content = append(root.Content, scalar(ip.String()+"/32"), entry)

		if opts.Logger != nil && progressStep > 0 && (i+1)%progressStep == 0 {
			opts.Logger.Info("Processed %d IPs, last appcode assigned: %s", i+1, appcode)
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return 0, errors.Wrap(err, "encode enrichment document")
	}
	if err := enc.Close(); err != nil {
		return 0, errors.Wrap(err, "encode enrichment document")
	}

	if opts.Logger != nil {
		opts.Logger.Info("Final appcode assigned: %s", appcode)
	}
	return len(hosts), nil
}

// GenerateFile создает (перезаписывает) файл path, см. Generate
func GenerateFile(path string, opts GenerateOptions) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrapf(err, "create %s", path)
	}

	bw := bufio.NewWriter(f)
	n, err := Generate(bw, opts)
	if err != nil {
		f.Close()
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return 0, errors.Wrapf(err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		return 0, errors.Wrapf(err, "close %s", path)
	}

	if opts.Logger != nil {
		opts.Logger.Info("Successfully wrote %s with %d entries", path, n)
	}
	return n, nil
}

func addCategories(meta *yaml.Node, c *Categories, rng *rand.Rand) {
	addChoice(meta, ".line_of_business", c.LinesOfBusiness, rng)
	addChoice(meta, ".owner", c.Owners, rng)
	addChoice(meta, ".app_name", c.AppNames, rng)
	addChoice(meta, ".L3", c.L3s, rng)
	addChoice(meta, ".L3_IT_Organization", c.L3ITOrganizations, rng)
	if len(c.BusinessCriticality) > 0 {
		v := c.BusinessCriticality[rng.IntN(len(c.BusinessCriticality))]
		meta.Content = append(meta.Content, scalar(".business_criticality"),
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(v)})
	}
	addChoice(meta, ".crown_jewel", c.CrownJewel, rng)
}

func addChoice(meta *yaml.Node, key string, values []string, rng *rand.Rand) {
	if len(values) == 0 {
		return
	}
	addField(meta, key, values[rng.IntN(len(values))])
}

func addField(meta *yaml.Node, key, value string) {
	meta.Content = append(meta.Content, scalar(key), scalar(value))
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

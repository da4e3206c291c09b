// Package enrichment загружает пул адресов-источников для flow записей
package enrichment

import (
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/NGRsoftlab/nf5gen/internal/logger"
)

// ErrEmptyPool в документе не нашлось ни одного валидного IPv4 адреса
var ErrEmptyPool = errors.New("enrichment pool is empty")

// Pool бесконечный циклический курсор по адресам в порядке документа.
// Не потокобезопасен: читает только горутина генерации.
type Pool struct {
	addrs []netip.Addr
	pos   int
}

// NewPool создает пул из готового списка адресов
func NewPool(addrs []netip.Addr) (*Pool, error) {
	if len(addrs) == 0 {
		return nil, ErrEmptyPool
	}
	cp := make([]netip.Addr, len(addrs))
	copy(cp, addrs)
	return &Pool{addrs: cp}, nil
}

// Next возвращает следующий адрес, после последнего снова первый
func (p *Pool) Next() netip.Addr {
	a := p.addrs[p.pos]
	p.pos++
	if p.pos == len(p.addrs) {
		p.pos = 0
	}
	return a
}

func (p *Pool) Len() int {
	return len(p.addrs)
}

// Reset возвращает курсор к началу
func (p *Pool) Reset() {
	p.pos = 0
}

// LoadFile читает документ с диска, см. Load
func LoadFile(path string, log logger.Logger) (*Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("enrichment file not found: %s (create one with `nf5gen gen-enrichment --out %s`)", path, path)
		}
		return nil, errors.Wrapf(err, "open enrichment file %s", path)
	}
	defer f.Close()

	pool, err := Load(f, log)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return pool, nil
}

// Load разбирает YAML/JSON документ: mapping "a.b.c.d/32" -> метаданные
// или список строк-адресов. Невалидные ключи логируются и пропускаются.
func Load(r io.Reader, log logger.Logger) (*Pool, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyPool
		}
		return nil, errors.Wrap(err, "parse enrichment document")
	}

	keys, err := documentKeys(&doc)
	if err != nil {
		return nil, err
	}

	addrs := make([]netip.Addr, 0, len(keys))
	skipped := 0
	for _, key := range keys {
		addr, err := ParseEntry(key)
		if err != nil {
			skipped++
			if log != nil {
				log.Warn("Skipping enrichment entry %q: %v", key, err)
			}
			continue
		}
		addrs = append(addrs, addr)
	}

	if log != nil {
		log.Info("Enrichment pool loaded: %d addresses, %d skipped", len(addrs), skipped)
	}
	return NewPool(addrs)
}

// ParseEntry отрезает маску после '/' и проверяет, что остался IPv4 адрес
func ParseEntry(key string) (netip.Addr, error) {
	host, _, _ := strings.Cut(strings.TrimSpace(key), "/")
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, errors.Wrap(err, "invalid address")
	}
	if !addr.Is4() {
		return netip.Addr{}, errors.Errorf("not an IPv4 address: %s", addr)
	}
	return addr, nil
}

// documentKeys достает ключи верхнего уровня с сохранением порядка
func documentKeys(doc *yaml.Node) ([]string, error) {
	root := doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, nil
		}
		root = root.Content[0]
	}

	switch root.Kind {
	case yaml.MappingNode:
		keys := make([]string, 0, len(root.Content)/2)
		for i := 0; i+1 < len(root.Content); i += 2 {
			keys = append(keys, root.Content[i].Value)
		}
		return keys, nil
	case yaml.SequenceNode:
		keys := make([]string, 0, len(root.Content))
		for _, item := range root.Content {
			keys = append(keys, item.Value)
		}
		return keys, nil
	case yaml.ScalarNode:
		if root.Tag == "!!null" {
			return nil, nil
		}
	}
	return nil, errors.Errorf("enrichment document must be a mapping or a list, got line %d", root.Line)
}

package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// koanfConfig 是 Config 的 koanf 实现。
type koanfConfig struct {
	k       atomic.Pointer[koanf.Koanf]
	version atomic.Uint64
	// reloadMu 串行化 Reload，避免并发重载时旧内容覆盖新内容。
	reloadMu sync.Mutex

	path   string
	format Format
	opts   *options
}

// New 从文件加载配置，按扩展名识别格式（.yaml/.yml/.json）。
func New(path string, opts ...Option) (Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	c := &koanfConfig{path: path, format: format, opts: applyOptions(opts)}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewFromBytes 从字节数据加载配置。空数据得到空配置（只含默认值）。
func NewFromBytes(data []byte, format Format, opts ...Option) (Config, error) {
	if !isValidFormat(format) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	c := &koanfConfig{format: format, opts: applyOptions(opts)}
	k, err := c.build(data)
	if err != nil {
		return nil, err
	}
	c.k.Store(k)
	c.version.Add(1)
	return c, nil
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// build 先加载默认值，再合并 data。
func (c *koanfConfig) build(data []byte) (*koanf.Koanf, error) {
	k := koanf.New(c.opts.delim)
	if len(c.opts.defaults) > 0 {
		if err := loadData(k, c.opts.defaults, c.opts.defaultsFormat); err != nil {
			return nil, fmt.Errorf("xconf: load defaults: %w", err)
		}
	}
	if len(data) > 0 {
		if err := loadData(k, data, c.format); err != nil {
			return nil, err
		}
	}
	return k, nil
}

func (c *koanfConfig) Client() *koanf.Koanf {
	return c.k.Load()
}

func (c *koanfConfig) Unmarshal(path string, target any) error {
	if err := c.k.Load().UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: c.opts.tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

func (c *koanfConfig) Reload() error {
	if c.path == "" {
		return ErrNotReloadable
	}
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k, err := c.build(data)
	if err != nil {
		return err
	}
	c.k.Store(k)
	c.version.Add(1)
	return nil
}

func (c *koanfConfig) Path() string { return c.path }

func (c *koanfConfig) Format() Format { return c.format }

func (c *koanfConfig) Version() uint64 { return c.version.Load() }

func detectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

func isValidFormat(format Format) bool {
	return format == FormatYAML || format == FormatJSON
}

func loadData(k *koanf.Koanf, data []byte, format Format) error {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}

var _ Config = (*koanfConfig)(nil)

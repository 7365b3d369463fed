package main

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/omeyang/xvoice/pkg/config/xconf"
)

//go:embed defaults.yaml
var defaultConfig []byte

// AppConfig 是 xvoicectl 的完整配置。
type AppConfig struct {
	Log   LogConfig   `koanf:"log"`
	Gate  GateConfig  `koanf:"gate"`
	Synth SynthConfig `koanf:"synth"`
	HTTP  HTTPConfig  `koanf:"http"`
	Stats StatsConfig `koanf:"stats"`
}

// LogConfig 日志配置。level 支持热更新。
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File 非空时写入文件并按大小轮转。
	File string `koanf:"file"`
}

// GateConfig 准入门控配置。
type GateConfig struct {
	DefaultTimeout time.Duration `koanf:"default_timeout"`
	QueueThreshold time.Duration `koanf:"queue_threshold"`
	Shards         int           `koanf:"shards"`
	MaxKeys        int           `koanf:"max_keys"`
	EvictIdle      bool          `koanf:"evict_idle"`
}

// SynthConfig 合成服务配置。
type SynthConfig struct {
	EngineDelay        time.Duration `koanf:"engine_delay"`
	ChunkSize          int           `koanf:"chunk_size"`
	CacheSize          int           `koanf:"cache_size"`
	RetryAttempts      uint          `koanf:"retry_attempts"`
	RetryDelay         time.Duration `koanf:"retry_delay"`
	BreakerFailures    uint32        `koanf:"breaker_failures"`
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout"`
}

// HTTPConfig HTTP 服务配置。
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StatsConfig 周期统计日志配置，interval <= 0 关闭。
type StatsConfig struct {
	Interval time.Duration `koanf:"interval"`
}

// loadConfig 加载配置。path 为空时只使用内置默认值。
func loadConfig(path string) (xconf.Config, *AppConfig, error) {
	var (
		cfg xconf.Config
		err error
	)
	if path == "" {
		cfg, err = xconf.NewFromBytes(defaultConfig, xconf.FormatYAML)
	} else {
		cfg, err = xconf.New(path, xconf.WithDefaults(defaultConfig, xconf.FormatYAML))
	}
	if err != nil {
		return nil, nil, err
	}

	app, err := decodeConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, app, nil
}

func decodeConfig(cfg xconf.Config) (*AppConfig, error) {
	var app AppConfig
	if err := cfg.Unmarshal("", &app); err != nil {
		return nil, err
	}
	if err := app.validate(); err != nil {
		return nil, err
	}
	return &app, nil
}

func (c *AppConfig) validate() error {
	switch {
	case c.Gate.DefaultTimeout <= 0:
		return fmt.Errorf("config: gate.default_timeout must be positive, got %s", c.Gate.DefaultTimeout)
	case c.HTTP.Addr == "":
		return errors.New("config: http.addr is empty")
	case c.Synth.ChunkSize <= 0:
		return fmt.Errorf("config: synth.chunk_size must be positive, got %d", c.Synth.ChunkSize)
	case c.Synth.CacheSize < 0:
		return fmt.Errorf("config: synth.cache_size must not be negative, got %d", c.Synth.CacheSize)
	}
	return nil
}

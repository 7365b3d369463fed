package xconf

import "github.com/knadh/koanf/v2"

// Format 配置格式。
type Format string

// 支持的配置格式
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Config 是一份已加载的配置。所有方法并发安全。
type Config interface {
	// Client 返回当前 koanf 实例的快照。
	Client() *koanf.Koanf

	// Unmarshal 将 path 下的配置解码到 target，path 为空时解码整个配置。
	Unmarshal(path string, target any) error

	// Reload 重新读取配置文件。解析失败时保留旧配置并返回错误。
	// 从字节数据创建的配置返回 [ErrNotReloadable]。
	Reload() error

	// Path 返回配置文件路径，从字节数据创建时为空。
	Path() string

	// Format 返回配置格式。
	Format() Format

	// Version 返回成功加载的次数，初次加载为 1。
	Version() uint64
}

// MustUnmarshal 与 Config.Unmarshal 相同，失败时 panic。
// 只用于程序启动阶段。
func MustUnmarshal(cfg Config, path string, target any) {
	if err := cfg.Unmarshal(path, target); err != nil {
		panic(err)
	}
}

package xconf

// Option 配置加载选项。
type Option func(*options)

type options struct {
	delim          string
	tag            string
	defaults       []byte
	defaultsFormat Format
}

func defaultOptions() *options {
	return &options{
		delim: ".",
		tag:   "koanf",
	}
}

// WithDelim 设置键路径分隔符，默认 "."。空字符串忽略。
func WithDelim(delim string) Option {
	return func(o *options) {
		if delim != "" {
			o.delim = delim
		}
	}
}

// WithTag 设置 Unmarshal 使用的结构体标签，默认 "koanf"。空字符串忽略。
func WithTag(tag string) Option {
	return func(o *options) {
		if tag != "" {
			o.tag = tag
		}
	}
}

// WithDefaults 设置默认配置。每次加载（包括 Reload）都先加载默认值，
// 再用配置源覆盖。
func WithDefaults(data []byte, format Format) Option {
	return func(o *options) {
		o.defaults = data
		o.defaultsFormat = format
	}
}

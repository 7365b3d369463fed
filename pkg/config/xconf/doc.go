// Package xconf 基于 koanf 加载 YAML/JSON 配置，并支持文件热重载。
//
// # 加载顺序
//
// 默认值（[WithDefaults]）先加载，文件或字节数据随后合并覆盖。
// 程序可以把内置默认配置作为 YAML 字节传入，配置文件只写需要改动的键。
//
// # 并发安全
//
// Reload 解析成功后原子替换底层 koanf 实例，解析失败时保留旧配置。
// Client 返回的实例是快照：Reload 之后仍可用，但数据是旧的。
// 每次需要时调用 Client，不要长期缓存。
//
// # Unmarshal
//
// 使用 koanf 默认的 mapstructure 解码：支持弱类型转换，
// "30s" 这样的字符串可直接解码为 time.Duration。
//
// # 配置监视
//
// [Watcher] 监视配置文件所在目录（兼容先写临时文件再 rename 的原子写入），
// 防抖后调用 Reload 并回调通知。Run 阻塞到 ctx 结束，适合交给 xrun 管理。
package xconf

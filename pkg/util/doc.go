// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xkeylock: 基于 key 的进程内互斥锁注册表，支持 context 超时、非阻塞获取与条目撤销
//   - xid: 基于 sonyflake 的分布式唯一 ID，生成请求 ID
//
// 设计原则：
//   - 不依赖上层业务包
//   - 所有类型并发安全
package util

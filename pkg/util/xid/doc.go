// Package xid 生成进程内与跨节点唯一的请求 ID。
//
// 基于 sonyflake v2（39 位时间 + 8 位序列 + 16 位机器），字符串形式为 base36。
// 未显式提供请求 ID 时，准入门控使用本包生成持有者 ID。
//
// # 机器 ID
//
// 默认按以下优先级获取：
//
//  1. XVOICE_MACHINE_ID 环境变量（0-65535）
//  2. 主机名的 xxhash 低 16 位
//
// 哈希方式存在碰撞风险，多节点部署应显式分配 XVOICE_MACHINE_ID。
//
// # 时钟回拨
//
// sonyflake 在时钟回拨时返回错误，[Generator.NewWithRetry] 在 ctx 允许的范围内
// 以固定间隔重试，时间分量溢出（[ErrOverTimeLimit]）不重试。
package xid

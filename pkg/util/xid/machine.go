package xid

import (
	"fmt"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// EnvMachineID 直接指定机器 ID 的环境变量（0-65535）
const EnvMachineID = "XVOICE_MACHINE_ID"

// osHostname 测试注入点。
var osHostname = os.Hostname

// DefaultMachineID 获取机器 ID：优先读取 XVOICE_MACHINE_ID，其次哈希主机名。
func DefaultMachineID() (uint16, error) {
	if s := os.Getenv(EnvMachineID); s != "" {
		id, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("xid: invalid %s value %q: %w", EnvMachineID, s, err)
		}
		return uint16(id), nil
	}
	host, err := osHostname()
	if err != nil || host == "" {
		return 0, fmt.Errorf("xid: resolve hostname: %w", ErrNoMachineID)
	}
	return uint16(xxhash.Sum64String(host) & 0xFFFF), nil
}

package xgate

import (
	"fmt"
	"strings"
)

// keySeparator 分隔会话与资源。
const keySeparator = ":"

// ResolveKey 计算隔离键：scope 非空时为 "scope:resource"，否则为 resource。
//
// 纯函数，相同输入总是得到相同的键。
// 只有通过 [ValidateIDs] 的输入才保证不同 (resource, scope) 得到不同的键；
// Gate 的所有入口都先做这项校验。
func ResolveKey(resourceID, scopeID string) string {
	if scopeID == "" {
		return resourceID
	}
	return scopeID + keySeparator + resourceID
}

// ValidateIDs 校验资源与会话 ID 能否组成无歧义的隔离键。
//
// 资源 ID 必须非空且不含 ":"，否则返回 [ErrInvalidResource]；
// 会话 ID 可为空，非空时不能含 ":"，否则返回 [ErrInvalidScope]。
func ValidateIDs(resourceID, scopeID string) error {
	if resourceID == "" {
		return ErrInvalidResource
	}
	if strings.Contains(resourceID, keySeparator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidResource, resourceID, keySeparator)
	}
	if strings.Contains(scopeID, keySeparator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidScope, scopeID, keySeparator)
	}
	return nil
}

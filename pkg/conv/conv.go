// Package conv 提供从 YAML/JSON 解析结果中读取配置的泛型工具。
package conv

// ConfigGet 从 map[string]any 按 key 取 T，取不到或类型不符时返回 defaultVal。
// 空字符串视为未配置。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	if m == nil {
		return defaultVal
	}
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	if s, isStr := v.(string); isStr && s == "" {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

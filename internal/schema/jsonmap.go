package schema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap 以 TEXT 列存储的 JSON 对象（约束 value 列等）
type JSONMap map[string]any

// Value 实现 driver.Valuer 接口
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner 接口
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONMap)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("JSONMap 不支持的列类型: %T", value)
	}

	if len(bytes) == 0 {
		*j = make(JSONMap)
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// GetFloat 读取数值字段，兼容 JSON 解码产生的各种数字类型
func (j JSONMap) GetFloat(key string) (float64, bool) {
	raw, ok := j[key]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// GetString 读取字符串字段
func (j JSONMap) GetString(key string) (string, bool) {
	raw, ok := j[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration 允许在配置文件中使用 "5s"、"1m" 这类写法，也兼容纳秒整数。
type Duration time.Duration

// Std 返回标准库类型。
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalJSON 实现 json.Unmarshaler。
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return d.set(raw)
}

// UnmarshalYAML 实现 yaml.Unmarshaler。
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return d.set(raw)
}

// MarshalJSON 以字符串形式输出。
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) set(raw any) error {
	switch v := raw.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(time.Duration(v))
	case int:
		*d = Duration(time.Duration(v))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("无效的时长 %q: %w", v, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("无效的时长类型 %T", raw)
	}
	return nil
}

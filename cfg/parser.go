package cfg

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLParser 把 YAML 解析为 T；Defaults 非空时先以它为底再覆盖
type YAMLParser[T any] struct {
	Defaults func() T
}

// Parse 解析配置
func (p YAMLParser[T]) Parse(data []byte) (T, error) {
	var v T
	if p.Defaults != nil {
		v = p.Defaults()
	}
	if err := yaml.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("parse yaml config: %w", err)
	}
	return v, nil
}

// JSONParser 把 JSON 解析为 T
type JSONParser[T any] struct {
	Defaults func() T
}

// Parse 解析配置
func (p JSONParser[T]) Parse(data []byte) (T, error) {
	var v T
	if p.Defaults != nil {
		v = p.Defaults()
	}
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("parse json config: %w", err)
	}
	return v, nil
}

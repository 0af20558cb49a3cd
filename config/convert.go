package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保持默认值。
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// FromYAML 从 YAML 数据创建配置
//
// 未出现的字段保持默认值。
func FromYAML(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 按扩展名加载配置文件（.json / .yaml / .yml）并验证
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		cfg, err = FromJSON(data)
	case ".yaml", ".yml":
		cfg, err = FromYAML(data)
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s", path)
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ToYAML 将配置序列化为 YAML
func ToYAML(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// CloneConfig 深拷贝配置
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	clone := *cfg
	return &clone
}

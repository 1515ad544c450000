// Package config 管理 ftpsync 的项目配置和用户交互。
// 配置文件（默认 .zed-ftp-config.json）描述 FTP 连接参数和同步规则，由调用方显式传入路径。
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultFileName = ".zed-ftp-config.json" // 项目根目录下的配置文件名
	DefaultPort     = 21
	DefaultTimeout  = 30 * time.Second

	EnvPassword = "FTPSYNC_PASSWORD" // 覆盖配置文件中的密码
)

var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrConfigCorrupted = errors.New("config file corrupted")
	ErrConfigExists    = errors.New("config file already exists")
	ErrInvalidConfig   = errors.New("invalid config")
)

// Secret 敏感字符串，打印和日志中显示为掩码，JSON 中保留原值
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "******"
}

func (s Secret) GoString() string {
	return s.String()
}

// Value 返回明文（仅用于登录）
func (s Secret) Value() string {
	return string(s)
}

// SyncConfig 一次同步操作的全部参数，交给 syncer 后不再修改
type SyncConfig struct {
	Host           string   `json:"host"`
	Port           uint16   `json:"port"`
	Username       string   `json:"username"`
	Password       Secret   `json:"password"`
	RemotePath     string   `json:"remote_path"`
	LocalPath      string   `json:"local_path"`
	AutoSync       bool     `json:"auto_sync"`
	FileExtensions []string `json:"file_extensions"`

	Exclude           []string `json:"exclude,omitempty"`            // gitignore 风格的排除规则
	TimeoutSeconds    int      `json:"timeout_seconds,omitempty"`    // 连接超时，0 使用默认值
	ConnectRetries    int      `json:"connect_retries,omitempty"`    // 连接失败后的重试次数
	StrictDirectories bool     `json:"strict_directories,omitempty"` // 远程建目录的真实失败计入文件结果
}

// Default 返回默认配置，字段取值与 ftpsync init 生成的文件一致
func Default() *SyncConfig {
	return &SyncConfig{
		Host:           "localhost",
		Port:           DefaultPort,
		Username:       "user",
		Password:       "password",
		RemotePath:     "/var/www/html",
		LocalPath:      ".",
		AutoSync:       true,
		FileExtensions: []string{"php", "html", "css", "js"},
	}
}

// Timeout 返回连接超时
func (c *SyncConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Extensions 返回扩展名集合（小写，无前导点）
func (c *SyncConfig) Extensions() map[string]struct{} {
	set := make(map[string]struct{}, len(c.FileExtensions))
	for _, ext := range c.FileExtensions {
		set[ext] = struct{}{}
	}
	return set
}

// Normalize 补默认端口，并把扩展名规整为小写、去掉前导点、去重
func (c *SyncConfig) Normalize() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}

	seen := make(map[string]bool, len(c.FileExtensions))
	exts := make([]string, 0, len(c.FileExtensions))
	for _, ext := range c.FileExtensions {
		ext = strings.ToLower(strings.TrimLeft(strings.TrimSpace(ext), "."))
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		exts = append(exts, ext)
	}
	c.FileExtensions = exts
}

// Validate 检查必填字段
func (c *SyncConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.RemotePath) == "" {
		return fmt.Errorf("%w: remote_path is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.LocalPath) == "" {
		return fmt.Errorf("%w: local_path is required", ErrInvalidConfig)
	}
	if c.ConnectRetries < 0 {
		return fmt.Errorf("%w: connect_retries must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadFrom 从指定路径加载配置。
// 优先级：环境变量 FTPSYNC_PASSWORD → 配置文件中的 password。
func LoadFrom(path string) (*SyncConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg SyncConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigCorrupted, err)
	}

	if pw := os.Getenv(EnvPassword); pw != "" {
		cfg.Password = Secret(pw)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveTo 将配置写入指定路径（自动创建目录，权限 0600）
func SaveTo(path string, cfg *SyncConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateDefault 在 path 写入默认配置，已存在时返回 ErrConfigExists
func CreateDefault(path string) (*SyncConfig, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	cfg := Default()
	if err := SaveTo(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Example 返回示例配置的 JSON 文本（密码以明文占位）
func Example() (string, error) {
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

package config

import (
	"fmt"
	"os"
)

const BackupSuffix = ".bak"

// BackupConfig 把已存在的配置文件复制为 path.bak（权限 0600），返回备份路径。
// 配置文件不存在时返回空字符串，不是错误。
func BackupConfig(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}

	backupPath := path + BackupSuffix
	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write config backup: %w", err)
	}
	return backupPath, nil
}

// RestoreBackup 用 path.bak 覆盖 path 并删除备份
func RestoreBackup(path string) error {
	backupPath := path + BackupSuffix
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("failed to read config backup: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to restore config: %w", err)
	}
	if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete config backup: %w", err)
	}
	return nil
}

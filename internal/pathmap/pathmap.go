// Package pathmap 把本地文件路径映射为远程路径，远程目录结构与本地根目录保持镜像。
// 纯函数，不访问文件系统。
package pathmap

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

var ErrPathMapping = errors.New("path is not under local root")

// MapRemotePath 计算 localFile 相对 localRoot 的路径，拼接到 remoteRoot 之后。
// 远程路径始终使用 / 分隔，remoteRoot 末尾的 / 会先去掉。
func MapRemotePath(localRoot, remoteRoot, localFile string) (string, error) {
	rel, err := Rel(localRoot, localFile)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(remoteRoot, "/") + "/" + rel, nil
}

// Rel 返回 localFile 相对 localRoot 的 / 分隔路径，必须严格位于 localRoot 之下
func Rel(localRoot, localFile string) (string, error) {
	root := filepath.Clean(localRoot)
	file := filepath.Clean(localFile)

	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", fmt.Errorf("%w: %s (root %s): %v", ErrPathMapping, localFile, localRoot, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s (root %s)", ErrPathMapping, localFile, localRoot)
	}
	return filepath.ToSlash(rel), nil
}

// RemoteDir 返回远程路径的父目录
func RemoteDir(remotePath string) string {
	return path.Dir(remotePath)
}

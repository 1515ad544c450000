package remote

import (
	"errors"
	"fmt"
)

var (
	ErrConnection   = errors.New("ftp connection failed")
	ErrAuth         = errors.New("ftp authentication failed")
	ErrUpload       = errors.New("ftp upload failed")
	ErrDirCreate    = errors.New("remote directory creation failed")
	ErrInvalidState = errors.New("invalid session state")
	ErrDialTimeout  = errors.New("timeout waiting for FTP connection")
)

// DirCreateError 严格模式下某一级目录创建失败
type DirCreateError struct {
	Dir    string // 请求创建的完整目录
	Prefix string // 实际失败的前缀
	Err    error
}

func (e *DirCreateError) Error() string {
	return fmt.Sprintf("%v: %s (at %s): %v", ErrDirCreate, e.Dir, e.Prefix, e.Err)
}

func (e *DirCreateError) Unwrap() []error {
	return []error{ErrDirCreate, e.Err}
}

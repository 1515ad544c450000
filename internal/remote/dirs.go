package remote

import (
	"errors"
	"net/textproto"
	"strings"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"github.com/hwuu/ftpsync/internal/metrics"
)

// 部分服务器对已存在的目录回复 521
const statusDirExists = 521

// DirPolicy 目录创建失败时的处理策略
type DirPolicy int

const (
	// DirLenient 真正的失败只记 warn 日志，继续上传
	DirLenient DirPolicy = iota
	// DirStrict 真正的失败返回 *DirCreateError
	DirStrict
)

// DirResult 一次 MKD 的分类结果
type DirResult int

const (
	DirCreated DirResult = iota
	DirExists
	DirFailed
)

func (r DirResult) String() string {
	switch r {
	case DirCreated:
		return metrics.MkdirCreated
	case DirExists:
		return metrics.MkdirExists
	default:
		return metrics.MkdirFailed
	}
}

// ClassifyMkdir 区分“已存在”和真正的失败
func ClassifyMkdir(err error) DirResult {
	if err == nil {
		return DirCreated
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch {
		case tpErr.Code == statusDirExists:
			return DirExists
		case tpErr.Code == ftp.StatusFileUnavailable && strings.Contains(strings.ToLower(tpErr.Msg), "exist"):
			return DirExists
		}
	}
	return DirFailed
}

// EnsureDir 逐级创建 dir 的每个前缀（/a、/a/b、...），本会话已确认的前缀不再发送 MKD。
// dir 不以 / 开头时前缀保持相对（a、a/b），相对登录目录解析，与 STOR 一致。
// 宽松模式下总是返回 nil；严格模式下返回第一个真正失败的前缀。
func (s *Session) EnsureDir(dir string) error {
	if err := s.expect("ensure dir", StateReady); err != nil {
		return err
	}

	var prefix strings.Builder
	absolute := strings.HasPrefix(dir, "/")
	for _, seg := range strings.Split(dir, "/") {
		if seg == "" || seg == "." {
			continue
		}
		if absolute || prefix.Len() > 0 {
			prefix.WriteString("/")
		}
		prefix.WriteString(seg)
		current := prefix.String()

		if _, ok := s.dirs[current]; ok {
			continue
		}

		err := s.conn.MakeDir(current)
		result := ClassifyMkdir(err)
		// 部分服务器（如 vsftpd）对已存在目录只回复 550 Create directory operation failed.
		if result == DirFailed && s.dirExists(current) {
			result = DirExists
		}
		s.metrics.RecordMkdir(result.String())

		if result != DirFailed {
			s.dirs[current] = struct{}{}
			continue
		}
		if s.policy == DirStrict {
			return &DirCreateError{Dir: dir, Prefix: current, Err: err}
		}
		s.logger.Warn("create remote directory failed",
			zap.String("dir", current),
			zap.Error(err),
		)
	}
	return nil
}

// dirExists 通过 CWD 判断目录是否存在，随后切回登录时的工作目录
func (s *Session) dirExists(dir string) bool {
	if s.cwd == "" {
		cwd, err := s.conn.CurrentDir()
		if err != nil {
			s.logger.Debug("pwd failed", zap.Error(err))
			return false
		}
		s.cwd = cwd
	}

	if err := s.conn.ChangeDir(dir); err != nil {
		return false
	}
	if err := s.conn.ChangeDir(s.cwd); err != nil {
		s.logger.Warn("restore working directory failed", zap.String("dir", s.cwd), zap.Error(err))
	}
	return true
}

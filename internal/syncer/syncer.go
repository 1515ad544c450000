// Package syncer 组合文件发现、路径映射和 FTP 会话，提供单文件同步与全量同步两个入口。
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hwuu/ftpsync/internal/config"
	"github.com/hwuu/ftpsync/internal/discovery"
	"github.com/hwuu/ftpsync/internal/logging"
	"github.com/hwuu/ftpsync/internal/metrics"
	"github.com/hwuu/ftpsync/internal/pathmap"
	"github.com/hwuu/ftpsync/internal/remote"
)

var ErrLocalRead = errors.New("failed to read local file")

// ReadFileFunc 读取本地文件内容
type ReadFileFunc func(path string) ([]byte, error)

// Syncer 同步编排器，通过依赖注入支持测试。
// 每次调用各自打开一个会话，并发调用之间不共享连接。
type Syncer struct {
	Config   *config.SyncConfig
	Dial     remote.DialFunc   // 为 nil 时按 Config 连接真实 FTP 服务器
	Logger   *zap.Logger       // 为 nil 时不输出日志
	Metrics  *metrics.Recorder // 可为 nil
	ReadFile ReadFileFunc      // 为 nil 时使用 os.ReadFile
	Output   io.Writer         // 用户可见的逐文件输出，可为 nil
}

func (s *Syncer) printf(format string, args ...interface{}) {
	if s.Output == nil {
		return
	}
	fmt.Fprintf(s.Output, format, args...)
}

func (s *Syncer) dialFunc() remote.DialFunc {
	if s.Dial != nil {
		return s.Dial
	}
	dial := remote.NewFTPDialFunc(s.Config.Host, s.Config.Port, s.Config.Timeout())
	return remote.DialWithBackoff(dial, remote.WaitOptions{Retries: s.Config.ConnectRetries})
}

func (s *Syncer) readFile(path string) ([]byte, error) {
	if s.ReadFile != nil {
		return s.ReadFile(path)
	}
	return os.ReadFile(path)
}

func (s *Syncer) dirPolicy() remote.DirPolicy {
	if s.Config.StrictDirectories {
		return remote.DirStrict
	}
	return remote.DirLenient
}

// openSession 连接、登录并进入被动模式。失败时会话已关闭。
func (s *Syncer) openSession(ctx context.Context, logger *zap.Logger) (*remote.Session, error) {
	sess := remote.NewSession(s.dialFunc(), remote.SessionOptions{
		Logger:    logger,
		Metrics:   s.Metrics,
		DirPolicy: s.dirPolicy(),
	})

	if err := sess.Connect(ctx); err != nil {
		return nil, err
	}
	if err := sess.Login(s.Config.Username, s.Config.Password.Value()); err != nil {
		sess.Close()
		return nil, err
	}
	if err := sess.SetPassiveMode(); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

// mapPath 计算远程路径。本地根目录与文件一个是绝对路径、一个是相对路径时，先都转成绝对路径。
func (s *Syncer) mapPath(localFile string) (string, error) {
	root := s.Config.LocalPath
	if filepath.IsAbs(root) != filepath.IsAbs(localFile) {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return "", fmt.Errorf("%w: %v", pathmap.ErrPathMapping, err)
		}
		absFile, err := filepath.Abs(localFile)
		if err != nil {
			return "", fmt.Errorf("%w: %v", pathmap.ErrPathMapping, err)
		}
		root, localFile = absRoot, absFile
	}
	return pathmap.MapRemotePath(root, s.Config.RemotePath, localFile)
}

// transfer 在已就绪的会话上完成单个文件：建父目录 → 读取 → 上传
func (s *Syncer) transfer(ctx context.Context, sess *remote.Session, localPath, remotePath string) (int64, error) {
	if err := sess.EnsureDir(pathmap.RemoteDir(remotePath)); err != nil {
		return 0, err
	}

	content, err := s.readFile(localPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrLocalRead, localPath, err)
	}

	if err := sess.Upload(ctx, remotePath, content); err != nil {
		return 0, err
	}
	return int64(len(content)), nil
}

func (s *Syncer) record(logger *zap.Logger, o TransferOutcome) {
	s.Metrics.RecordUpload(string(o.Status), o.Bytes)

	switch o.Status {
	case StatusSuccess:
		logger.Info("uploaded",
			logging.String("local", o.LocalPath),
			logging.String("remote", o.RemotePath),
			logging.Int64("bytes", o.Bytes),
		)
		s.printf("  ✓ %s -> %s\n", o.LocalPath, o.RemotePath)
	case StatusFailed:
		logger.Warn("upload failed",
			logging.String("local", o.LocalPath),
			logging.String("remote", o.RemotePath),
			logging.Err(o.Err),
		)
		s.printf("  ✗ %s: %s\n", o.LocalPath, o.Reason())
	}
}

// SyncOne 同步单个文件。扩展名不在同步列表中时返回 StatusSkipped 和 nil 错误，不建立连接。
// 任一步骤失败都返回错误，结果中同时记录失败原因。
func (s *Syncer) SyncOne(ctx context.Context, localPath string) (*TransferOutcome, error) {
	start := time.Now()
	defer func() { s.Metrics.ObserveSync("one", time.Since(start)) }()

	logger := logging.OrNop(s.Logger)
	outcome := &TransferOutcome{LocalPath: localPath}

	if !discovery.ShouldSync(localPath, s.Config.Extensions()) {
		outcome.Status = StatusSkipped
		s.Metrics.RecordUpload(string(StatusSkipped), 0)
		logger.Debug("skipped", logging.String("local", localPath))
		return outcome, nil
	}

	fail := func(err error) (*TransferOutcome, error) {
		outcome.Status = StatusFailed
		outcome.Err = err
		s.record(logger, *outcome)
		return outcome, err
	}

	remotePath, err := s.mapPath(localPath)
	if err != nil {
		return fail(err)
	}
	outcome.RemotePath = remotePath

	sess, err := s.openSession(ctx, logger)
	if err != nil {
		return fail(err)
	}
	defer sess.Close()

	n, err := s.transfer(ctx, sess, localPath, remotePath)
	if err != nil {
		return fail(err)
	}

	outcome.Status = StatusSuccess
	outcome.Bytes = n
	s.record(logger, *outcome)
	return outcome, nil
}

// SyncAll 全量同步。先完成文件发现，再建立唯一的会话依次上传。
// 发现、连接或登录失败时返回 nil 报告；单个文件的失败记入报告，批次继续。
// ctx 在文件之间检查，取消后剩余文件记为失败，同时返回报告和 ctx 错误。
func (s *Syncer) SyncAll(ctx context.Context) (*Report, error) {
	start := time.Now()
	defer func() { s.Metrics.ObserveSync("all", time.Since(start)) }()

	runID := uuid.NewString()
	logger := logging.OrNop(s.Logger).With(zap.String("run_id", runID))

	files, err := discovery.Discover(s.Config.LocalPath, s.Config.Extensions(), discovery.Options{
		Exclude: s.Config.Exclude,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("discovered files", zap.Int("count", len(files)))

	sess, err := s.openSession(ctx, logger)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	report := &Report{RunID: runID, Total: len(files)}
	for _, localPath := range files {
		if err := ctx.Err(); err != nil {
			s.markCanceled(report, logger, localPath, err)
			continue
		}

		outcome := TransferOutcome{LocalPath: localPath}
		remotePath, err := pathmap.MapRemotePath(s.Config.LocalPath, s.Config.RemotePath, localPath)
		if err == nil {
			outcome.RemotePath = remotePath
			outcome.Bytes, err = s.transfer(ctx, sess, localPath, remotePath)
		}
		if err != nil {
			outcome.Status = StatusFailed
			outcome.Err = err
		} else {
			outcome.Status = StatusSuccess
		}

		s.record(logger, outcome)
		report.add(outcome)
	}

	report.Duration = time.Since(start)
	logger.Info("sync finished",
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Syncer) markCanceled(report *Report, logger *zap.Logger, localPath string, err error) {
	outcome := TransferOutcome{LocalPath: localPath, Status: StatusFailed, Err: err}
	s.Metrics.RecordUpload(string(StatusFailed), 0)
	logger.Debug("not attempted", logging.String("local", localPath), logging.Err(err))
	report.add(outcome)
}

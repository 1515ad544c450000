package remote

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hwuu/ftpsync/internal/logging"
	"github.com/hwuu/ftpsync/internal/metrics"
)

// State 会话状态：Disconnected → Connected → Authenticated → Ready → Closed
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateAuthenticated
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SessionOptions 会话的可选依赖，零值可用
type SessionOptions struct {
	Logger    *zap.Logger
	Metrics   *metrics.Recorder
	DirPolicy DirPolicy
}

// Session 独占一条 FTP 连接，只属于一次同步操作，不在调用之间共享
type Session struct {
	dial    DialFunc
	conn    Conn
	state   State
	dirs    map[string]struct{} // 本会话内已确认存在的远程目录
	cwd     string              // 登录后的工作目录，首次探测目录时获取
	logger  *zap.Logger
	metrics *metrics.Recorder
	policy  DirPolicy
}

// NewSession 创建未连接的会话
func NewSession(dial DialFunc, opts SessionOptions) *Session {
	return &Session{
		dial:    dial,
		state:   StateDisconnected,
		dirs:    make(map[string]struct{}),
		logger:  logging.OrNop(opts.Logger),
		metrics: opts.Metrics,
		policy:  opts.DirPolicy,
	}
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) expect(op string, want State) error {
	if s.state != want {
		return fmt.Errorf("%w: %s requires %s, session is %s", ErrInvalidState, op, want, s.state)
	}
	return nil
}

// Connect 建立控制连接
func (s *Session) Connect(ctx context.Context) error {
	if err := s.expect("connect", StateDisconnected); err != nil {
		return err
	}
	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	s.conn = conn
	s.state = StateConnected
	return nil
}

// Login 发送 USER/PASS
func (s *Session) Login(user, password string) error {
	if err := s.expect("login", StateConnected); err != nil {
		return err
	}
	if err := s.conn.Login(user, password); err != nil {
		return fmt.Errorf("%w: user %s: %w", ErrAuth, user, err)
	}
	s.state = StateAuthenticated
	return nil
}

// SetPassiveMode 进入可传输状态。数据通道只使用被动模式，由 dial 时的选项决定。
func (s *Session) SetPassiveMode() error {
	if err := s.expect("passive mode", StateAuthenticated); err != nil {
		return err
	}
	s.state = StateReady
	return nil
}

// Upload 通过 STOR 上传完整内容，已存在的远程文件被覆盖。
// 开始前检查 ctx，传输中不中断。
func (s *Session) Upload(ctx context.Context, remotePath string, content []byte) error {
	if err := s.expect("upload", StateReady); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("upload %s: %w", remotePath, err)
	}
	if err := s.conn.Stor(remotePath, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUpload, remotePath, err)
	}
	return nil
}

// Close 发送 QUIT。任意状态下可调用，重复调用无副作用。
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	if err := conn.Quit(); err != nil {
		s.logger.Debug("quit failed", zap.Error(err))
		return err
	}
	return nil
}

package remote

// ftp.go 提供基于 jlaffaye/ftp 的真实连接实现（非 mock）。

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
)

const DefaultDialTimeout = 30 * time.Second

// Conn 抽象一条已建立的 FTP 控制连接，支持 mock 测试
type Conn interface {
	Login(user, password string) error
	MakeDir(path string) error
	ChangeDir(path string) error
	CurrentDir() (string, error)
	Stor(path string, r io.Reader) error
	Quit() error
}

var _ Conn = (*ftp.ServerConn)(nil)

// DialFunc 用于建立 FTP 连接的函数类型
type DialFunc func(ctx context.Context) (Conn, error)

// NewFTPDialFunc 创建真实 FTP 连接的 DialFunc。
// 关闭 EPSV，数据通道统一走 PASV；jlaffaye/ftp 在登录后自动切换 TYPE I。
func NewFTPDialFunc(host string, port uint16, timeout time.Duration) DialFunc {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))

	return func(ctx context.Context) (Conn, error) {
		conn, err := ftp.Dial(addr,
			ftp.DialWithContext(ctx),
			ftp.DialWithTimeout(timeout),
			ftp.DialWithDisabledEPSV(true),
		)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return conn, nil
	}
}

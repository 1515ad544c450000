package remote

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultInitialInterval = 1 * time.Second
	DefaultMaxInterval     = 10 * time.Second
)

// WaitOptions 配置 DialWithBackoff 的重试参数
type WaitOptions struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Retries 为首次失败后的最大重试次数，0 表示只尝试一次
	Retries int
}

func (o *WaitOptions) withDefaults() {
	if o.InitialInterval == 0 {
		o.InitialInterval = DefaultInitialInterval
	}
	if o.MaxInterval == 0 {
		o.MaxInterval = DefaultMaxInterval
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
}

// DialWithBackoff 使用指数退避重试建立 FTP 连接，直到成功、重试用尽或 ctx 结束。
// Retries 为 0 时直接返回 dial 的结果。
func DialWithBackoff(dial DialFunc, opts WaitOptions) DialFunc {
	opts.withDefaults()
	if opts.Retries == 0 {
		return dial
	}

	return func(ctx context.Context) (Conn, error) {
		interval := opts.InitialInterval
		var lastErr error

		for attempt := 0; ; attempt++ {
			conn, err := dial(ctx)
			if err == nil {
				return conn, nil
			}
			lastErr = err
			if attempt >= opts.Retries {
				return nil, fmt.Errorf("%w after %d attempts: last error: %v", ErrDialTimeout, attempt+1, lastErr)
			}

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: last error: %v", ErrDialTimeout, lastErr)
			case <-time.After(interval):
				// 指数退避，不超过 MaxInterval
				interval = interval * 2
				if interval > opts.MaxInterval {
					interval = opts.MaxInterval
				}
			}
		}
	}
}

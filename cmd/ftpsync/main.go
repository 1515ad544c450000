package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hwuu/ftpsync/internal/config"
	"github.com/hwuu/ftpsync/internal/logging"
	"github.com/hwuu/ftpsync/internal/metrics"
	"github.com/hwuu/ftpsync/internal/remote"
	"github.com/hwuu/ftpsync/internal/syncer"
)

// 构建时通过 ldflags 注入
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootOptions 全局 flag，以及测试时替换的依赖
type rootOptions struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsFile string

	dial remote.DialFunc // 测试注入，nil 时连接真实服务器
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootOptions{})
}

func newRootCmdWith(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ftpsync",
		Short:         "把本地项目目录镜像同步到 FTP 服务器",
		Long:          "ftpsync: 按扩展名筛选本地文件，保持目录结构上传到 FTP 服务器。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultFileName, "配置文件路径")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "日志级别 (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "console", "日志格式 (console, json)")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "结束时把 Prometheus 指标写入该文件")

	rootCmd.AddCommand(newSyncCmd(opts))
	rootCmd.AddCommand(newPushCmd(opts))
	rootCmd.AddCommand(newInitCmd(opts))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// newSyncer 加载配置并组装 Syncer。返回的 finish 负责刷新日志和导出指标。
func (o *rootOptions) newSyncer(cmd *cobra.Command) (*syncer.Syncer, func() error, error) {
	cfg, err := config.LoadFrom(o.configPath)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, nil, fmt.Errorf("%w (运行 ftpsync init 生成默认配置)", err)
		}
		return nil, nil, err
	}

	logger, err := logging.New(logging.Config{Level: o.logLevel, Format: o.logFormat})
	if err != nil {
		return nil, nil, err
	}

	var rec *metrics.Recorder
	if o.metricsFile != "" {
		rec = metrics.New()
	}

	s := &syncer.Syncer{
		Config:  cfg,
		Dial:    o.dial,
		Logger:  logger,
		Metrics: rec,
		Output:  cmd.OutOrStdout(),
	}

	finish := func() error {
		_ = logger.Sync()
		if o.metricsFile == "" {
			return nil
		}
		if err := rec.WriteTextfile(o.metricsFile); err != nil {
			logger.Warn("write metrics file failed", zap.String("path", o.metricsFile), zap.Error(err))
			return err
		}
		return nil
	}
	return s, finish, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "上传项目中所有匹配扩展名的文件",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, finish, err := opts.newSyncer(cmd)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, finish()) }()

			ctx, cancel := signalContext(cmd)
			defer cancel()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "同步 %s -> %s:%d%s\n", s.Config.LocalPath, s.Config.Host, s.Config.Port, s.Config.RemotePath)

			report, err := s.SyncAll(ctx)
			if report != nil {
				fmt.Fprintf(out, "\n共 %d 个文件，成功 %d，失败 %d（%s）\n",
					report.Total, report.Succeeded, report.Failed, report.Duration.Round(time.Millisecond))
			}
			if err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d file(s) failed to upload", report.Failed)
			}
			return nil
		},
	}
}

func newPushCmd(opts *rootOptions) *cobra.Command {
	var onSave bool

	cmd := &cobra.Command{
		Use:   "push <file>...",
		Short: "上传指定文件",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, finish, err := opts.newSyncer(cmd)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, finish()) }()

			// 保存时触发：未开启 auto_sync 则什么都不做
			if onSave && !s.Config.AutoSync {
				return nil
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			failed := 0
			for _, path := range args {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				outcome, err := s.SyncOne(ctx, path)
				if err != nil {
					failed++
					continue
				}
				if outcome.Status == syncer.StatusSkipped && !onSave {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s: 扩展名不在同步列表中，跳过\n", path)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d file(s) failed to upload", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&onSave, "on-save", false, "由编辑器保存钩子调用，遵循 auto_sync 设置")
	return cmd
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	var yes, force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "生成配置文件",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return fmt.Errorf("%w: %s (使用 --force 覆盖)", config.ErrConfigExists, opts.configPath)
			}

			cfg := config.Default()
			if !yes {
				prompter := config.NewPrompter(cmd.InOrStdin(), out)
				var err error
				if cfg, err = prompter.PromptSyncConfig(); err != nil {
					return err
				}
			}

			// 覆盖前先备份旧配置，写入失败时恢复
			backupPath, err := config.BackupConfig(opts.configPath)
			if err != nil {
				return err
			}
			if err := config.SaveTo(opts.configPath, cfg); err != nil {
				if backupPath != "" {
					if rerr := config.RestoreBackup(opts.configPath); rerr != nil {
						return fmt.Errorf("%w (restore failed: %v)", err, rerr)
					}
				}
				return err
			}
			if backupPath != "" {
				fmt.Fprintf(out, "  ✓ 旧配置已备份到 %s\n", backupPath)
			}
			fmt.Fprintf(out, "  ✓ 配置已写入 %s\n", opts.configPath)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "不交互，直接写入默认配置")
	cmd.Flags().BoolVar(&force, "force", false, "覆盖已存在的配置文件")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "显示示例配置",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			example, err := config.Example()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "在项目根目录创建 %s，内容示例：\n\n%s\n\n", config.DefaultFileName, example)
			fmt.Fprintf(out, "可通过环境变量 %s 提供密码，覆盖文件中的 password。\n", config.EnvPassword)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ftpsync %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
			fmt.Fprintf(out, "  go:     %s\n", runtime.Version())
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

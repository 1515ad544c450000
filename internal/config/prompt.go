// prompt.go 提供 CLI 交互式输入功能：文本输入、密码输入（掩码显示）、确认。
// ftpsync init 用它逐项收集连接参数。
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Prompter 封装 CLI 交互式输入，通过 reader/writer 抽象支持 mock 测试
type Prompter struct {
	reader  io.Reader
	writer  io.Writer
	scanner *bufio.Scanner
}

// NewPrompter 创建 Prompter（指定输入输出流）
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	return &Prompter{
		reader:  reader,
		writer:  writer,
		scanner: bufio.NewScanner(reader),
	}
}

// NewDefaultPrompter 创建使用 stdin/stdout 的默认 Prompter
func NewDefaultPrompter() *Prompter {
	return NewPrompter(os.Stdin, os.Stdout)
}

// Prompt 显示提示信息并读取一行输入
func (p *Prompter) Prompt(message string) (string, error) {
	fmt.Fprint(p.writer, message)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", nil
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// PromptWithDefault 带默认值的输入提示，用户直接回车则使用默认值
func (p *Prompter) PromptWithDefault(message, defaultValue string) (string, error) {
	result, err := p.Prompt(fmt.Sprintf("%s [%s]: ", message, defaultValue))
	if err != nil {
		return "", err
	}
	if result == "" {
		return defaultValue, nil
	}
	return result, nil
}

// PromptPassword 密码输入，终端模式下每个字符显示为 *，支持退格删除。
// 非终端模式（如测试 mock）退化为普通文本读取。
func (p *Prompter) PromptPassword(message string) (string, error) {
	fmt.Fprint(p.writer, message)

	if f, ok := p.reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := readPassword(f, p.writer)
		if err != nil {
			return "", err
		}
		fmt.Fprintln(p.writer)
		return string(password), nil
	}

	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", nil
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// PromptConfirm 确认提示。defaultYes=true 时默认 yes [Y/n]，否则默认 no [y/N]
func (p *Prompter) PromptConfirm(message string, defaultYes bool) (bool, error) {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	result, err := p.Prompt(fmt.Sprintf("%s %s: ", message, hint))
	if err != nil {
		return false, err
	}
	result = strings.ToLower(strings.TrimSpace(result))
	if result == "" {
		return defaultYes, nil
	}
	return result == "y", nil
}

// PromptSyncConfig 以默认配置为底逐项询问，返回规整并校验后的配置
func (p *Prompter) PromptSyncConfig() (*SyncConfig, error) {
	cfg := Default()

	host, err := p.PromptWithDefault("FTP 主机", cfg.Host)
	if err != nil {
		return nil, err
	}
	cfg.Host = host

	portStr, err := p.PromptWithDefault("端口", strconv.Itoa(int(cfg.Port)))
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid port %q", ErrInvalidConfig, portStr)
	}
	cfg.Port = uint16(port)

	username, err := p.PromptWithDefault("用户名", cfg.Username)
	if err != nil {
		return nil, err
	}
	cfg.Username = username

	password, err := p.PromptPassword("密码: ")
	if err != nil {
		return nil, err
	}
	cfg.Password = Secret(password)

	remotePath, err := p.PromptWithDefault("远程根目录", cfg.RemotePath)
	if err != nil {
		return nil, err
	}
	cfg.RemotePath = remotePath

	localPath, err := p.PromptWithDefault("本地根目录", cfg.LocalPath)
	if err != nil {
		return nil, err
	}
	cfg.LocalPath = localPath

	exts, err := p.PromptWithDefault("同步的扩展名（逗号分隔）", strings.Join(cfg.FileExtensions, ","))
	if err != nil {
		return nil, err
	}
	cfg.FileExtensions = strings.Split(exts, ",")

	autoSync, err := p.PromptConfirm("保存时自动上传?", cfg.AutoSync)
	if err != nil {
		return nil, err
	}
	cfg.AutoSync = autoSync

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readPassword 从终端读取密码，每输入一个字符向 w 输出 *，支持退格删除。
// 通过 term.MakeRaw 进入原始模式逐字符读取，退出时恢复终端状态。
func readPassword(f *os.File, w io.Writer) ([]byte, error) {
	fd := int(f.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return term.ReadPassword(fd)
	}
	defer term.Restore(fd, oldState)

	return readMasked(f, w)
}

// readMasked 逐字节读取直到回车或 EOF，回显掩码
func readMasked(r io.Reader, w io.Writer) ([]byte, error) {
	var password []byte
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if err != nil || n == 0 {
			break
		}
		ch := buf[0]
		switch {
		case ch == '\r' || ch == '\n':
			return password, nil
		case ch == 3: // Ctrl+C
			return nil, fmt.Errorf("interrupted")
		case ch == 127 || ch == 8: // Backspace / Delete
			if len(password) > 0 {
				password = password[:len(password)-1]
				w.Write([]byte("\b \b"))
			}
		default:
			password = append(password, ch)
			w.Write([]byte("*"))
		}
	}
	return password, nil
}

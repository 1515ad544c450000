package remote_test

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hwuu/ftpsync/internal/remote"
)

// fakeServer 进程内的最小 FTP 服务端，记录收到的每条控制命令。
// 已存在目录的 MKD 按 vsftpd 的方式回复 550。
type fakeServer struct {
	ln   net.Listener
	done chan struct{}

	mu       sync.Mutex
	commands []string
	dirs     map[string]bool
	files    map[string]string
}

func newFakeServer(t *testing.T, dirs ...string) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &fakeServer{
		ln:    ln,
		done:  make(chan struct{}),
		dirs:  map[string]bool{"/": true},
		files: map[string]string{},
	}
	for _, d := range dirs {
		srv.dirs[d] = true
	}
	t.Cleanup(func() { _ = ln.Close() })
	go srv.serve()
	return srv
}

func (f *fakeServer) port() uint16 {
	return uint16(f.ln.Addr().(*net.TCPAddr).Port)
}

func (f *fakeServer) record(line string) {
	f.mu.Lock()
	f.commands = append(f.commands, line)
	f.mu.Unlock()
}

func (f *fakeServer) serve() {
	defer close(f.done)
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(format string, args ...any) {
		fmt.Fprintf(conn, format+"\r\n", args...)
	}

	var data net.Listener
	defer func() {
		if data != nil {
			_ = data.Close()
		}
	}()

	reply("220 fake ftpd ready")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		f.record(line)
		verb, arg, _ := strings.Cut(line, " ")

		switch verb {
		case "USER":
			reply("331 Please specify the password.")
		case "PASS":
			reply("230 Login successful.")
		case "FEAT":
			reply("502 Command not implemented.")
		case "TYPE":
			reply("200 Switching to Binary mode.")
		case "PWD":
			reply(`257 "/" is the current directory`)
		case "CWD":
			f.mu.Lock()
			ok := f.dirs[arg]
			f.mu.Unlock()
			if ok {
				reply("250 Directory successfully changed.")
			} else {
				reply("550 Failed to change directory.")
			}
		case "MKD":
			f.mu.Lock()
			exists := f.dirs[arg]
			f.dirs[arg] = true
			f.mu.Unlock()
			if exists {
				reply("550 Create directory operation failed.")
			} else {
				reply(`257 "%s" created`, arg)
			}
		case "PASV":
			if data != nil {
				_ = data.Close()
			}
			data, err = net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				reply("425 Cannot open data connection.")
				continue
			}
			p := data.Addr().(*net.TCPAddr).Port
			reply("227 Entering Passive Mode (127,0,0,1,%d,%d).", p/256, p%256)
		case "STOR":
			if data == nil {
				reply("425 Use PORT or PASV first.")
				continue
			}
			dc, err := data.Accept()
			if err != nil {
				reply("425 Cannot open data connection.")
				continue
			}
			reply("150 Ok to send data.")
			body, _ := io.ReadAll(dc)
			_ = dc.Close()
			_ = data.Close()
			data = nil
			f.mu.Lock()
			f.files[arg] = string(body)
			f.mu.Unlock()
			reply("226 Transfer complete.")
		case "QUIT":
			reply("221 Goodbye.")
			return
		default:
			reply("502 Command not implemented.")
		}
	}
}

func (f *fakeServer) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not see the session end")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func indexOf(commands []string, want string) int {
	for i, c := range commands {
		if c == want {
			return i
		}
	}
	return -1
}

func TestSession_WireProtocol(t *testing.T) {
	srv := newFakeServer(t, "/var", "/var/www", "/var/www/html")

	s := remote.NewSession(
		remote.NewFTPDialFunc("127.0.0.1", srv.port(), 5*time.Second),
		remote.SessionOptions{DirPolicy: remote.DirStrict},
	)
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Login("deploy", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := s.SetPassiveMode(); err != nil {
		t.Fatalf("SetPassiveMode: %v", err)
	}

	uploads := map[string]string{
		"/var/www/html/assets/site.css": "body{}",
		"/var/www/html/assets/app.js":   "void 0",
	}
	for _, path := range []string{"/var/www/html/assets/site.css", "/var/www/html/assets/app.js"} {
		if err := s.EnsureDir("/var/www/html/assets"); err != nil {
			t.Fatalf("EnsureDir for %s: %v", path, err)
		}
		if err := s.Upload(ctx, path, []byte(uploads[path])); err != nil {
			t.Fatalf("Upload %s: %v", path, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	commands := srv.wait(t)

	user, pass := indexOf(commands, "USER deploy"), indexOf(commands, "PASS secret")
	if user != 0 || pass != 1 {
		t.Errorf("USER/PASS must open the session, got %v", commands)
	}

	var pasv, stor, mkd int
	for _, c := range commands {
		switch {
		case c == "EPSV" || strings.HasPrefix(c, "EPSV ") || strings.HasPrefix(c, "PORT ") || strings.HasPrefix(c, "EPRT "):
			t.Errorf("only passive mode is allowed, got %q", c)
		case c == "PASV":
			pasv++
		case strings.HasPrefix(c, "STOR "):
			stor++
		case strings.HasPrefix(c, "MKD "):
			mkd++
		}
	}
	if pasv != 2 || stor != 2 {
		t.Errorf("PASV = %d, STOR = %d, want 2 each: %v", pasv, stor, commands)
	}
	// 每个前缀只发一次 MKD，已存在的目录不算失败
	if mkd != 4 {
		t.Errorf("MKD count = %d, want 4: %v", mkd, commands)
	}

	mkdAssets := indexOf(commands, "MKD /var/www/html/assets")
	firstStor := indexOf(commands, "STOR /var/www/html/assets/site.css")
	if mkdAssets < 0 || firstStor < 0 || mkdAssets > firstStor {
		t.Errorf("MKD must precede STOR: %v", commands)
	}
	if commands[firstStor-1] != "PASV" {
		t.Errorf("STOR must follow PASV: %v", commands)
	}
	if last := commands[len(commands)-1]; last != "QUIT" {
		t.Errorf("last command = %q, want QUIT", last)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	for path, want := range uploads {
		if got := srv.files[path]; got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
}

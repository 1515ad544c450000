// Package discovery 遍历本地项目目录，找出扩展名在同步列表中的文件。
// 遍历为深度优先、先序，用显式栈实现，目录再深也不会撑爆调用栈。
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

var ErrDiscovery = errors.New("discovery failed")

// Options 控制遍历行为
type Options struct {
	// Exclude 为 gitignore 风格规则，匹配相对根目录的 / 分隔路径，命中的目录不再深入
	Exclude []string
}

// frame 栈中的一层目录：已读出的目录项和下一个待处理项的下标
type frame struct {
	dir      string
	realPath string
	entries  []fs.DirEntry
	next     int
}

// Extension 返回文件扩展名（不含点）。隐藏文件如 .htaccess 没有扩展名。
func Extension(path string) string {
	base := filepath.Base(path)
	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 {
		return ""
	}
	return base[idx+1:]
}

// ShouldSync 判断文件扩展名是否在同步列表中（区分大小写，按原样比较）
func ShouldSync(path string, extensions map[string]struct{}) bool {
	ext := Extension(path)
	if ext == "" {
		return false
	}
	_, ok := extensions[ext]
	return ok
}

// Walk 返回惰性遍历序列。任一目录读取失败时产出 ErrDiscovery 并结束。
// 产出顺序即目录遍历顺序，调用方不应依赖具体次序。
func Walk(root string, extensions map[string]struct{}, opts Options) iter.Seq2[string, error] {
	var matcher *ignore.GitIgnore
	if len(opts.Exclude) > 0 {
		matcher = ignore.CompileIgnoreLines(opts.Exclude...)
	}

	return func(yield func(string, error) bool) {
		rootReal, err := filepath.EvalSymlinks(root)
		if err != nil {
			yield("", fmt.Errorf("%w: %s: %v", ErrDiscovery, root, err))
			return
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			yield("", fmt.Errorf("%w: %s: %v", ErrDiscovery, root, err))
			return
		}

		visited := map[string]bool{rootReal: true}
		stack := []*frame{{dir: root, realPath: rootReal, entries: entries}}

		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.next >= len(top.entries) {
				stack = stack[:len(stack)-1]
				continue
			}
			entry := top.entries[top.next]
			top.next++

			path := filepath.Join(top.dir, entry.Name())
			isDir := entry.IsDir()
			realPath := filepath.Join(top.realPath, entry.Name())

			// 符号链接按目标类型处理；失效链接当作普通文件
			if entry.Type()&fs.ModeSymlink != 0 {
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					resolved, err := filepath.EvalSymlinks(path)
					if err != nil {
						yield("", fmt.Errorf("%w: %s: %v", ErrDiscovery, path, err))
						return
					}
					isDir = true
					realPath = resolved
				}
			}

			if matcher != nil && excluded(matcher, root, path, isDir) {
				continue
			}

			if isDir {
				if visited[realPath] {
					continue
				}
				visited[realPath] = true

				children, err := os.ReadDir(path)
				if err != nil {
					yield("", fmt.Errorf("%w: %s: %v", ErrDiscovery, path, err))
					return
				}
				stack = append(stack, &frame{dir: path, realPath: realPath, entries: children})
				continue
			}

			if ShouldSync(path, extensions) {
				if !yield(path, nil) {
					return
				}
			}
		}
	}
}

// Discover 收集 Walk 的全部结果。出错时不返回部分结果。
func Discover(root string, extensions map[string]struct{}, opts Options) ([]string, error) {
	var files []string
	for path, err := range Walk(root, extensions, opts) {
		if err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

func excluded(matcher *ignore.GitIgnore, root, path string, isDir bool) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if matcher.MatchesPath(rel) {
		return true
	}
	return isDir && matcher.MatchesPath(rel+"/")
}

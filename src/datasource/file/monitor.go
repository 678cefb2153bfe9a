// monitor.go
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监听数据文件所在目录, 数据文件被写入/替换时回调
type FileMonitor struct {
	watchDir string
	target   string // 只关心这个文件, 为空时目录下所有文件都触发
	watcher  *fsnotify.Watcher
	lastFile string
	lastMod  time.Time
	mu       sync.Mutex
}

// NewFileMonitor 监听 path: 目录则监听目录下所有文件, 文件则监听其所在目录并只关注该文件
func NewFileMonitor(path string) (*FileMonitor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("监控路径不存在: %w", err)
	}

	dir, target := path, ""
	if !info.IsDir() {
		dir, target = filepath.Dir(path), filepath.Clean(path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// 监听目录而不是文件本身, 编辑器/复制工具常以 rename 方式替换文件
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileMonitor{
		watchDir: dir,
		target:   target,
		watcher:  watcher,
	}, nil
}

// Watch 阻塞直到 ctx 结束或 watcher 关闭, 文件变化时异步调用 handler
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if !m.relevant(event) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}

			m.mu.Lock()
			if event.Name != m.lastFile || info.ModTime().After(m.lastMod) {
				m.lastMod = info.ModTime()
				m.lastFile = event.Name
				go handler(event.Name)
			}
			m.mu.Unlock()
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) relevant(event fsnotify.Event) bool {
	if m.target != "" && filepath.Clean(event.Name) != m.target {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// Close 关闭底层 watcher
func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}

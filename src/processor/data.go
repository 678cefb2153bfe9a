// data.go
package processor

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-gota/gota/dataframe"
)

// Loader 读取原始数据表(所有列为字符串)
type Loader func(path string) (dataframe.DataFrame, error)

// LoadStats 一次加载的结果, 用于日志和监控
type LoadStats struct {
	Path     string
	Report   CleanReport
	Duration time.Duration
	Err      error
}

// Dataset 清洗后的数据集, 按文件(大小, 修改时间)缓存, 文件变化或 Invalidate 后重新加载
// 所有页面共享同一份只读数据, Get 返回副本
type Dataset struct {
	path   string
	load   Loader
	opts   CleanOptions
	onLoad func(LoadStats)

	mu      sync.RWMutex
	df      dataframe.DataFrame
	report  CleanReport
	size    int64
	modTime time.Time
	loaded  bool

	loadMu sync.Mutex // 同一时间只有一个加载
}

// NewDataset 创建数据集
// 参数:
//
//	path: 数据文件路径
//	load: 原始数据读取函数
//	opts: 清洗参数
func NewDataset(path string, load Loader, opts CleanOptions) *Dataset {
	return &Dataset{path: path, load: load, opts: opts}
}

// OnLoad 注册加载完成回调(成功或失败都会调用)
func (d *Dataset) OnLoad(fn func(LoadStats)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onLoad = fn
}

func (d *Dataset) Path() string { return d.path }

// Get 返回清洗后数据表的副本
func (d *Dataset) Get() (dataframe.DataFrame, CleanReport, error) {
	info, err := os.Stat(d.path)
	if err != nil {
		return dataframe.DataFrame{}, CleanReport{}, fmt.Errorf("数据文件不可用: %w", err)
	}

	if df, report, ok := d.cached(info); ok {
		return df, report, nil
	}

	d.loadMu.Lock()
	defer d.loadMu.Unlock()

	// 等锁期间其他请求可能已经加载完成
	if df, report, ok := d.cached(info); ok {
		return df, report, nil
	}

	start := time.Now()
	df, report, err := d.reload()
	stats := LoadStats{Path: d.path, Report: report, Duration: time.Since(start), Err: err}

	d.mu.Lock()
	if err == nil {
		d.df, d.report = df, report
		d.size, d.modTime = info.Size(), info.ModTime()
		d.loaded = true
	}
	onLoad := d.onLoad
	d.mu.Unlock()

	if onLoad != nil {
		onLoad(stats)
	}
	if err != nil {
		return dataframe.DataFrame{}, report, err
	}
	return df.Copy(), report, nil
}

func (d *Dataset) cached(info os.FileInfo) (dataframe.DataFrame, CleanReport, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.loaded || d.size != info.Size() || !d.modTime.Equal(info.ModTime()) {
		return dataframe.DataFrame{}, CleanReport{}, false
	}
	return d.df.Copy(), d.report, true
}

func (d *Dataset) reload() (dataframe.DataFrame, CleanReport, error) {
	raw, err := d.load(d.path)
	if err != nil {
		return dataframe.DataFrame{}, CleanReport{}, fmt.Errorf("读取数据文件失败: %w", err)
	}
	df, report, err := CleanData(raw, d.opts)
	if err != nil {
		return dataframe.DataFrame{}, report, fmt.Errorf("清洗数据失败: %w", err)
	}
	return df, report, nil
}

// Invalidate 丢弃缓存, 下次 Get 重新加载
func (d *Dataset) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = false
}

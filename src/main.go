package main

import (
	"DeliveryDashboard/src/config"
	"DeliveryDashboard/src/dashboard"
	"DeliveryDashboard/src/datapush"
	"DeliveryDashboard/src/datasource/file"
	"DeliveryDashboard/src/metrics"
	"DeliveryDashboard/src/processor"
	"DeliveryDashboard/src/server"
	"DeliveryDashboard/src/storage"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/go-gota/gota/dataframe"
	"github.com/robfig/cron"
)

func main() {
	jsonFolder := "./config"
	jsonFile := "config.json"
	dataJsonFile := "dataconfig.json"
	cfg, dcfg, err := config.LoadConfig(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()

	if err := writePidFile(cfg.PidFile); err != nil {
		logger.Error(err.Error())
	} else if cfg.PidFile != "" {
		defer os.Remove(cfg.PidFile)
	}

	metrics.RegisterDefault()
	data := newDataset(cfg, dcfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 预加载, 失败时服务照常启动, 页面返回错误直到文件可用
	if _, _, err := data.Get(); err != nil {
		logger.Warning("数据集预加载失败: " + err.Error())
	}

	// 监控数据文件变化
	monitor, err := file.NewFileMonitor(cfg.DataFile)
	if err != nil {
		logger.Warning("文件监控启动失败: " + err.Error())
	} else {
		defer monitor.Close()
		go func() {
			if err := monitor.Watch(ctx, reloadOnChange(data, logger)); err != nil {
				logger.Error("文件监控异常退出: " + err.Error())
			}
		}()
	}

	pages := dashboard.NewBuilder(dcfg)

	// 设置定时任务
	c := cron.New()
	reporter := datapush.NewReporter(cfg, data, pages, logger)
	if err := reporter.Schedule(c); err != nil {
		logger.Error(err.Error())
		return
	}
	c.Start()
	defer c.Stop()

	go handleSignals(cancel, data, logger)

	srv := server.New(data, pages, dcfg, logger)
	if err := srv.Run(ctx, cfg); err != nil {
		logger.Error(err.Error())
	}
	logger.Info("服务已退出")
}

// newDataset 按数据配置创建数据集, 每次加载的结果写入日志和监控
func newDataset(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) *processor.Dataset {
	opts := file.OptionsFromConfig(dcfg)
	data := processor.NewDataset(cfg.DataFile, func(path string) (dataframe.DataFrame, error) {
		return file.Load(path, opts)
	}, processor.CleanOptions{Sentinel: dcfg.Sentinel, SkipMalformed: dcfg.SkipMalformed})
	data.OnLoad(logLoad(logger))
	return data
}

func logLoad(logger *storage.Logger) func(processor.LoadStats) {
	return func(s processor.LoadStats) {
		r := s.Report
		metrics.ObserveLoad(s.Duration, s.Err, r.RowsIn, r.RowsOut, r.MissingRows(), r.Malformed)
		if processor.IsFormat(s.Err) {
			logger.Error(fmt.Sprintf("数据格式错误(%s), 可设置 skip_malformed 跳过: %v", s.Path, s.Err))
			return
		}
		if s.Err != nil {
			logger.Error(fmt.Sprintf("加载数据集失败(%s): %v", s.Path, s.Err))
			return
		}
		logger.Info(fmt.Sprintf("数据集已加载: %s, 读取 %d 行, 保留 %d 行, 缺失剔除 %d 行, 格式错误 %d 行, 用时 %v",
			s.Path, r.RowsIn, r.RowsOut, r.MissingRows(), r.Malformed, s.Duration))
	}
}

// reloadOnChange 文件变化后丢弃缓存并立即重新加载
func reloadOnChange(data *processor.Dataset, logger *storage.Logger) func(string) {
	return func(path string) {
		logger.Info("检测到数据文件变化: " + path)
		data.Invalidate()
		_, _, _ = data.Get()
	}
}

// writePidFile 写入当前进程号, 供 reload 工具发送 SIGHUP
func writePidFile(path string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建pid目录失败: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("写入pid文件失败: %w", err)
	}
	return nil
}

// handleSignals SIGHUP 重新打开日志并重新加载数据, SIGINT/SIGTERM 退出
func handleSignals(cancel context.CancelFunc, data *processor.Dataset, logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			logger.Info("Received signal: " + sig.String() + ", shutting down...")
			cancel()
			return
		}
		if err := logger.Reopen(""); err != nil {
			logger.Error("重新打开日志失败: " + err.Error())
		}
		logger.Info("收到 SIGHUP, 重新加载数据集")
		data.Invalidate()
		_, _, _ = data.Get()
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	DataFile string `json:"data_file"` // 配送数据源文件(csv/xlsx)

	Server struct {
		Addr            string   `json:"addr"`             // 监听地址
		ReadTimeout     Duration `json:"read_timeout"`     // 读超时
		WriteTimeout    Duration `json:"write_timeout"`    // 写超时
		ShutdownTimeout Duration `json:"shutdown_timeout"` // 优雅退出等待时间
	} `json:"server"`

	LogName    string `json:"log_name"`
	LogMaxSize string `json:"log_max_size"` // 例如 "10 * 1024 * 1024"
	PidFile    string `json:"pid_file"`
	ExportDir  string `json:"export_dir"` // 报表导出目录

	Report struct {
		Enabled bool   `json:"enabled"`
		Cron    string `json:"cron"` // robfig/cron 表达式, 例如 "@every 24h"
	} `json:"report"`

	SendEmail struct {
		Server   string   `json:"server"`   // SMTP服务器地址
		Username string   `json:"username"` // 发件邮箱
		Password string   `json:"password"` // 密码/授权码
		Subject  string   `json:"subject"`  // 报表邮件主题
		To       []string `json:"to"`       // 收件人
	} `json:"send_email"`

	Webhook struct {
		URL           string   `json:"url"` // 群机器人webhook
		RetryTimes    int      `json:"retry_times"`
		RetryInterval Duration `json:"retry_interval"`
	} `json:"webhook"`
}

// DataConfig 数据源相关配置: 列名映射、缺失值标记、侧边栏筛选默认值等
type DataConfig struct {
	Columns        map[string]string `json:"columns"` // 源文件表头 -> 规范列名
	Sentinel       string            `json:"sentinel"`
	Encoding       string            `json:"encoding"`
	Delimiter      string            `json:"delimiter"`
	SheetName      string            `json:"sheet_name"`
	HeaderRow      int               `json:"header_row"`
	Cities         []string          `json:"cities"`
	TrafficOptions []string          `json:"traffic_options"`
	DateMin        string            `json:"date_min"`
	DateMax        string            `json:"date_max"`
	DateDefault    string            `json:"date_default"`
	TopN           int               `json:"top_n"`
	SkipMalformed  bool              `json:"skip_malformed"`
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	cfg.applyDefaults()
	dcfg.applyDefaults()

	if err := ApplyEnv(cfg); err != nil {
		return nil, nil, err
	}

	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

func (c *Config) applyDefaults() {
	if c.DataFile == "" {
		c.DataFile = "data/train.csv"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.LogName == "" {
		c.LogName = "app.log"
	}
	if c.LogMaxSize == "" {
		c.LogMaxSize = "10 * 1024 * 1024"
	}
	if c.ExportDir == "" {
		c.ExportDir = "export"
	}
	if c.Report.Cron == "" {
		c.Report.Cron = "@every 24h"
	}
	if c.Webhook.RetryTimes == 0 {
		c.Webhook.RetryTimes = 5
	}
	if c.Webhook.RetryInterval == 0 {
		c.Webhook.RetryInterval = Duration(2 * time.Second)
	}
}

func (dc *DataConfig) applyDefaults() {
	if dc.Sentinel == "" {
		dc.Sentinel = "NaN "
	}
	if dc.Delimiter == "" {
		dc.Delimiter = ","
	}
	if len(dc.Cities) == 0 {
		dc.Cities = []string{"Metropolitian", "Urban", "Semi-Urban"}
	}
	if len(dc.TrafficOptions) == 0 {
		dc.TrafficOptions = []string{"Low", "Medium", "High", "Jam"}
	}
	if dc.DateMin == "" {
		dc.DateMin = "2022-02-11"
	}
	if dc.DateMax == "" {
		dc.DateMax = "2022-04-06"
	}
	if dc.DateDefault == "" {
		dc.DateDefault = "2022-04-13"
	}
	if dc.TopN <= 0 {
		dc.TopN = 10
	}
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std 返回标准库 time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ColumnAliases 返回列名映射的副本
func (dc *DataConfig) ColumnAliases() map[string]string {
	mu.RLock()
	defer mu.RUnlock()
	out := make(map[string]string, len(dc.Columns))
	for k, v := range dc.Columns {
		out[k] = v
	}
	return out
}

// DelimiterRune 返回分隔符的第一个字符
func (dc *DataConfig) DelimiterRune() rune {
	for _, r := range dc.Delimiter {
		return r
	}
	return ','
}

// DefaultUntil 解析侧边栏默认截止日期
func (dc *DataConfig) DefaultUntil() (time.Time, error) {
	t, err := time.Parse("2006-01-02", dc.DateDefault)
	if err != nil {
		return time.Time{}, fmt.Errorf("date_default 格式错误: %w", err)
	}
	return t, nil
}

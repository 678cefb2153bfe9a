package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix 环境变量前缀, 例如 DASHBOARD_DATA_FILE
const EnvPrefix = "DASHBOARD"

// envOverrides 可以由环境变量覆盖的配置项
type envOverrides struct {
	DataFile       string        `envconfig:"DATA_FILE"`
	Addr           string        `envconfig:"ADDR"`
	LogName        string        `envconfig:"LOG_NAME"`
	ExportDir      string        `envconfig:"EXPORT_DIR"`
	ReportCron     string        `envconfig:"REPORT_CRON"`
	ReportEnabled  *bool         `envconfig:"REPORT_ENABLED"`
	SMTPPassword   string        `envconfig:"SMTP_PASSWORD"`
	WebhookURL     string        `envconfig:"WEBHOOK_URL"`
	ShutdownPeriod time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`
}

// ApplyEnv 使用环境变量覆盖配置文件中的值, 未设置的变量保持原值
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("解析环境变量失败: %w", err)
	}

	if env.DataFile != "" {
		cfg.DataFile = env.DataFile
	}
	if env.Addr != "" {
		cfg.Server.Addr = env.Addr
	}
	if env.LogName != "" {
		cfg.LogName = env.LogName
	}
	if env.ExportDir != "" {
		cfg.ExportDir = env.ExportDir
	}
	if env.ReportCron != "" {
		cfg.Report.Cron = env.ReportCron
	}
	if env.ReportEnabled != nil {
		cfg.Report.Enabled = *env.ReportEnabled
	}
	if env.SMTPPassword != "" {
		cfg.SendEmail.Password = env.SMTPPassword
	}
	if env.WebhookURL != "" {
		cfg.Webhook.URL = env.WebhookURL
	}
	if env.ShutdownPeriod > 0 {
		cfg.Server.ShutdownTimeout = Duration(env.ShutdownPeriod)
	}
	return nil
}

package datapush

import (
	"DeliveryDashboard/src/config"
	"DeliveryDashboard/src/dashboard"
	"DeliveryDashboard/src/metrics"
	"DeliveryDashboard/src/processor"
	"DeliveryDashboard/src/storage"
	"DeliveryDashboard/src/utils"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/robfig/cron"
)

// DataSource 提供清洗后的数据集
type DataSource interface {
	Get() (dataframe.DataFrame, processor.CleanReport, error)
}

// Reporter 定时导出全部页面并推送
type Reporter struct {
	cfg     *config.Config
	data    DataSource
	pages   *dashboard.Builder
	logger  *storage.Logger
	mailer  *Mailer
	webhook *Webhook
	now     func() time.Time
}

// NewReporter 创建报表任务, 未配置收件人/webhook 时对应推送跳过
func NewReporter(cfg *config.Config, data DataSource, pages *dashboard.Builder, logger *storage.Logger) *Reporter {
	r := &Reporter{
		cfg:    cfg,
		data:   data,
		pages:  pages,
		logger: logger,
		mailer: NewMailer(cfg),
		now:    time.Now,
	}
	if cfg.Webhook.URL != "" {
		r.webhook = NewWebhook(cfg.Webhook.URL, cfg.Webhook.RetryTimes, cfg.Webhook.RetryInterval.Std())
	}
	return r
}

// Schedule 注册定时报表和日志轮转检查
func (r *Reporter) Schedule(c *cron.Cron) error {
	if r.cfg.Report.Enabled {
		err := c.AddFunc(r.cfg.Report.Cron, func() {
			if _, err := r.Run(); err != nil {
				r.logger.Error("定时报表失败: " + err.Error())
			}
		})
		if err != nil {
			return fmt.Errorf("创建报表定时任务失败(%s): %w", r.cfg.Report.Cron, err)
		}
		r.logger.Info(fmt.Sprintf("报表定时任务已启动(%s)", r.cfg.Report.Cron))
	}

	err := c.AddFunc("@every 1m", func() {
		rotated, err := r.logger.CheckRotate(r.cfg)
		if err != nil {
			r.logger.Error("日志轮转失败: " + err.Error())
		} else if rotated {
			r.logger.Info("日志文件已轮转")
		}
	})
	if err != nil {
		return fmt.Errorf("创建日志轮转任务失败: %w", err)
	}
	return nil
}

// Run 生成全部页面, 导出到 ExportDir 并推送
// 返回值:
//
//	string: 导出的文件路径
//	error: 生成或导出失败; 推送失败只记录日志
func (r *Reporter) Run() (string, error) {
	path, err := r.run()
	metrics.ReportRuns.WithLabelValues(metrics.Status(err)).Inc()
	return path, err
}

func (r *Reporter) run() (string, error) {
	t1 := time.Now()
	df, report, err := r.data.Get()
	if err != nil {
		return "", err
	}
	pages, err := r.pages.Pages(df, report, r.pages.DefaultFilter())
	if err != nil {
		return "", err
	}

	var sheets []utils.Sheet
	for _, p := range pages {
		sheets = append(sheets, p.Sheets()...)
	}

	if err := os.MkdirAll(r.cfg.ExportDir, 0755); err != nil {
		return "", fmt.Errorf("创建导出目录失败: %w", err)
	}
	filename := fmt.Sprintf("report_%s.xlsx", r.now().Format("20060102_150405"))
	path := filepath.Join(r.cfg.ExportDir, filename)
	if err := utils.SaveToExcel(path, sheets); err != nil {
		return "", err
	}
	r.logger.Info(fmt.Sprintf("报表已导出: %s, 用时 %v", path, time.Since(t1)))

	summary := Summary(pages)
	if r.mailer.Enabled() {
		var buf bytes.Buffer
		if err := utils.WriteWorkbook(&buf, sheets); err != nil {
			r.logger.Error("生成邮件附件失败: " + err.Error())
		} else if err := r.mailer.Send(summary, Attachment{Filename: filename, Content: buf.Bytes()}); err != nil {
			r.logger.Error(err.Error())
		} else {
			r.logger.Info(fmt.Sprintf("报表邮件已发送: %s", strings.Join(r.mailer.to, ",")))
		}
	}
	if r.webhook != nil {
		if err := r.webhook.SendMarkdown(r.cfg.SendEmail.Subject, summary); err != nil {
			r.logger.Error("webhook 推送失败: " + err.Error())
		} else {
			r.logger.Info("webhook 推送成功")
		}
	}
	return path, nil
}

// Summary 把各页面的指标整理成 markdown
func Summary(pages []dashboard.Page) string {
	var b strings.Builder
	for _, p := range pages {
		var lines []string
		for _, s := range p.Sections {
			if s.Placeholder != "" {
				lines = append(lines, fmt.Sprintf("- %s: %s", s.Title, s.Placeholder))
				continue
			}
			for _, m := range s.Metrics {
				lines = append(lines, fmt.Sprintf("- %s: %s", m.Label, formatValue(m.Value)))
			}
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n", p.Title)
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case float64:
		return fmt.Sprintf("%.2f", x)
	}
	return fmt.Sprint(v)
}

package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry 独立的 Prometheus 注册表
	Registry = prometheus.NewRegistry()

	// HTTPRequests 按路由和状态码统计请求数
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dashboard_http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "dashboard_http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)

	// PageRenders 页面生成次数, status 为 ok/error
	PageRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dashboard_page_renders_total", Help: "Page renders by page and status."},
		[]string{"page", "status"},
	)

	// DatasetLoads 数据集加载次数
	DatasetLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dashboard_dataset_loads_total", Help: "Dataset loads by status."},
		[]string{"status"},
	)
	DatasetLoadSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "dashboard_dataset_load_seconds", Help: "Dataset load and clean duration.", Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}},
	)
	// DatasetRows 最近一次加载的行数, stage 为 read/kept/missing/malformed
	DatasetRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "dashboard_dataset_rows", Help: "Rows of the last dataset load by stage."},
		[]string{"stage"},
	)

	// ReportRuns 定时报表执行结果
	ReportRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dashboard_report_runs_total", Help: "Scheduled report runs by status."},
		[]string{"status"},
	)
)

var regOnce sync.Once

// RegisterDefault 注册所有指标, 可重复调用
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(PageRenders)
		Registry.MustRegister(DatasetLoads)
		Registry.MustRegister(DatasetLoadSeconds)
		Registry.MustRegister(DatasetRows)
		Registry.MustRegister(ReportRuns)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler /metrics 处理器
func Handler() http.Handler {
	RegisterDefault()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Status 把错误转成 ok/error 标签
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveLoad 记录一次数据集加载
func ObserveLoad(d time.Duration, err error, read, kept, missing, malformed int) {
	DatasetLoads.WithLabelValues(Status(err)).Inc()
	DatasetLoadSeconds.Observe(d.Seconds())
	if err != nil {
		return
	}
	DatasetRows.WithLabelValues("read").Set(float64(read))
	DatasetRows.WithLabelValues("kept").Set(float64(kept))
	DatasetRows.WithLabelValues("missing").Set(float64(missing))
	DatasetRows.WithLabelValues("malformed").Set(float64(malformed))
}

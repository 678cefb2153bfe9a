package server

import (
	"DeliveryDashboard/src/config"
	"DeliveryDashboard/src/dashboard"
	"DeliveryDashboard/src/metrics"
	"DeliveryDashboard/src/processor"
	"DeliveryDashboard/src/storage"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-playground/validator/v10"
)

// DataSource 提供清洗后的数据集, processor.Dataset 实现了该接口
type DataSource interface {
	Get() (dataframe.DataFrame, processor.CleanReport, error)
}

// Server 仪表盘 HTTP 服务
type Server struct {
	data     DataSource
	pages    *dashboard.Builder
	logger   *storage.Logger
	validate *validator.Validate
	traffic  map[string]struct{}
}

// New 创建 HTTP 服务
// 参数:
//
//	data: 数据集
//	pages: 页面生成器
//	dcfg: 数据配置, 提供路况可选值
//	logger: 日志记录器, /logs 从这里订阅
func New(data DataSource, pages *dashboard.Builder, dcfg *config.DataConfig, logger *storage.Logger) *Server {
	s := &Server{
		data:     data,
		pages:    pages,
		logger:   logger,
		validate: validator.New(),
		traffic:  make(map[string]struct{}),
	}

	options := processor.TrafficLevels
	if dcfg != nil && len(dcfg.TrafficOptions) > 0 {
		options = dcfg.TrafficOptions
	}
	for _, t := range options {
		s.traffic[t] = struct{}{}
	}
	s.validate.RegisterValidation("traffic", s.isTraffic)
	return s
}

// Routes 注册全部路由
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.health)
	r.Get("/logs", s.streamLogs)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/pages", s.listPages)
		r.Get("/pages/{page}", s.getPage)
		r.Get("/export/dataset", s.exportDataset)
		r.Get("/export/{page}", s.exportPage)
	})
	return r
}

// Run 启动监听, ctx 结束后在 ShutdownTimeout 内优雅退出
func (s *Server) Run(ctx context.Context, cfg *config.Config) error {
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info(fmt.Sprintf("HTTP服务已启动, 监听 %s", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("HTTP服务异常退出: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP服务关闭失败: %w", err)
	}
	s.logger.Info("HTTP服务已关闭")
	return nil
}

// instrument 记录请求耗时与状态码
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, fmt.Sprint(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())

		if status >= http.StatusInternalServerError {
			s.logger.Error(fmt.Sprintf("%s %s %d %v", r.Method, r.URL.RequestURI(), status, time.Since(start)))
		} else {
			s.logger.Debug(fmt.Sprintf("%s %s %d %v", r.Method, r.URL.RequestURI(), status, time.Since(start)))
		}
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	df, _, err := s.data.Get()
	if err != nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]interface{}{"status": "unavailable", "error": err.Error()})
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "ok", "rows": df.Nrow()})
}

// streamLogs 以分块传输持续输出日志
func (s *Server) streamLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	logChan := s.logger.Subscribe()
	defer s.logger.Unsubscribe(logChan)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
	}
	for {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return
			}
			// 客户端断开时写入失败
			if _, err := fmt.Fprint(w, msg); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// writeError 统一的错误响应 {"error": "..."}
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error(fmt.Sprintf("请求 %s 失败(request_id=%s): %v", r.URL.RequestURI(), middleware.GetReqID(r.Context()), err))
	}
	w.Header().Del("Content-Disposition")
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": err.Error()})
}

// statusOf 参数错误 400, 页面不存在 404, 其余 500
func statusOf(err error) int {
	var ve validator.ValidationErrors
	var qe *queryError
	switch {
	case errors.As(err, &ve), errors.As(err, &qe):
		return http.StatusBadRequest
	case errors.Is(err, dashboard.ErrUnknownPage):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

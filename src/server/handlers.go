package server

import (
	"DeliveryDashboard/src/dashboard"
	"DeliveryDashboard/src/metrics"
	"DeliveryDashboard/src/processor"
	"DeliveryDashboard/src/utils"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// pageQuery 侧边栏筛选参数
type pageQuery struct {
	Until   string   `validate:"omitempty,datetime=2006-01-02"`
	Traffic []string `validate:"dive,traffic"`
}

type queryError struct {
	msg string
}

func (e *queryError) Error() string { return e.msg }

func (s *Server) isTraffic(fl validator.FieldLevel) bool {
	_, ok := s.traffic[fl.Field().String()]
	return ok
}

// filterFromQuery 解析 until=YYYY-MM-DD 与 traffic(可重复或逗号分隔)
// 没有 traffic 参数时使用全部路况, traffic= 为空表示不选任何路况
func (s *Server) filterFromQuery(query url.Values) (processor.FilterOptions, error) {
	q := pageQuery{Until: strings.TrimSpace(query.Get("until"))}
	values, present := query["traffic"]
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				q.Traffic = append(q.Traffic, t)
			}
		}
	}

	if err := s.validate.Struct(q); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok {
			return processor.FilterOptions{}, &queryError{msg: formatValidation(ve)}
		}
		return processor.FilterOptions{}, err
	}

	opts := s.pages.DefaultFilter()
	if q.Until != "" {
		until, err := time.Parse(processor.DateLayout, q.Until)
		if err != nil {
			return processor.FilterOptions{}, &queryError{msg: fmt.Sprintf("until 格式错误: %s", q.Until)}
		}
		opts.Until = until
	}
	if present {
		opts.Traffic = q.Traffic
	}
	return opts, nil
}

func formatValidation(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		switch e.Tag() {
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("until 必须是 YYYY-MM-DD: %v", e.Value()))
		case "traffic":
			msgs = append(msgs, fmt.Sprintf("未知路况: %v", e.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s 校验失败(%s)", e.Field(), e.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func (s *Server) listPages(w http.ResponseWriter, r *http.Request) {
	page := s.pages.HomePage(processor.FromRecords(nil), processor.CleanReport{})
	render.JSON(w, r, map[string]interface{}{"pages": dashboard.PageNames, "links": page.Links})
}

// buildPage 加载数据并生成页面
func (s *Server) buildPage(r *http.Request, name string) (dashboard.Page, error) {
	opts, err := s.filterFromQuery(r.URL.Query())
	if err != nil {
		return dashboard.Page{}, err
	}
	df, report, err := s.data.Get()
	if err != nil {
		return dashboard.Page{}, err
	}
	page, err := s.pages.Build(name, df, report, opts)
	metrics.PageRenders.WithLabelValues(pageLabel(name), metrics.Status(err)).Inc()
	return page, err
}

// pageLabel 未知页面统一成一个标签, 避免标签基数失控
func pageLabel(name string) string {
	for _, p := range dashboard.PageNames {
		if p == name {
			return name
		}
	}
	return "unknown"
}

func (s *Server) getPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.buildPage(r, chi.URLParam(r, "page"))
	if err != nil {
		s.writeError(w, r, statusOf(err), err)
		return
	}
	render.JSON(w, r, page)
}

// exportPage 导出页面为 xlsx, page=all 导出全部页面
func (s *Server) exportPage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "page")

	var sheets []utils.Sheet
	if name == "all" {
		opts, err := s.filterFromQuery(r.URL.Query())
		if err != nil {
			s.writeError(w, r, statusOf(err), err)
			return
		}
		df, report, err := s.data.Get()
		if err != nil {
			s.writeError(w, r, statusOf(err), err)
			return
		}
		pages, err := s.pages.Pages(df, report, opts)
		if err != nil {
			s.writeError(w, r, statusOf(err), err)
			return
		}
		for _, p := range pages {
			sheets = append(sheets, p.Sheets()...)
		}
	} else {
		page, err := s.buildPage(r, name)
		if err != nil {
			s.writeError(w, r, statusOf(err), err)
			return
		}
		sheets = page.Sheets()
	}
	s.writeWorkbook(w, r, name, sheets)
}

// exportDataset 导出筛选后的明细数据
func (s *Server) exportDataset(w http.ResponseWriter, r *http.Request) {
	opts, err := s.filterFromQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, statusOf(err), err)
		return
	}
	df, _, err := s.data.Get()
	if err != nil {
		s.writeError(w, r, statusOf(err), err)
		return
	}
	filtered, err := processor.ApplyFilter(df, opts)
	if err != nil {
		s.writeError(w, r, statusOf(err), err)
		return
	}
	s.writeWorkbook(w, r, "dataset", []utils.Sheet{utils.SheetFromFrame("dataset", filtered)})
}

func (s *Server) writeWorkbook(w http.ResponseWriter, r *http.Request, name string, sheets []utils.Sheet) {
	f, err := utils.NewWorkbook(sheets)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, name))
	if _, err := f.WriteTo(w); err != nil {
		s.logger.Error(fmt.Sprintf("写出 %s.xlsx 失败: %v", name, err))
	}
}

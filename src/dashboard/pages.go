package dashboard

import (
	"DeliveryDashboard/src/config"
	"DeliveryDashboard/src/processor"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
)

// 页面名称, 也是 HTTP 路径中的 {page}
const (
	PageHome        = "home"
	PageCompany     = "company"
	PageCouriers    = "couriers"
	PageRestaurants = "restaurants"
)

// PageNames 页面顺序
var PageNames = []string{PageHome, PageCompany, PageCouriers, PageRestaurants}

var pageTitles = map[string]string{
	PageHome:        "La Place Company Growth Dashboard",
	PageCompany:     "Marketplace - Company View",
	PageCouriers:    "Marketplace - Courier View",
	PageRestaurants: "Marketplace - Restaurant View",
}

// ErrUnknownPage 页面不存在
var ErrUnknownPage = errors.New("页面不存在")

// Builder 根据清洗后的数据生成各页面
type Builder struct {
	sidebar Sidebar
	topN    int
	cities  []string
}

// NewBuilder 创建页面生成器
// 参数:
//
//	dcfg: 数据配置, 提供侧边栏默认值和排名数量
func NewBuilder(dcfg *config.DataConfig) *Builder {
	b := &Builder{
		sidebar: Sidebar{
			Title:          "La Place Company",
			Subtitle:       "Fastest Delivery in Town",
			DateMin:        "2022-02-11",
			DateMax:        "2022-04-06",
			DateDefault:    "2022-04-13",
			TrafficOptions: append([]string(nil), processor.TrafficLevels...),
			Footer:         "Powered by Comunidade DS",
		},
		topN:   processor.DefaultTopN,
		cities: append([]string(nil), processor.FixedCities...),
	}
	if dcfg != nil {
		b.sidebar.DateMin = dcfg.DateMin
		b.sidebar.DateMax = dcfg.DateMax
		if _, err := dcfg.DefaultUntil(); err == nil {
			b.sidebar.DateDefault = dcfg.DateDefault
		}
		if len(dcfg.TrafficOptions) > 0 {
			b.sidebar.TrafficOptions = append([]string(nil), dcfg.TrafficOptions...)
		}
		if dcfg.TopN > 0 {
			b.topN = dcfg.TopN
		}
		if len(dcfg.Cities) > 0 {
			b.cities = append([]string(nil), dcfg.Cities...)
		}
	}
	return b
}

// DefaultFilter 侧边栏默认筛选条件
func (b *Builder) DefaultFilter() processor.FilterOptions {
	opts := processor.DefaultFilter()
	if t, err := time.Parse(processor.DateLayout, b.sidebar.DateDefault); err == nil {
		opts.Until = t
	}
	opts.Traffic = append([]string(nil), b.sidebar.TrafficOptions...)
	return opts
}

// Build 按名称生成页面
func (b *Builder) Build(name string, df dataframe.DataFrame, report processor.CleanReport, opts processor.FilterOptions) (Page, error) {
	switch name {
	case PageHome:
		return b.HomePage(df, report), nil
	case PageCompany:
		return b.CompanyPage(df, opts)
	case PageCouriers:
		return b.CourierPage(df, opts)
	case PageRestaurants:
		return b.RestaurantPage(df, opts)
	}
	return Page{}, fmt.Errorf("%w: %s", ErrUnknownPage, name)
}

// Pages 生成全部页面(导出报表用)
func (b *Builder) Pages(df dataframe.DataFrame, report processor.CleanReport, opts processor.FilterOptions) ([]Page, error) {
	pages := make([]Page, 0, len(PageNames))
	for _, name := range PageNames {
		p, err := b.Build(name, df, report, opts)
		if err != nil {
			return nil, fmt.Errorf("生成页面 %s 失败: %w", name, err)
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// HomePage 首页: 标题、侧边栏、页面导航和数据集概况(不经过筛选)
func (b *Builder) HomePage(df dataframe.DataFrame, report processor.CleanReport) Page {
	page := b.newPage(PageHome, nil)
	for _, name := range PageNames[1:] {
		page.Links = append(page.Links, Link{Name: name, Title: pageTitles[name], Path: "/api/pages/" + name})
	}

	dataset := Section{Title: "Dataset"}
	dataset.Metrics = append(dataset.Metrics,
		Metric{Label: "Rows", Value: df.Nrow()},
		Metric{Label: "Rows read", Value: report.RowsIn},
		Metric{Label: "Rows dropped (missing)", Value: report.MissingRows()},
		Metric{Label: "Rows dropped (malformed)", Value: report.Malformed},
	)
	first, last := dateRange(df)
	dataset.Metrics = append(dataset.Metrics,
		Metric{Label: "First order date", Value: first},
		Metric{Label: "Last order date", Value: last},
	)
	page.Sections = append(page.Sections, dataset)
	return page
}

// CompanyPage 公司视图: 管理/战术/地理三个区块
func (b *Builder) CompanyPage(df dataframe.DataFrame, opts processor.FilterOptions) (Page, error) {
	filtered, err := processor.ApplyFilter(df, opts)
	if err != nil {
		return Page{}, err
	}
	page := b.newPage(PageCompany, &opts)

	sections := []struct {
		title string
		fn    func(dataframe.DataFrame) (Section, error)
	}{
		{"Management View", managementSection},
		{"Tactical View", tacticalSection},
		{"Geographic View", geographicSection},
	}
	for _, s := range sections {
		section, err := buildSection(s.title, filtered, s.fn)
		if err != nil {
			return Page{}, err
		}
		page.Sections = append(page.Sections, section)
	}
	return page, nil
}

// CourierPage 配送员视图
func (b *Builder) CourierPage(df dataframe.DataFrame, opts processor.FilterOptions) (Page, error) {
	filtered, err := processor.ApplyFilter(df, opts)
	if err != nil {
		return Page{}, err
	}
	page := b.newPage(PageCouriers, &opts)

	sections := []struct {
		title string
		fn    func(dataframe.DataFrame) (Section, error)
	}{
		{"Overall Metrics", courierMetricsSection},
		{"Ratings", ratingsSection},
		{"Delivery Speed", b.speedSection},
	}
	for _, s := range sections {
		section, err := buildSection(s.title, filtered, s.fn)
		if err != nil {
			return Page{}, err
		}
		page.Sections = append(page.Sections, section)
	}
	return page, nil
}

// RestaurantPage 餐厅视图
func (b *Builder) RestaurantPage(df dataframe.DataFrame, opts processor.FilterOptions) (Page, error) {
	filtered, err := processor.ApplyFilter(df, opts)
	if err != nil {
		return Page{}, err
	}
	page := b.newPage(PageRestaurants, &opts)

	sections := []struct {
		title string
		fn    func(dataframe.DataFrame) (Section, error)
	}{
		{"Overall Metrics", restaurantMetricsSection},
		{"Average Delivery Time", deliveryTimeSection},
		{"Average Delivery Distance", deliveryDistanceSection},
	}
	for _, s := range sections {
		section, err := buildSection(s.title, filtered, s.fn)
		if err != nil {
			return Page{}, err
		}
		page.Sections = append(page.Sections, section)
	}
	return page, nil
}

func (b *Builder) newPage(name string, opts *processor.FilterOptions) Page {
	page := Page{Name: name, Title: pageTitles[name], Sidebar: b.sidebar}
	page.Sidebar.TrafficOptions = append([]string(nil), b.sidebar.TrafficOptions...)
	if opts != nil {
		page.Filter = &Filter{
			Until:   opts.Until.Format(processor.DateLayout),
			Traffic: append([]string{}, opts.Traffic...),
		}
	}
	return page
}

// buildSection 没有数据或分母为0时该区块显示占位符, 其他错误中断整个页面
func buildSection(title string, df dataframe.DataFrame, fn func(dataframe.DataFrame) (Section, error)) (Section, error) {
	section, err := fn(df)
	if err != nil {
		if placeholder(err) {
			return Section{Title: title, Placeholder: err.Error()}, nil
		}
		return Section{}, fmt.Errorf("%s: %w", title, err)
	}
	section.Title = title
	return section, nil
}

func placeholder(err error) bool {
	return processor.IsNoData(err) || processor.IsDivideByZero(err)
}

// metric 单个指标没有数据时值为 nil
func metric(label string, value interface{}, err error) (Metric, error) {
	if err != nil {
		if placeholder(err) {
			return Metric{Label: label, Note: err.Error()}, nil
		}
		return Metric{}, err
	}
	if f, ok := value.(float64); ok {
		value = jsonValue(f)
	}
	return Metric{Label: label, Value: value}, nil
}

// dateRange 订单日期是 ISO 字符串, 按字符串比较即可
func dateRange(df dataframe.DataFrame) (string, string) {
	if df.Nrow() == 0 || df.Col(processor.ColOrderDate).Err != nil {
		return "", ""
	}
	var first, last string
	for _, d := range df.Col(processor.ColOrderDate).Records() {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if first == "" || d < first {
			first = d
		}
		if d > last {
			last = d
		}
	}
	return first, last
}

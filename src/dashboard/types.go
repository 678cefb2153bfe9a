package dashboard

import (
	"DeliveryDashboard/src/utils"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 图表类型
const (
	KindBar      = "bar"
	KindLine     = "line"
	KindPie      = "pie"
	KindScatter  = "scatter"
	KindSunburst = "sunburst"
	KindMap      = "map"
)

// Page 一个页面的全部展示数据
type Page struct {
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Sidebar  Sidebar   `json:"sidebar"`
	Filter   *Filter   `json:"filter,omitempty"`
	Links    []Link    `json:"links,omitempty"`
	Sections []Section `json:"sections"`
}

// Sidebar 侧边栏文字与筛选控件的取值范围
type Sidebar struct {
	Title          string   `json:"title"`
	Subtitle       string   `json:"subtitle"`
	DateMin        string   `json:"date_min"`
	DateMax        string   `json:"date_max"`
	DateDefault    string   `json:"date_default"`
	TrafficOptions []string `json:"traffic_options"`
	Footer         string   `json:"footer"`
}

// Filter 本次渲染使用的筛选条件
type Filter struct {
	Until   string   `json:"until"`
	Traffic []string `json:"traffic"`
}

type Link struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

// Section 页面中的一个区块; 没有数据时只有 Placeholder
type Section struct {
	Title       string   `json:"title"`
	Metrics     []Metric `json:"metrics,omitempty"`
	Charts      []Chart  `json:"charts,omitempty"`
	Tables      []Table  `json:"tables,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
}

// Metric 单个指标, Value 为 nil 时前端显示占位符
type Metric struct {
	Label string      `json:"label"`
	Value interface{} `json:"value"`
	Note  string      `json:"note,omitempty"`
}

// Chart 图表绑定: 各字段是 Data 中的列名
type Chart struct {
	Kind     string    `json:"kind"`
	Title    string    `json:"title"`
	X        string    `json:"x,omitempty"`
	Y        string    `json:"y,omitempty"`
	Value    string    `json:"value,omitempty"`
	Color    string    `json:"color,omitempty"`
	Size     string    `json:"size,omitempty"`
	ErrorY   string    `json:"error_y,omitempty"`
	Path     []string  `json:"path,omitempty"`
	Popup    []string  `json:"popup,omitempty"`
	Pull     []float64 `json:"pull,omitempty"`
	Midpoint *float64  `json:"color_midpoint,omitempty"`
	Data     *Table    `json:"data"`
}

// Table 表格数据, NaN 写成 null
type Table struct {
	Title   string          `json:"title"`
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// TableFromFrame 把 DataFrame 转成表格
func TableFromFrame(title string, df dataframe.DataFrame) *Table {
	t := &Table{Title: title, Columns: df.Names(), Rows: [][]interface{}{}}
	cols := make([]series.Series, len(t.Columns))
	for j, name := range t.Columns {
		cols[j] = df.Col(name)
	}
	for i := 0; i < df.Nrow(); i++ {
		row := make([]interface{}, len(cols))
		for j, col := range cols {
			row[j] = jsonValue(col.Val(i))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// jsonValue encoding/json 不能编码 NaN/Inf
func jsonValue(v interface{}) interface{} {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}

// Sheets 页面中所有表格(包括图表数据)按出现顺序转成工作表
func (p Page) Sheets() []utils.Sheet {
	var sheets []utils.Sheet
	for _, s := range p.Sections {
		if len(s.Metrics) > 0 {
			sheet := utils.Sheet{Name: s.Title, Header: []string{"metric", "value"}}
			for _, m := range s.Metrics {
				sheet.Rows = append(sheet.Rows, []interface{}{m.Label, m.Value})
			}
			sheets = append(sheets, sheet)
		}
		for _, c := range s.Charts {
			if c.Data != nil {
				sheets = append(sheets, c.Data.sheet(c.Title))
			}
		}
		for _, t := range s.Tables {
			sheets = append(sheets, t.sheet(t.Title))
		}
	}
	return sheets
}

func (t *Table) sheet(name string) utils.Sheet {
	return utils.Sheet{Name: name, Header: t.Columns, Rows: t.Rows}
}

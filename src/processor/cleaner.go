package processor

import (
	"DeliveryDashboard/src/utils"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// DefaultSentinel 数据集中表示缺失值的字符串(注意末尾空格)
const DefaultSentinel = "NaN "

const (
	sourceDateLayout = "02-01-2006"
	timeTakenToken   = "(min) "
	rowIndexColumn   = "__row"
	maxReportErrors  = 20
)

var (
	errMissingValue    = errors.New("缺失值")
	errMissingMinToken = errors.New(`缺少 "(min) " 分隔符`)
	errNegative        = errors.New("不能为负数")
)

// CleanOptions 清洗参数
type CleanOptions struct {
	Sentinel      string // 缺失值标记, 为空时使用 DefaultSentinel
	SkipMalformed bool   // true: 格式错误的行被剔除并记录; false: 遇到第一处格式错误即失败
}

// CleanReport 清洗统计
type CleanReport struct {
	RowsIn    int
	RowsOut   int
	Missing   []*DataQualityError // 按过滤顺序记录每列剔除的行数
	Malformed int
	Errors    []*FormatError // 最多保留 maxReportErrors 条
}

// MissingRows 因缺失值被剔除的总行数
func (r CleanReport) MissingRows() int {
	total := 0
	for _, m := range r.Missing {
		total += m.Rows
	}
	return total
}

// IsAbsent 判断单元格是否为缺失值: NA、缺失标记、"NaN" 或空字符串
func (o CleanOptions) IsAbsent(el series.Element) bool {
	if el.IsNA() {
		return true
	}
	s := el.String()
	if s == o.sentinel() {
		return true
	}
	trimmed := strings.TrimSpace(s)
	return trimmed == "" || trimmed == "NaN"
}

func (o CleanOptions) sentinel() string {
	if o.Sentinel == "" {
		return DefaultSentinel
	}
	return o.Sentinel
}

// CleanData 清洗原始数据表
// 1. 依次按 年龄/路况/城市/节日/多单 过滤缺失值
// 2. 数值/日期类型转换
// 3. 去除文本字段首尾空格
// 4. 从 Time_taken(min) 中提取分钟数
// 参数:
//
//	df: 原始数据表(所有列均为字符串)
//	opts: 清洗参数
//
// 返回值:
//
//	dataframe.DataFrame: 清洗后的数据表, 列顺序见 Columns
//	CleanReport: 清洗统计
//	error: 缺少列或格式错误(严格模式)
func CleanData(df dataframe.DataFrame, opts CleanOptions) (dataframe.DataFrame, CleanReport, error) {
	report := CleanReport{RowsIn: df.Nrow()}

	if df.Err != nil {
		return dataframe.DataFrame{}, report, fmt.Errorf("原始数据表错误: %w", df.Err)
	}
	for _, col := range Columns {
		if !utils.HasColumn(df, col) {
			return dataframe.DataFrame{}, report, fmt.Errorf("原始数据缺少列: %s", col)
		}
	}

	// 记录原始行号, 用于定位格式错误
	rows := make([]int, df.Nrow())
	for i := range rows {
		rows[i] = i
	}
	work := df.Mutate(series.New(rows, series.Int, rowIndexColumn))

	// 1. 逐列过滤缺失值
	for _, col := range AdmissionColumns {
		if work.Nrow() == 0 {
			break
		}
		before := work.Nrow()
		work = work.Filter(dataframe.F{
			Colname:    col,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool { return !opts.IsAbsent(el) },
		})
		if work.Err != nil {
			return dataframe.DataFrame{}, report, fmt.Errorf("过滤缺失值失败(%s): %w", col, work.Err)
		}
		if dropped := before - work.Nrow(); dropped > 0 {
			report.Missing = append(report.Missing, &DataQualityError{Column: col, Rows: dropped})
		}
	}

	// 2~4. 类型转换
	names := append(append([]string{}, Columns...), rowIndexColumn)
	cols := make(map[string]series.Series, len(names))
	for _, col := range names {
		cols[col] = work.Col(col)
	}

	records := make([]DeliveryRecord, 0, work.Nrow())
	for i := 0; i < work.Nrow(); i++ {
		rowIdx, _ := cols[rowIndexColumn].Elem(i).Int()
		rec, err := parseRow(cols, i, rowIdx, opts)
		if err != nil {
			var fe *FormatError
			if !errors.As(err, &fe) || !opts.SkipMalformed {
				return dataframe.DataFrame{}, report, err
			}
			report.Malformed++
			if len(report.Errors) < maxReportErrors {
				report.Errors = append(report.Errors, fe)
			}
			continue
		}
		records = append(records, rec)
	}

	out := FromRecords(records)
	if out.Err != nil {
		return dataframe.DataFrame{}, report, fmt.Errorf("构建清洗结果失败: %w", out.Err)
	}
	report.RowsOut = out.Nrow()
	return out, report, nil
}

// rowParser 逐字段解析一行, 遇到第一处错误后不再继续
type rowParser struct {
	cols map[string]series.Series
	i    int
	row  int
	opts CleanOptions
	err  error
}

func (p *rowParser) raw(col string) (string, bool) {
	el := p.cols[col].Elem(p.i)
	if p.opts.IsAbsent(el) {
		return el.String(), false
	}
	return el.String(), true
}

func (p *rowParser) fail(col, value string, err error) {
	if p.err == nil {
		p.err = &FormatError{Row: p.row, Column: col, Value: value, Err: err}
	}
}

func (p *rowParser) text(col string) string {
	s, ok := p.raw(col)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func (p *rowParser) count(col string) int {
	if p.err != nil {
		return 0
	}
	s, ok := p.raw(col)
	if !ok {
		p.fail(col, s, errMissingValue)
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		p.fail(col, s, err)
		return 0
	}
	if v < 0 {
		p.fail(col, s, errNegative)
	}
	return v
}

// number 缺失值返回 NaN
func (p *rowParser) number(col string) float64 {
	if p.err != nil {
		return math.NaN()
	}
	s, ok := p.raw(col)
	if !ok {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		p.fail(col, s, err)
		return math.NaN()
	}
	return v
}

func (p *rowParser) date(col string) time.Time {
	if p.err != nil {
		return time.Time{}
	}
	s, ok := p.raw(col)
	if !ok {
		p.fail(col, s, errMissingValue)
		return time.Time{}
	}
	t, err := time.Parse(sourceDateLayout, strings.TrimSpace(s))
	if err != nil {
		p.fail(col, s, err)
	}
	return t
}

// minutes 解析 "(min) 24" 形式的耗时
func (p *rowParser) minutes(col string) int {
	if p.err != nil {
		return 0
	}
	s := p.cols[col].Elem(p.i).String()
	parts := strings.SplitN(s, timeTakenToken, 2)
	if len(parts) < 2 {
		p.fail(col, s, errMissingMinToken)
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		p.fail(col, s, err)
		return 0
	}
	if v < 0 {
		p.fail(col, s, errNegative)
	}
	return v
}

func parseRow(cols map[string]series.Series, i, row int, opts CleanOptions) (DeliveryRecord, error) {
	p := &rowParser{cols: cols, i: i, row: row, opts: opts}
	rec := DeliveryRecord{
		ID:                 p.text(ColID),
		CourierID:          p.text(ColCourierID),
		Age:                p.count(ColAge),
		MultipleDeliveries: p.count(ColMultiDeliveries),
		Rating:             p.number(ColRating),
		OrderDate:          p.date(ColOrderDate),
		Weather:            p.text(ColWeather),
		Traffic:            p.text(ColTraffic),
		VehicleCondition:   p.count(ColVehicleCondition),
		OrderType:          p.text(ColOrderType),
		VehicleType:        p.text(ColVehicleType),
		Festival:           p.text(ColFestival),
		City:               p.text(ColCity),
		RestaurantLat:      p.number(ColRestaurantLat),
		RestaurantLon:      p.number(ColRestaurantLon),
		DeliveryLat:        p.number(ColDeliveryLat),
		DeliveryLon:        p.number(ColDeliveryLon),
		TimeTaken:          p.minutes(ColTimeTaken),
	}
	if p.err != nil {
		return DeliveryRecord{}, p.err
	}
	return rec, nil
}

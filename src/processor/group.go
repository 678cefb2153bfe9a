package processor

import (
	"DeliveryDashboard/src/utils"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"
)

// group 一个分组: 分组键取值与该组的行
type group struct {
	Keys []string
	Rows dataframe.DataFrame
}

// groupBy 按 keys 分组, 分组键缺失的行不参与分组, 结果按分组键升序
func groupBy(df dataframe.DataFrame, keys ...string) ([]group, error) {
	for _, k := range keys {
		if !utils.HasColumn(df, k) {
			return nil, fmt.Errorf("分组列不存在: %s", k)
		}
	}
	df = dropAbsentKeys(df, keys...)
	if df.Err != nil {
		return nil, df.Err
	}
	if df.Nrow() == 0 {
		return nil, nil
	}

	// 按行号分桶, 分组键用 \x00 拼接, 避免 "a_b"+"c" 与 "a"+"b_c" 混为一组
	cols := make([][]string, len(keys))
	for i, k := range keys {
		cols[i] = df.Col(k).Records()
	}
	buckets := make(map[string][]int)
	var order []string
	keyOf := make(map[string][]string)
	for row := 0; row < df.Nrow(); row++ {
		vals := make([]string, len(keys))
		for i := range keys {
			vals[i] = cols[i][row]
		}
		id := strings.Join(vals, "\x00")
		if _, ok := buckets[id]; !ok {
			order = append(order, id)
			keyOf[id] = vals
		}
		buckets[id] = append(buckets[id], row)
	}

	groups := make([]group, 0, len(order))
	for _, id := range order {
		sub := df.Subset(buckets[id])
		if sub.Err != nil {
			return nil, fmt.Errorf("分组失败: %w", sub.Err)
		}
		groups = append(groups, group{Keys: keyOf[id], Rows: sub})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return lessKeys(groups[i].Keys, groups[j].Keys)
	})
	return groups, nil
}

func dropAbsentKeys(df dataframe.DataFrame, keys ...string) dataframe.DataFrame {
	for _, k := range keys {
		if df.Nrow() == 0 {
			return df
		}
		df = df.Filter(dataframe.F{
			Colname:    k,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool {
				return !el.IsNA() && strings.TrimSpace(el.String()) != ""
			},
		})
	}
	return df
}

// lessKeys 数值键按数值比较, 其余按字符串比较
func lessKeys(a, b []string) bool {
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		x, errX := strconv.ParseFloat(a[i], 64)
		y, errY := strconv.ParseFloat(b[i], 64)
		if errX == nil && errY == nil && x != y {
			return x < y
		}
		return a[i] < b[i]
	}
	return false
}

// values 读取数值列, NaN 保留
func values(df dataframe.DataFrame, col string) []float64 {
	if df.Nrow() == 0 {
		return nil
	}
	return df.Col(col).Float()
}

// finite 去掉 NaN/Inf
func finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

// mean 跳过 NaN 的均值, 没有有效值时为 NaN
func mean(xs []float64) float64 {
	xs = finite(xs)
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// stdDev 跳过 NaN 的样本标准差(n-1), 少于两个有效值时为 NaN
func stdDev(xs []float64) float64 {
	xs = finite(xs)
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(xs, nil)
}

// median 逐列中位数, 偶数个时取中间两数平均
func median(xs []float64) float64 {
	xs = finite(xs)
	if len(xs) == 0 {
		return math.NaN()
	}
	sort.Float64s(xs)
	mid := len(xs) / 2
	if len(xs)%2 == 1 {
		return xs[mid]
	}
	return (xs[mid-1] + xs[mid]) / 2
}

// distinct 非空字符串去重计数
func distinct(df dataframe.DataFrame, col string) int {
	if df.Nrow() == 0 {
		return 0
	}
	seen := make(map[string]struct{})
	s := df.Col(col)
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		v := strings.TrimSpace(el.String())
		if el.IsNA() || v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}

// keyColumns 把分组键写成字符串列; week_of_year 之类的整数键写成 Int 列
func keyColumns(groups []group, keys []string, intKeys ...string) []series.Series {
	cols := make([]series.Series, len(keys))
	for i, k := range keys {
		if utils.Contains(intKeys, k) {
			vals := make([]int, len(groups))
			for j, g := range groups {
				vals[j], _ = strconv.Atoi(g.Keys[i])
			}
			cols[i] = series.New(vals, series.Int, k)
			continue
		}
		vals := make([]string, len(groups))
		for j, g := range groups {
			vals[j] = g.Keys[i]
		}
		cols[i] = series.New(vals, series.String, k)
	}
	return cols
}

// newFrame 组装结果表
func newFrame(cols ...series.Series) (dataframe.DataFrame, error) {
	df := dataframe.New(cols...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("构建结果表失败: %w", df.Err)
	}
	return df, nil
}

func requireColumns(op string, df dataframe.DataFrame, cols ...string) error {
	if df.Err != nil {
		return fmt.Errorf("%s: %w", op, df.Err)
	}
	for _, c := range cols {
		if !utils.HasColumn(df, c) {
			return fmt.Errorf("%s: 缺少列 %s", op, c)
		}
	}
	return nil
}

// FixedCities 排名与地图使用的城市顺序(数据集中的拼写)
var FixedCities = []string{"Metropolitian", "Urban", "Semi-Urban"}

// CanonicalCity 统一城市拼写, Metropolitan 与 Metropolitian 视为同一城市
func CanonicalCity(city string) string {
	c := strings.ToLower(strings.TrimSpace(city))
	if c == "metropolitian" {
		return "metropolitan"
	}
	return c
}

package processor

import (
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// TrafficLevels 侧边栏可选的路况
var TrafficLevels = []string{"Low", "Medium", "High", "Jam"}

// FilterOptions 侧边栏筛选条件
type FilterOptions struct {
	Until   time.Time // 不含当天
	Traffic []string
}

// DefaultFilter 默认截止 2022-04-13, 包含全部路况
func DefaultFilter() FilterOptions {
	return FilterOptions{
		Until:   time.Date(2022, 4, 13, 0, 0, 0, 0, time.UTC),
		Traffic: append([]string{}, TrafficLevels...),
	}
}

// ApplyFilter 保留 Order_Date < Until 且路况在 Traffic 中的行
// 路况集合为空时返回空表
func ApplyFilter(df dataframe.DataFrame, opts FilterOptions) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return df, df.Err
	}
	if df.Nrow() == 0 {
		return df, nil
	}

	until := opts.Until.Format(DateLayout)
	allowed := make(map[string]struct{}, len(opts.Traffic))
	for _, t := range opts.Traffic {
		allowed[t] = struct{}{}
	}

	// 日期过滤
	out := df.Filter(dataframe.F{
		Colname:    ColOrderDate,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			return !el.IsNA() && el.String() < until
		},
	})
	if out.Err != nil {
		return out, fmt.Errorf("日期过滤失败: %w", out.Err)
	}
	if out.Nrow() == 0 {
		return out, nil
	}

	// 路况过滤
	out = out.Filter(dataframe.F{
		Colname:    ColTraffic,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			_, ok := allowed[el.String()]
			return !el.IsNA() && ok
		},
	})
	if out.Err != nil {
		return out, fmt.Errorf("路况过滤失败: %w", out.Err)
	}
	return out, nil
}

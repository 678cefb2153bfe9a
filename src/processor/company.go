package processor

import (
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/floats"
)

// 结果列名
const (
	ColOrderCount      = "order_count"
	ColCourierCount    = "courier_count"
	ColOrderByDelivery = "order_by_delivery"
	ColDeliveryShare   = "delivery_share"
)

// WeekOfYear 以周日为一周开始的周序号, 一年中第一个周日之前的日期为第0周(同 strftime %U)
func WeekOfYear(t time.Time) int {
	return (t.YearDay() - 1 + 7 - int(t.Weekday())) / 7
}

// OrdersByDay 每日订单量, 按日期升序
func OrdersByDay(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns("OrdersByDay", df, ColOrderDate); err != nil {
		return dataframe.DataFrame{}, err
	}
	groups, err := groupBy(df, ColOrderDate)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	counts := make([]int, len(groups))
	for i, g := range groups {
		counts[i] = g.Rows.Nrow()
	}
	return newFrame(append(keyColumns(groups, []string{ColOrderDate}),
		series.New(counts, series.Int, ColOrderCount))...)
}

// AddWeekOfYear 增加 week_of_year 列, 不修改入参
func AddWeekOfYear(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns("AddWeekOfYear", df, ColOrderDate); err != nil {
		return dataframe.DataFrame{}, err
	}

	dates := df.Col(ColOrderDate)
	weeks := make([]int, df.Nrow())
	for i := range weeks {
		raw := dates.Elem(i).String()
		t, err := time.Parse(DateLayout, raw)
		if err != nil {
			return dataframe.DataFrame{}, &FormatError{Row: i, Column: ColOrderDate, Value: raw, Err: err}
		}
		weeks[i] = WeekOfYear(t)
	}

	out := df.Mutate(series.New(weeks, series.Int, ColWeekOfYear))
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("增加周序号失败: %w", out.Err)
	}
	return out, nil
}

// OrdersByWeek 每周订单量
func OrdersByWeek(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	withWeek, err := AddWeekOfYear(df)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	groups, err := groupBy(withWeek, ColWeekOfYear)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	counts := make([]int, len(groups))
	for i, g := range groups {
		counts[i] = g.Rows.Nrow()
	}
	return newFrame(append(keyColumns(groups, []string{ColWeekOfYear}, ColWeekOfYear),
		series.New(counts, series.Int, ColOrderCount))...)
}

// CouriersByWeek 每周不重复配送员数量
func CouriersByWeek(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns("CouriersByWeek", df, ColCourierID); err != nil {
		return dataframe.DataFrame{}, err
	}
	withWeek, err := AddWeekOfYear(df)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	groups, err := groupBy(withWeek, ColWeekOfYear)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	counts := make([]int, len(groups))
	for i, g := range groups {
		counts[i] = distinct(g.Rows, ColCourierID)
	}
	return newFrame(append(keyColumns(groups, []string{ColWeekOfYear}, ColWeekOfYear),
		series.New(counts, series.Int, ColCourierCount))...)
}

// OrdersPerCourierByWeek 每周人均订单量 = 每周订单量 / 每周不重复配送员数
// 两张表按 week_of_year 内连接, 某周配送员数为0时返回 *DivideByZeroError
func OrdersPerCourierByWeek(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	orders, err := OrdersByWeek(df)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	couriers, err := CouriersByWeek(df)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if orders.Nrow() == 0 || couriers.Nrow() == 0 {
		return emptyOrdersPerCourier()
	}

	joined := orders.InnerJoin(couriers, ColWeekOfYear)
	if joined.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("合并周数据失败: %w", joined.Err)
	}

	weeks := joined.Col(ColWeekOfYear)
	orderCounts := joined.Col(ColOrderCount).Float()
	courierCounts := joined.Col(ColCourierCount).Float()
	ratio := make([]float64, joined.Nrow())
	for i := range ratio {
		if courierCounts[i] == 0 {
			return dataframe.DataFrame{}, &DivideByZeroError{
				Op:  "OrdersPerCourierByWeek",
				Key: fmt.Sprintf("%s=%s", ColWeekOfYear, weeks.Elem(i).String()),
			}
		}
		ratio[i] = orderCounts[i] / courierCounts[i]
	}

	out := joined.Mutate(series.New(ratio, series.Float, ColOrderByDelivery))
	if out.Err != nil {
		return dataframe.DataFrame{}, out.Err
	}
	return out.Select([]string{ColWeekOfYear, ColOrderCount, ColCourierCount, ColOrderByDelivery}), nil
}

func emptyOrdersPerCourier() (dataframe.DataFrame, error) {
	return newFrame(
		series.New([]int{}, series.Int, ColWeekOfYear),
		series.New([]int{}, series.Int, ColOrderCount),
		series.New([]int{}, series.Int, ColCourierCount),
		series.New([]float64{}, series.Float, ColOrderByDelivery),
	)
}

// TrafficShare 各路况订单占比, 占比之和为1
func TrafficShare(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns("TrafficShare", df, ColTraffic); err != nil {
		return dataframe.DataFrame{}, err
	}
	groups, err := groupBy(df, ColTraffic)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	counts := make([]int, len(groups))
	shares := make([]float64, len(groups))
	for i, g := range groups {
		counts[i] = g.Rows.Nrow()
		shares[i] = float64(counts[i])
	}
	if total := floats.Sum(shares); total > 0 {
		floats.Scale(1/total, shares)
	}

	return newFrame(append(keyColumns(groups, []string{ColTraffic}),
		series.New(counts, series.Int, ColOrderCount),
		series.New(shares, series.Float, ColDeliveryShare))...)
}

// OrdersByCityAndTraffic 按城市和路况统计订单量(散点图气泡大小)
func OrdersByCityAndTraffic(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	keys := []string{ColCity, ColTraffic}
	if err := requireColumns("OrdersByCityAndTraffic", df, keys...); err != nil {
		return dataframe.DataFrame{}, err
	}
	groups, err := groupBy(df, keys...)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	counts := make([]int, len(groups))
	for i, g := range groups {
		counts[i] = g.Rows.Nrow()
	}
	return newFrame(append(keyColumns(groups, keys),
		series.New(counts, series.Int, ColOrderCount))...)
}

// MedianDeliveryLocation 每个(城市, 路况)送达位置的经纬度中位数, 两列分别取中位数
func MedianDeliveryLocation(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	keys := []string{ColCity, ColTraffic}
	if err := requireColumns("MedianDeliveryLocation", df, ColCity, ColTraffic, ColDeliveryLat, ColDeliveryLon); err != nil {
		return dataframe.DataFrame{}, err
	}
	groups, err := groupBy(df, keys...)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	lat := make([]float64, len(groups))
	lon := make([]float64, len(groups))
	for i, g := range groups {
		lat[i] = median(values(g.Rows, ColDeliveryLat))
		lon[i] = median(values(g.Rows, ColDeliveryLon))
	}
	return newFrame(append(keyColumns(groups, keys),
		series.New(lat, series.Float, ColDeliveryLat),
		series.New(lon, series.Float, ColDeliveryLon))...)
}

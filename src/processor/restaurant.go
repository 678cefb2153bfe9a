package processor

import (
	"DeliveryDashboard/src/utils"
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const (
	ColAvgTime = "avg_time"
	ColStdTime = "std_time"
)

// UniqueCouriers 不重复配送员数量
func UniqueCouriers(df dataframe.DataFrame) (int, error) {
	if err := requireColumns("UniqueCouriers", df, ColCourierID); err != nil {
		return 0, err
	}
	return distinct(df, ColCourierID), nil
}

// AddDistance 增加 distance 列: 餐厅到送达地点的大圆距离(km)
func AddDistance(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns("AddDistance", df, ColRestaurantLat, ColRestaurantLon, ColDeliveryLat, ColDeliveryLon); err != nil {
		return dataframe.DataFrame{}, err
	}

	distance := make([]float64, df.Nrow())
	if df.Nrow() > 0 {
		rLat, rLon := df.Col(ColRestaurantLat).Float(), df.Col(ColRestaurantLon).Float()
		dLat, dLon := df.Col(ColDeliveryLat).Float(), df.Col(ColDeliveryLon).Float()
		for i := range distance {
			distance[i] = utils.Haversine(rLat[i], rLon[i], dLat[i], dLon[i])
		}
	}

	out := df.Mutate(series.New(distance, series.Float, ColDistance))
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("增加距离列失败: %w", out.Err)
	}
	return out, nil
}

// AverageDistance 平均配送距离, 保留两位小数; 空表返回 *NoDataError
func AverageDistance(df dataframe.DataFrame) (float64, error) {
	withDistance, err := AddDistance(df)
	if err != nil {
		return 0, err
	}
	avg := mean(values(withDistance, ColDistance))
	if math.IsNaN(avg) {
		return 0, &NoDataError{Op: "AverageDistance"}
	}
	return utils.Round(avg, 2), nil
}

// AverageDistanceByCity 各城市平均配送距离(饼图)
func AverageDistanceByCity(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	withDistance, err := AddDistance(df)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if err := requireColumns("AverageDistanceByCity", withDistance, ColCity); err != nil {
		return dataframe.DataFrame{}, err
	}
	groups, err := groupBy(withDistance, ColCity)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	avg := make([]float64, len(groups))
	for i, g := range groups {
		avg[i] = utils.Round(mean(values(g.Rows, ColDistance)), 2)
	}
	return newFrame(append(keyColumns(groups, []string{ColCity}),
		series.New(avg, series.Float, ColDistance))...)
}

// FestivalTimeStat 节日/非节日配送耗时的均值或标准差, 保留两位小数
// 参数:
//
//	flag: Festival 取值, "Yes" 或 "No"
//	stat: "avg_time" 或 "std_time"
//
// 返回值:
//
//	float64: 统计值, 该组只有一行时标准差为 NaN
//	error: stat 非法返回 *ArgumentError, 数据中没有该 flag 返回 *NoDataError
func FestivalTimeStat(df dataframe.DataFrame, flag, stat string) (float64, error) {
	if stat != ColAvgTime && stat != ColStdTime {
		return 0, &ArgumentError{Name: "stat", Value: stat}
	}
	stats, err := timeStats("FestivalTimeStat", df, false, ColFestival)
	if err != nil {
		return 0, err
	}

	festival := stats.Col(ColFestival)
	for i := 0; i < stats.Nrow(); i++ {
		if festival.Elem(i).String() == flag {
			return utils.Round(stats.Col(stat).Elem(i).Float(), 2), nil
		}
	}
	return 0, &NoDataError{Op: fmt.Sprintf("FestivalTimeStat(%s)", flag)}
}

// TimeStatsByCity 各城市配送耗时均值/标准差
func TimeStatsByCity(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	return timeStats("TimeStatsByCity", df, true, ColCity)
}

// TimeStatsByCityAndTraffic 按(城市, 路况)统计配送耗时(旭日图)
func TimeStatsByCityAndTraffic(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	return timeStats("TimeStatsByCityAndTraffic", df, true, ColCity, ColTraffic)
}

// TimeStatsByCityAndOrderType 按(城市, 订单类型)统计配送耗时
func TimeStatsByCityAndOrderType(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	return timeStats("TimeStatsByCityAndOrderType", df, true, ColCity, ColOrderType)
}

func timeStats(op string, df dataframe.DataFrame, round bool, keys ...string) (dataframe.DataFrame, error) {
	if err := requireColumns(op, df, ColTimeTaken); err != nil {
		return dataframe.DataFrame{}, err
	}
	groups, err := groupBy(df, keys...)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	avg := make([]float64, len(groups))
	std := make([]float64, len(groups))
	for i, g := range groups {
		minutes := values(g.Rows, ColTimeTaken)
		avg[i], std[i] = mean(minutes), stdDev(minutes)
		if round {
			avg[i], std[i] = utils.Round(avg[i], 2), utils.Round(std[i], 2)
		}
	}
	return newFrame(append(keyColumns(groups, keys),
		series.New(avg, series.Float, ColAvgTime),
		series.New(std, series.Float, ColStdTime))...)
}

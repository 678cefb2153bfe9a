package processor

import (
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/floats"
)

const (
	ColDeliveryMean = "delivery_mean"
	ColDeliveryStd  = "delivery_std"

	// DefaultTopN 每个城市保留的配送员数量
	DefaultTopN = 10
)

// CourierOverview 配送员总体指标
type CourierOverview struct {
	MaxAge                int
	MinAge                int
	BestVehicleCondition  int
	WorstVehicleCondition int
}

// Overview 计算最大/最小年龄与最好/最差车况, 空表返回 *NoDataError
func Overview(df dataframe.DataFrame) (CourierOverview, error) {
	if err := requireColumns("CourierOverview", df, ColAge, ColVehicleCondition); err != nil {
		return CourierOverview{}, err
	}
	ages := finite(values(df, ColAge))
	conditions := finite(values(df, ColVehicleCondition))
	if len(ages) == 0 || len(conditions) == 0 {
		return CourierOverview{}, &NoDataError{Op: "CourierOverview"}
	}

	return CourierOverview{
		MaxAge:                int(floats.Max(ages)),
		MinAge:                int(floats.Min(ages)),
		BestVehicleCondition:  int(floats.Max(conditions)),
		WorstVehicleCondition: int(floats.Min(conditions)),
	}, nil
}

// AverageRatingByCourier 每个配送员的平均评分
func AverageRatingByCourier(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns("AverageRatingByCourier", df, ColCourierID, ColRating); err != nil {
		return dataframe.DataFrame{}, err
	}
	groups, err := groupBy(df, ColCourierID)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	means := make([]float64, len(groups))
	for i, g := range groups {
		means[i] = mean(values(g.Rows, ColRating))
	}
	return newFrame(append(keyColumns(groups, []string{ColCourierID}),
		series.New(means, series.Float, ColDeliveryMean))...)
}

// RatingStatsByTraffic 按路况统计评分均值与标准差
func RatingStatsByTraffic(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	return ratingStats(df, ColTraffic)
}

// RatingStatsByWeather 按天气统计评分均值与标准差
func RatingStatsByWeather(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	return ratingStats(df, ColWeather)
}

func ratingStats(df dataframe.DataFrame, key string) (dataframe.DataFrame, error) {
	if err := requireColumns("RatingStats", df, key, ColRating); err != nil {
		return dataframe.DataFrame{}, err
	}
	groups, err := groupBy(df, key)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	means := make([]float64, len(groups))
	stds := make([]float64, len(groups))
	for i, g := range groups {
		ratings := values(g.Rows, ColRating)
		means[i] = mean(ratings)
		stds[i] = stdDev(ratings)
	}
	return newFrame(append(keyColumns(groups, []string{key}),
		series.New(means, series.Float, ColDeliveryMean),
		series.New(stds, series.Float, ColDeliveryStd))...)
}

type courierTime struct {
	city    string
	courier string
	minutes float64
}

// TopCouriers 按(城市, 配送员)计算平均耗时, 每个城市取前 n 名
// ascending 为 true 时取最快, 否则取最慢; 只输出 cities 中的城市并按其顺序排列,
// cities 为空时使用 FixedCities
func TopCouriers(df dataframe.DataFrame, ascending bool, n int, cities ...string) (dataframe.DataFrame, error) {
	if err := requireColumns("TopCouriers", df, ColCity, ColCourierID, ColTimeTaken); err != nil {
		return dataframe.DataFrame{}, err
	}
	if n <= 0 {
		n = DefaultTopN
	}
	if len(cities) == 0 {
		cities = FixedCities
	}
	groups, err := groupBy(df, ColCity, ColCourierID)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	byCity := make(map[string][]courierTime)
	for _, g := range groups {
		city := CanonicalCity(g.Keys[0])
		byCity[city] = append(byCity[city], courierTime{
			city:    g.Keys[0],
			courier: g.Keys[1],
			minutes: mean(values(g.Rows, ColTimeTaken)),
		})
	}

	var (
		outCities []string
		couriers  []string
		minutes   []float64
	)
	for _, fixed := range cities {
		ranked := byCity[CanonicalCity(fixed)]
		sort.SliceStable(ranked, func(i, j int) bool {
			if ascending {
				return ranked[i].minutes < ranked[j].minutes
			}
			return ranked[i].minutes > ranked[j].minutes
		})
		if len(ranked) > n {
			ranked = ranked[:n]
		}
		for _, r := range ranked {
			outCities = append(outCities, r.city)
			couriers = append(couriers, r.courier)
			minutes = append(minutes, r.minutes)
		}
	}

	return newFrame(
		series.New(outCities, series.String, ColCity),
		series.New(couriers, series.String, ColCourierID),
		series.New(minutes, series.Float, ColTimeTaken),
	)
}

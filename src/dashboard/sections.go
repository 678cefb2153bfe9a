package dashboard

import (
	"DeliveryDashboard/src/processor"
	"math"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/stat"
)

// ====================== 公司视图 ======================

func managementSection(df dataframe.DataFrame) (Section, error) {
	byDay, err := processor.OrdersByDay(df)
	if err != nil {
		return Section{}, err
	}
	share, err := processor.TrafficShare(df)
	if err != nil {
		return Section{}, err
	}
	cityTraffic, err := processor.OrdersByCityAndTraffic(df)
	if err != nil {
		return Section{}, err
	}

	return Section{Charts: []Chart{
		{
			Kind: KindBar, Title: "Order by Day",
			X: processor.ColOrderDate, Y: processor.ColOrderCount,
			Data: TableFromFrame("Order by Day", byDay),
		},
		{
			Kind: KindPie, Title: "Traffic Order Density",
			X: processor.ColTraffic, Value: processor.ColDeliveryShare,
			Data: TableFromFrame("Traffic Order Density", share),
		},
		{
			Kind: KindScatter, Title: "Traffic Order City",
			X: processor.ColCity, Y: processor.ColTraffic,
			Size: processor.ColOrderCount, Color: processor.ColCity,
			Data: TableFromFrame("Traffic Order City", cityTraffic),
		},
	}}, nil
}

func tacticalSection(df dataframe.DataFrame) (Section, error) {
	byWeek, err := processor.OrdersByWeek(df)
	if err != nil {
		return Section{}, err
	}
	perCourier, err := processor.OrdersPerCourierByWeek(df)
	if err != nil {
		return Section{}, err
	}

	return Section{Charts: []Chart{
		{
			Kind: KindLine, Title: "Order by Week",
			X: processor.ColWeekOfYear, Y: processor.ColOrderCount,
			Data: TableFromFrame("Order by Week", byWeek),
		},
		{
			Kind: KindLine, Title: "Order Share by Week",
			X: processor.ColWeekOfYear, Y: processor.ColOrderByDelivery,
			Data: TableFromFrame("Order Share by Week", perCourier),
		},
	}}, nil
}

func geographicSection(df dataframe.DataFrame) (Section, error) {
	locations, err := processor.MedianDeliveryLocation(df)
	if err != nil {
		return Section{}, err
	}
	return Section{Charts: []Chart{{
		Kind: KindMap, Title: "Country Maps",
		X: processor.ColDeliveryLon, Y: processor.ColDeliveryLat,
		Popup: []string{processor.ColCity, processor.ColTraffic},
		Data:  TableFromFrame("Country Maps", locations),
	}}}, nil
}

// ====================== 配送员视图 ======================

func courierMetricsSection(df dataframe.DataFrame) (Section, error) {
	overview, err := processor.Overview(df)
	if err != nil {
		return Section{}, err
	}
	return Section{Metrics: []Metric{
		{Label: "Oldest courier", Value: overview.MaxAge},
		{Label: "Youngest courier", Value: overview.MinAge},
		{Label: "Best vehicle condition", Value: overview.BestVehicleCondition},
		{Label: "Worst vehicle condition", Value: overview.WorstVehicleCondition},
	}}, nil
}

func ratingsSection(df dataframe.DataFrame) (Section, error) {
	byCourier, err := processor.AverageRatingByCourier(df)
	if err != nil {
		return Section{}, err
	}
	byTraffic, err := processor.RatingStatsByTraffic(df)
	if err != nil {
		return Section{}, err
	}
	byWeather, err := processor.RatingStatsByWeather(df)
	if err != nil {
		return Section{}, err
	}
	return Section{Tables: []Table{
		*TableFromFrame("Average rating by courier", byCourier),
		*TableFromFrame("Average rating by traffic", byTraffic),
		*TableFromFrame("Average rating by weather", byWeather),
	}}, nil
}

func (b *Builder) speedSection(df dataframe.DataFrame) (Section, error) {
	fastest, err := processor.TopCouriers(df, true, b.topN, b.cities...)
	if err != nil {
		return Section{}, err
	}
	slowest, err := processor.TopCouriers(df, false, b.topN, b.cities...)
	if err != nil {
		return Section{}, err
	}
	return Section{Tables: []Table{
		*TableFromFrame("Fastest couriers", fastest),
		*TableFromFrame("Slowest couriers", slowest),
	}}, nil
}

// ====================== 餐厅视图 ======================

func restaurantMetricsSection(df dataframe.DataFrame) (Section, error) {
	var section Section
	add := func(label string, value interface{}, err error) error {
		m, err := metric(label, value, err)
		if err != nil {
			return err
		}
		section.Metrics = append(section.Metrics, m)
		return nil
	}

	couriers, err := processor.UniqueCouriers(df)
	if err := add("Unique couriers", couriers, err); err != nil {
		return Section{}, err
	}
	distance, err := processor.AverageDistance(df)
	if err := add("Average distance (km)", distance, err); err != nil {
		return Section{}, err
	}

	festival := []struct {
		label, flag, stat string
	}{
		{"Average time with festival", "Yes", processor.ColAvgTime},
		{"Time std with festival", "Yes", processor.ColStdTime},
		{"Average time without festival", "No", processor.ColAvgTime},
		{"Time std without festival", "No", processor.ColStdTime},
	}
	for _, f := range festival {
		v, err := processor.FestivalTimeStat(df, f.flag, f.stat)
		if err := add(f.label, v, err); err != nil {
			return Section{}, err
		}
	}
	return section, nil
}

func deliveryTimeSection(df dataframe.DataFrame) (Section, error) {
	byCity, err := processor.AverageDistanceByCity(df)
	if err != nil {
		return Section{}, err
	}
	byTraffic, err := processor.TimeStatsByCityAndTraffic(df)
	if err != nil {
		return Section{}, err
	}

	sunburst := Chart{
		Kind: KindSunburst, Title: "Delivery time by city and traffic",
		Path:  []string{processor.ColCity, processor.ColTraffic},
		Value: processor.ColAvgTime, Color: processor.ColStdTime,
		Data: TableFromFrame("Delivery time by city and traffic", byTraffic),
	}
	if byTraffic.Nrow() > 0 {
		sunburst.Midpoint = finiteMean(byTraffic.Col(processor.ColStdTime).Float())
	}

	return Section{Charts: []Chart{
		{
			Kind: KindPie, Title: "Average distance by city",
			X: processor.ColCity, Value: processor.ColDistance,
			Pull: pull(byCity.Nrow()),
			Data: TableFromFrame("Average distance by city", byCity),
		},
		sunburst,
	}}, nil
}

func deliveryDistanceSection(df dataframe.DataFrame) (Section, error) {
	byCity, err := processor.TimeStatsByCity(df)
	if err != nil {
		return Section{}, err
	}
	byOrderType, err := processor.TimeStatsByCityAndOrderType(df)
	if err != nil {
		return Section{}, err
	}
	return Section{
		Charts: []Chart{{
			Kind: KindBar, Title: "Delivery time by city",
			X: processor.ColCity, Y: processor.ColAvgTime, ErrorY: processor.ColStdTime,
			Data: TableFromFrame("Delivery time by city", byCity),
		}},
		Tables: []Table{*TableFromFrame("Delivery time by city and order type", byOrderType)},
	}, nil
}

// pull 饼图第二块突出显示
func pull(n int) []float64 {
	out := make([]float64, n)
	if n > 1 {
		out[1] = 0.1
	}
	return out
}

// finiteMean 颜色中点: 忽略 NaN 的均值, 全部为 NaN 时不设置
func finiteMean(xs []float64) *float64 {
	vals := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			vals = append(vals, x)
		}
	}
	if len(vals) == 0 {
		return nil
	}
	m := stat.Mean(vals, nil)
	return &m
}

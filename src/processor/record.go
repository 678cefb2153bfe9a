package processor

import (
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 规范列名(与数据集表头一致)
const (
	ColID               = "ID"
	ColCourierID        = "Delivery_person_ID"
	ColAge              = "Delivery_person_Age"
	ColRating           = "Delivery_person_Ratings"
	ColWeather          = "Weatherconditions"
	ColTraffic          = "Road_traffic_density"
	ColVehicleCondition = "Vehicle_condition"
	ColOrderType        = "Type_of_order"
	ColVehicleType      = "Type_of_vehicle"
	ColMultiDeliveries  = "multiple_deliveries"
	ColFestival         = "Festival"
	ColCity             = "City"
	ColRestaurantLat    = "Restaurant_latitude"
	ColRestaurantLon    = "Restaurant_longitude"
	ColDeliveryLat      = "Delivery_location_latitude"
	ColDeliveryLon      = "Delivery_location_longitude"
	ColOrderDate        = "Order_Date"
	ColTimeTaken        = "Time_taken(min)"

	// 派生列
	ColWeekOfYear = "week_of_year"
	ColDistance   = "distance"
)

// DateLayout 清洗后 Order_Date 的存储格式, 字符串顺序即日期顺序
const DateLayout = "2006-01-02"

// Columns 清洗后数据表的列顺序
var Columns = []string{
	ColID, ColCourierID, ColAge, ColRating, ColWeather, ColTraffic,
	ColVehicleCondition, ColOrderType, ColVehicleType, ColMultiDeliveries,
	ColFestival, ColCity, ColRestaurantLat, ColRestaurantLon,
	ColDeliveryLat, ColDeliveryLon, ColOrderDate, ColTimeTaken,
}

// AdmissionColumns 任一为缺失值时整行剔除, 按顺序依次过滤
var AdmissionColumns = []string{ColAge, ColTraffic, ColCity, ColFestival, ColMultiDeliveries}

// DeliveryRecord 一条清洗后的配送记录
type DeliveryRecord struct {
	ID                 string
	CourierID          string
	Age                int
	Rating             float64 // 缺失为 NaN
	Weather            string
	Traffic            string
	VehicleCondition   int
	OrderType          string
	VehicleType        string
	MultipleDeliveries int
	Festival           string
	City               string
	RestaurantLat      float64
	RestaurantLon      float64
	DeliveryLat        float64
	DeliveryLon        float64
	OrderDate          time.Time
	TimeTaken          int
}

// FromRecords 由配送记录构建带类型的 DataFrame
func FromRecords(records []DeliveryRecord) dataframe.DataFrame {
	n := len(records)
	var (
		ids, couriers, weather, traffic = make([]string, n), make([]string, n), make([]string, n), make([]string, n)
		orderTypes, vehicleTypes        = make([]string, n), make([]string, n)
		festival, city, dates           = make([]string, n), make([]string, n), make([]string, n)
		ages, conditions, multi, taken  = make([]int, n), make([]int, n), make([]int, n), make([]int, n)
		ratings, rLat, rLon, dLat, dLon = make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	)

	for i, r := range records {
		ids[i] = r.ID
		couriers[i] = r.CourierID
		ages[i] = r.Age
		ratings[i] = r.Rating
		weather[i] = r.Weather
		traffic[i] = r.Traffic
		conditions[i] = r.VehicleCondition
		orderTypes[i] = r.OrderType
		vehicleTypes[i] = r.VehicleType
		multi[i] = r.MultipleDeliveries
		festival[i] = r.Festival
		city[i] = r.City
		rLat[i] = r.RestaurantLat
		rLon[i] = r.RestaurantLon
		dLat[i] = r.DeliveryLat
		dLon[i] = r.DeliveryLon
		dates[i] = r.OrderDate.Format(DateLayout)
		taken[i] = r.TimeTaken
	}

	return dataframe.New(
		series.New(ids, series.String, ColID),
		series.New(couriers, series.String, ColCourierID),
		series.New(ages, series.Int, ColAge),
		series.New(ratings, series.Float, ColRating),
		series.New(weather, series.String, ColWeather),
		series.New(traffic, series.String, ColTraffic),
		series.New(conditions, series.Int, ColVehicleCondition),
		series.New(orderTypes, series.String, ColOrderType),
		series.New(vehicleTypes, series.String, ColVehicleType),
		series.New(multi, series.Int, ColMultiDeliveries),
		series.New(festival, series.String, ColFestival),
		series.New(city, series.String, ColCity),
		series.New(rLat, series.Float, ColRestaurantLat),
		series.New(rLon, series.Float, ColRestaurantLon),
		series.New(dLat, series.Float, ColDeliveryLat),
		series.New(dLon, series.Float, ColDeliveryLon),
		series.New(dates, series.String, ColOrderDate),
		series.New(taken, series.Int, ColTimeTaken),
	)
}

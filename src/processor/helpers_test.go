package processor

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/require"
)

type rawRow map[string]string

// baseRow 一行与数据集格式一致的原始记录(带空格与 "(min) " 前缀)
func baseRow(id string) rawRow {
	return rawRow{
		ColID:               id + " ",
		ColCourierID:        "INDORES13DEL02 ",
		ColAge:              "37",
		ColRating:           "4.9",
		ColWeather:          "conditions Sunny",
		ColTraffic:          "High ",
		ColVehicleCondition: "2",
		ColOrderType:        "Snack ",
		ColVehicleType:      "motorcycle ",
		ColMultiDeliveries:  "0",
		ColFestival:         "No ",
		ColCity:             "Urban ",
		ColRestaurantLat:    "22.745049",
		ColRestaurantLon:    "75.892471",
		ColDeliveryLat:      "22.765049",
		ColDeliveryLon:      "75.912471",
		ColOrderDate:        "19-03-2022",
		ColTimeTaken:        "(min) 24",
	}
}

func (r rawRow) with(col, value string) rawRow {
	out := make(rawRow, len(r))
	for k, v := range r {
		out[k] = v
	}
	out[col] = value
	return out
}

// rawFrame 构建所有列为字符串的原始数据表
func rawFrame(t *testing.T, rows ...rawRow) dataframe.DataFrame {
	t.Helper()
	if len(rows) == 0 {
		cols := make([]series.Series, len(Columns))
		for i, c := range Columns {
			cols[i] = series.New([]string{}, series.String, c)
		}
		df := dataframe.New(cols...)
		require.NoError(t, df.Err)
		return df
	}
	records := [][]string{Columns}
	for _, r := range rows {
		rec := make([]string, len(Columns))
		for i, c := range Columns {
			rec[i] = r[c]
		}
		records = append(records, rec)
	}
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	require.NoError(t, df.Err)
	return df
}

func mustClean(t *testing.T, rows ...rawRow) dataframe.DataFrame {
	t.Helper()
	df, _, err := CleanData(rawFrame(t, rows...), CleanOptions{})
	require.NoError(t, err)
	return df
}

// delivery 一条清洗后的记录, 默认 Urban/High/No
func delivery(id, courier string, minutes int) DeliveryRecord {
	return DeliveryRecord{
		ID:                 id,
		CourierID:          courier,
		Age:                30,
		Rating:             4.5,
		Weather:            "conditions Sunny",
		Traffic:            "High",
		VehicleCondition:   1,
		OrderType:          "Snack",
		VehicleType:        "motorcycle",
		MultipleDeliveries: 1,
		Festival:           "No",
		City:               "Urban",
		RestaurantLat:      22.745049,
		RestaurantLon:      75.892471,
		DeliveryLat:        22.765049,
		DeliveryLon:        75.912471,
		OrderDate:          time.Date(2022, 3, 19, 0, 0, 0, 0, time.UTC),
		TimeTaken:          minutes,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func frameOf(t *testing.T, records ...DeliveryRecord) dataframe.DataFrame {
	t.Helper()
	df := FromRecords(records)
	require.NoError(t, df.Err)
	return df
}

// column 读取字符串列
func column(df dataframe.DataFrame, col string) []string {
	if df.Nrow() == 0 {
		return nil
	}
	return df.Col(col).Records()
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("0x%04x", i)
	}
	return out
}

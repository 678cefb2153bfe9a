package dashboard

import (
	"DeliveryDashboard/src/config"
	"DeliveryDashboard/src/processor"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, courier, city, traffic string, day, minutes int) processor.DeliveryRecord {
	return processor.DeliveryRecord{
		ID:                 id,
		CourierID:          courier,
		Age:                20 + day,
		Rating:             4.5,
		Weather:            "conditions Sunny",
		Traffic:            traffic,
		VehicleCondition:   day % 3,
		OrderType:          "Snack",
		VehicleType:        "motorcycle",
		MultipleDeliveries: 1,
		Festival:           "No",
		City:               city,
		RestaurantLat:      22.745049,
		RestaurantLon:      75.892471,
		DeliveryLat:        22.765049,
		DeliveryLon:        75.912471,
		OrderDate:          time.Date(2022, 3, day, 0, 0, 0, 0, time.UTC),
		TimeTaken:          minutes,
	}
}

func fixture(t *testing.T) dataframe.DataFrame {
	t.Helper()
	records := []processor.DeliveryRecord{
		record("1", "A", "Urban", "High", 1, 20),
		record("2", "A", "Urban", "Jam", 2, 30),
		record("3", "B", "Metropolitian", "Low", 3, 25),
		record("4", "C", "Semi-Urban", "Medium", 10, 40),
		record("5", "B", "Metropolitian", "Jam", 11, 35),
	}
	records[4].Festival = "Yes"
	records[2].Rating = math.NaN()
	df := processor.FromRecords(records)
	require.NoError(t, df.Err)
	return df
}

func allTraffic(until time.Time) processor.FilterOptions {
	return processor.FilterOptions{Until: until, Traffic: processor.TrafficLevels}
}

func TestNewBuilderDefaults(t *testing.T) {
	b := NewBuilder(&config.DataConfig{DateMin: "2022-02-11", DateMax: "2022-04-06", DateDefault: "2022-04-13", TopN: 3})
	assert.Equal(t, 3, b.topN)
	assert.Equal(t, "La Place Company", b.sidebar.Title)
	assert.Equal(t, "Fastest Delivery in Town", b.sidebar.Subtitle)

	opts := b.DefaultFilter()
	assert.Equal(t, time.Date(2022, 4, 13, 0, 0, 0, 0, time.UTC), opts.Until)
	assert.Equal(t, []string{"Low", "Medium", "High", "Jam"}, opts.Traffic)

	assert.Equal(t, processor.DefaultTopN, NewBuilder(nil).topN)
}

func TestHomePage(t *testing.T) {
	page := NewBuilder(nil).HomePage(fixture(t), processor.CleanReport{RowsIn: 7, RowsOut: 5, Malformed: 1})

	assert.Equal(t, PageHome, page.Name)
	assert.Equal(t, "La Place Company Growth Dashboard", page.Title)
	assert.Nil(t, page.Filter)
	require.Len(t, page.Links, 3)
	assert.Equal(t, "/api/pages/company", page.Links[0].Path)

	require.Len(t, page.Sections, 1)
	values := map[string]interface{}{}
	for _, m := range page.Sections[0].Metrics {
		values[m.Label] = m.Value
	}
	assert.Equal(t, 5, values["Rows"])
	assert.Equal(t, 1, values["Rows dropped (malformed)"])
	assert.Equal(t, "2022-03-01", values["First order date"])
	assert.Equal(t, "2022-03-11", values["Last order date"])
}

func TestCompanyPage(t *testing.T) {
	page, err := NewBuilder(nil).CompanyPage(fixture(t), allTraffic(time.Date(2022, 4, 13, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	require.Len(t, page.Sections, 3)
	assert.Equal(t, "2022-04-13", page.Filter.Until)

	management := page.Sections[0]
	require.Len(t, management.Charts, 3)
	assert.Equal(t, KindBar, management.Charts[0].Kind)
	assert.Len(t, management.Charts[0].Data.Rows, 5)
	assert.Equal(t, KindPie, management.Charts[1].Kind)
	assert.Equal(t, processor.ColDeliveryShare, management.Charts[1].Value)

	tactical := page.Sections[1]
	assert.Empty(t, tactical.Placeholder)
	require.Len(t, tactical.Charts, 2)

	geo := page.Sections[2]
	require.Len(t, geo.Charts, 1)
	assert.Equal(t, KindMap, geo.Charts[0].Kind)
	assert.Equal(t, []string{processor.ColCity, processor.ColTraffic}, geo.Charts[0].Popup)
}

func TestCompanyPageDivideByZeroPlaceholder(t *testing.T) {
	df := fixture(t)
	records := []processor.DeliveryRecord{record("9", "", "Urban", "High", 20, 10)}
	extra := processor.FromRecords(records)
	df = df.RBind(extra)
	require.NoError(t, df.Err)

	page, err := NewBuilder(nil).CompanyPage(df, allTraffic(time.Date(2022, 4, 13, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	assert.Empty(t, page.Sections[0].Placeholder)
	assert.NotEmpty(t, page.Sections[1].Placeholder)
	assert.Empty(t, page.Sections[1].Charts)
	assert.Empty(t, page.Sections[2].Placeholder)
}

func TestCourierPage(t *testing.T) {
	page, err := NewBuilder(&config.DataConfig{TopN: 1}).CourierPage(fixture(t), allTraffic(time.Date(2022, 4, 13, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Len(t, page.Sections, 3)

	metrics := page.Sections[0].Metrics
	require.Len(t, metrics, 4)
	assert.Equal(t, 31, metrics[0].Value)
	assert.Equal(t, 21, metrics[1].Value)

	ratings := page.Sections[1].Tables
	require.Len(t, ratings, 3)
	// B 只有一个有效评分
	assert.Equal(t, []interface{}{"B", 4.5}, ratings[0].Rows[1])

	speed := page.Sections[2].Tables
	require.Len(t, speed, 2)
	assert.Len(t, speed[0].Rows, 3, "每个城市1个")
}

func TestRestaurantPage(t *testing.T) {
	page, err := NewBuilder(nil).RestaurantPage(fixture(t), allTraffic(time.Date(2022, 4, 13, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Len(t, page.Sections, 3)

	metrics := page.Sections[0].Metrics
	require.Len(t, metrics, 6)
	assert.Equal(t, 3, metrics[0].Value)
	assert.Equal(t, 35.0, metrics[2].Value)
	assert.Nil(t, metrics[3].Value, "节日只有一单, 标准差为空")
	assert.Equal(t, 28.75, metrics[4].Value)

	charts := page.Sections[1].Charts
	require.Len(t, charts, 2)
	assert.Equal(t, []float64{0, 0.1, 0}, charts[0].Pull)
	assert.Equal(t, KindSunburst, charts[1].Kind)
	assert.Nil(t, charts[1].Midpoint, "每个(城市, 路况)只有一单, 标准差全部为 NaN")

	distance := page.Sections[2]
	require.Len(t, distance.Charts, 1)
	assert.Equal(t, processor.ColStdTime, distance.Charts[0].ErrorY)
	require.Len(t, distance.Tables, 1)
}

func TestPagesEmptySelection(t *testing.T) {
	b := NewBuilder(nil)
	opts := processor.FilterOptions{Until: time.Date(2022, 4, 13, 0, 0, 0, 0, time.UTC)}

	pages, err := b.Pages(fixture(t), processor.CleanReport{}, opts)
	require.NoError(t, err)
	require.Len(t, pages, 4)

	couriers := pages[2]
	assert.NotEmpty(t, couriers.Sections[0].Placeholder)
	assert.Empty(t, couriers.Sections[1].Placeholder)

	restaurants := pages[3]
	for _, m := range restaurants.Sections[0].Metrics[1:] {
		assert.Nil(t, m.Value, m.Label)
		assert.NotEmpty(t, m.Note, m.Label)
	}

	// NaN 必须能编码成 JSON
	_, err = json.Marshal(pages)
	require.NoError(t, err)
}

func TestSunburstMidpoint(t *testing.T) {
	df := fixture(t)
	df = df.RBind(processor.FromRecords([]processor.DeliveryRecord{
		record("6", "D", "Urban", "High", 4, 30),
	}))
	require.NoError(t, df.Err)

	section, err := deliveryTimeSection(df)
	require.NoError(t, err)
	require.NotNil(t, section.Charts[1].Midpoint)
	// 只有 (Urban, High) 有两单: 20 和 30
	assert.InDelta(t, 7.07, *section.Charts[1].Midpoint, 1e-9)
}

func TestFiniteMeanAndPull(t *testing.T) {
	m := finiteMean([]float64{1, math.NaN(), 3})
	require.NotNil(t, m)
	assert.InDelta(t, 2, *m, 1e-9)
	assert.Nil(t, finiteMean([]float64{math.NaN()}))

	assert.Equal(t, []float64{0}, pull(1))
	assert.Equal(t, []float64{0, 0.1, 0, 0}, pull(4))
}

func TestBuildUnknownPage(t *testing.T) {
	_, err := NewBuilder(nil).Build("drivers", fixture(t), processor.CleanReport{}, processor.DefaultFilter())
	assert.ErrorIs(t, err, ErrUnknownPage)
}

func TestPageSheets(t *testing.T) {
	page, err := NewBuilder(nil).RestaurantPage(fixture(t), processor.DefaultFilter())
	require.NoError(t, err)

	sheets := page.Sheets()
	require.Len(t, sheets, 5)
	assert.Equal(t, "Overall Metrics", sheets[0].Name)
	assert.Equal(t, []string{"metric", "value"}, sheets[0].Header)
	assert.Equal(t, "Average distance by city", sheets[1].Name)
}

func TestTableFromFrameNaN(t *testing.T) {
	df := fixture(t)
	table := TableFromFrame("ratings", df.Select([]string{processor.ColID, processor.ColRating}))
	assert.Nil(t, table.Rows[2][1])

	raw, err := json.Marshal(table)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `["3",null]`)
}

func TestCourierPageConfiguredCities(t *testing.T) {
	b := NewBuilder(&config.DataConfig{TopN: 1, Cities: []string{"Urban"}, DateDefault: "13/04/2022"})
	assert.Equal(t, "2022-04-13", b.sidebar.DateDefault, "无效日期沿用默认值")

	page, err := b.CourierPage(fixture(t), allTraffic(time.Date(2022, 4, 13, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	speed := page.Sections[2].Tables
	require.Len(t, speed, 2)
	assert.Equal(t, [][]interface{}{{"Urban", "A", 25.0}}, speed[0].Rows)
	assert.Equal(t, [][]interface{}{{"Urban", "A", 25.0}}, speed[1].Rows)
}

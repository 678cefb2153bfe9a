package server

import (
	"DeliveryDashboard/src/dashboard"
	"DeliveryDashboard/src/processor"
	"DeliveryDashboard/src/storage"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type stubData struct {
	df  dataframe.DataFrame
	err error
}

func (s stubData) Get() (dataframe.DataFrame, processor.CleanReport, error) {
	return s.df, processor.CleanReport{RowsIn: s.df.Nrow(), RowsOut: s.df.Nrow()}, s.err
}

func delivery(id, courier, traffic string, day, minutes int) processor.DeliveryRecord {
	return processor.DeliveryRecord{
		ID: id, CourierID: courier, Age: 30, Rating: 4.7, Weather: "conditions Sunny",
		Traffic: traffic, VehicleCondition: 1, OrderType: "Meal", VehicleType: "scooter",
		MultipleDeliveries: 1, Festival: "No", City: "Urban",
		RestaurantLat: 12.9, RestaurantLon: 77.6, DeliveryLat: 12.95, DeliveryLon: 77.65,
		OrderDate: time.Date(2022, 3, day, 0, 0, 0, 0, time.UTC), TimeTaken: minutes,
	}
}

func newTestServer(t *testing.T, data DataSource) (*Server, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := storage.NewWriterLogger(&buf)
	return New(data, dashboard.NewBuilder(nil), nil, logger), &buf
}

func fixtureData(t *testing.T) stubData {
	t.Helper()
	df := processor.FromRecords([]processor.DeliveryRecord{
		delivery("1", "A", "Low", 1, 20),
		delivery("2", "B", "Jam", 2, 30),
		delivery("3", "A", "High", 20, 25),
	})
	require.NoError(t, df.Err)
	return stubData{df: df}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetPage(t *testing.T) {
	s, _ := newTestServer(t, fixtureData(t))
	h := s.Routes()

	rec := get(t, h, "/api/pages/company?until=2022-03-10&traffic=Low&traffic=Jam")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var page dashboard.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, dashboard.PageCompany, page.Name)
	require.NotNil(t, page.Filter)
	assert.Equal(t, "2022-03-10", page.Filter.Until)
	assert.Equal(t, []string{"Low", "Jam"}, page.Filter.Traffic)
	assert.Len(t, page.Sections[0].Charts[0].Data.Rows, 2)
}

func TestGetPageCommaSeparatedTraffic(t *testing.T) {
	s, _ := newTestServer(t, fixtureData(t))
	rec := get(t, s.Routes(), "/api/pages/couriers?traffic=Low,%20High")
	require.Equal(t, http.StatusOK, rec.Code)

	var page dashboard.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, []string{"Low", "High"}, page.Filter.Traffic)
	assert.Equal(t, "2022-04-13", page.Filter.Until)
}

func TestGetPageDefaults(t *testing.T) {
	s, _ := newTestServer(t, fixtureData(t))
	rec := get(t, s.Routes(), "/api/pages/restaurants")
	require.Equal(t, http.StatusOK, rec.Code)

	var page dashboard.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, processor.TrafficLevels, page.Filter.Traffic)
}

func TestGetPageErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   DataSource
		target string
		status int
	}{
		{"bad date", nil, "/api/pages/company?until=13-04-2022", http.StatusBadRequest},
		{"unknown traffic", nil, "/api/pages/company?traffic=Heavy", http.StatusBadRequest},
		{"unknown page", nil, "/api/pages/drivers", http.StatusNotFound},
		{"load failure", stubData{err: errors.New("数据文件不可用")}, "/api/pages/company", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.data
			if data == nil {
				data = fixtureData(t)
			}
			s, _ := newTestServer(t, data)
			rec := get(t, s.Routes(), tt.target)
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestEmptyTrafficSelection(t *testing.T) {
	s, _ := newTestServer(t, fixtureData(t))
	rec := get(t, s.Routes(), "/api/pages/couriers?traffic=")
	require.Equal(t, http.StatusOK, rec.Code)

	var page dashboard.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Empty(t, page.Filter.Traffic)
	assert.NotEmpty(t, page.Sections[0].Placeholder)
}

func TestListPages(t *testing.T) {
	s, _ := newTestServer(t, fixtureData(t))
	rec := get(t, s.Routes(), "/api/pages")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"restaurants"`)
	assert.Contains(t, rec.Body.String(), `/api/pages/couriers`)
}

func TestExportPage(t *testing.T) {
	s, _ := newTestServer(t, fixtureData(t))
	rec := get(t, s.Routes(), "/api/export/restaurants")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "restaurants.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "Overall Metrics", f.GetSheetList()[0])
}

func TestExportAllAndDataset(t *testing.T) {
	s, _ := newTestServer(t, fixtureData(t))
	h := s.Routes()

	rec := get(t, h, "/api/export/all")
	require.Equal(t, http.StatusOK, rec.Code)
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Greater(t, len(f.GetSheetList()), 5)
	f.Close()

	rec = get(t, h, "/api/export/dataset?traffic=Low")
	require.Equal(t, http.StatusOK, rec.Code)
	f, err = excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("dataset")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, processor.Columns, rows[0])
}

func TestExportUnknownPage(t *testing.T) {
	s, _ := newTestServer(t, fixtureData(t))
	rec := get(t, s.Routes(), "/api/export/drivers")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, fixtureData(t))
	rec := get(t, s.Routes(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows":3`)

	s, _ = newTestServer(t, stubData{err: errors.New("missing")})
	rec = get(t, s.Routes(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, fixtureData(t))
	h := s.Routes()
	get(t, h, "/api/pages/home")

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dashboard_http_requests_total{method="GET",route="/api/pages/{page}",status="200"}`)
	assert.Contains(t, rec.Body.String(), `dashboard_page_renders_total{page="home",status="ok"}`)
}

func TestStreamLogs(t *testing.T) {
	s, _ := newTestServer(t, fixtureData(t))
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/logs", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.logger.Info("数据集已重新加载")

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "INFO: 数据集已重新加载")
}

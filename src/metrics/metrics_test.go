package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserveLoad(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	ObserveLoad(120*time.Millisecond, nil, 100, 90, 8, 2)
	body := scrape(t)
	assert.Contains(t, body, `dashboard_dataset_rows{stage="kept"} 90`)
	assert.Contains(t, body, `dashboard_dataset_rows{stage="malformed"} 2`)
	assert.Contains(t, body, `dashboard_dataset_loads_total{status="ok"}`)

	ObserveLoad(time.Millisecond, errors.New("boom"), 0, 0, 0, 0)
	body = scrape(t)
	assert.Contains(t, body, `dashboard_dataset_rows{stage="kept"} 90`, "失败的加载不覆盖行数")
	assert.Contains(t, body, `dashboard_dataset_loads_total{status="error"} 1`)
}

func TestHandler(t *testing.T) {
	PageRenders.WithLabelValues("company", "ok").Inc()

	body := scrape(t)
	assert.Contains(t, body, `dashboard_page_renders_total{page="company",status="ok"}`)
	assert.Contains(t, body, "go_goroutines")
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "ok", Status(nil))
	assert.Equal(t, "error", Status(errors.New("x")))
}

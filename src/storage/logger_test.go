package storage

import (
	"DeliveryDashboard/src/config"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time { return time.Date(2022, 3, 19, 8, 30, 0, 0, time.UTC) }

func TestLogFormatAndSubscribe(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf)
	logger.now = fixedClock

	sub := logger.Subscribe()
	logger.Info("数据集加载完成")
	logger.Error("boom")

	assert.Equal(t,
		"[2022-03-19 08:30:00] INFO: 数据集加载完成\n[2022-03-19 08:30:00] ERROR: boom\n",
		buf.String())
	assert.Equal(t, "[2022-03-19 08:30:00] INFO: 数据集加载完成\n", <-sub)
	assert.Equal(t, "[2022-03-19 08:30:00] ERROR: boom\n", <-sub)

	logger.Unsubscribe(sub)
	_, open := <-sub
	assert.False(t, open)
	logger.Warning("no subscribers left")
}

func TestCheckRotate(t *testing.T) {
	name := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewLogger(name)
	require.NoError(t, err)
	defer logger.Close()
	logger.now = fixedClock

	cfg := &config.Config{LogMaxSize: "1 * 64"}
	rotated, err := logger.CheckRotate(cfg)
	require.NoError(t, err)
	assert.False(t, rotated)

	for i := 0; i < 5; i++ {
		logger.Debug(strings.Repeat("x", 20))
	}
	rotated, err = logger.CheckRotate(cfg)
	require.NoError(t, err)
	assert.True(t, rotated)

	_, err = os.Stat(filepath.Join(filepath.Dir(name), "app.20220319083000.log"))
	assert.NoError(t, err)

	logger.Info("after rotate")
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after rotate")
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(filepath.Join(dir, "a.log"))
	require.NoError(t, err)
	defer logger.Close()

	require.NoError(t, logger.Reopen(filepath.Join(dir, "b.log")))
	logger.Info("moved")

	data, err := os.ReadFile(filepath.Join(dir, "b.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO: moved")
}

func TestEval(t *testing.T) {
	assert.Equal(t, int64(10*1024*1024), eval("10 * 1024 * 1024"))
	assert.Equal(t, int64(512), eval("512"))
	assert.Equal(t, int64(0), eval("ten"))
	assert.Equal(t, int64(0), eval(""))
}

package processor

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls int32
	rows  []rawRow
	err   error
	t     *testing.T
}

func (l *countingLoader) load(string) (dataframe.DataFrame, error) {
	atomic.AddInt32(&l.calls, 1)
	if l.err != nil {
		return dataframe.DataFrame{}, l.err
	}
	return rawFrame(l.t, l.rows...), nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDatasetMemoizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	writeFile(t, path, "v1")

	loader := &countingLoader{rows: []rawRow{baseRow("a"), baseRow("b").with(ColCity, "NaN ")}, t: t}
	ds := NewDataset(path, loader.load, CleanOptions{})

	var stats []LoadStats
	ds.OnLoad(func(s LoadStats) { stats = append(stats, s) })

	for i := 0; i < 3; i++ {
		df, report, err := ds.Get()
		require.NoError(t, err)
		assert.Equal(t, 1, df.Nrow())
		assert.Equal(t, 1, report.MissingRows())
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&loader.calls))
	require.Len(t, stats, 1)
	assert.Equal(t, path, stats[0].Path)
	assert.NoError(t, stats[0].Err)
	assert.Equal(t, 2, stats[0].Report.RowsIn)
}

func TestDatasetReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	writeFile(t, path, "v1")

	loader := &countingLoader{rows: []rawRow{baseRow("a")}, t: t}
	ds := NewDataset(path, loader.load, CleanOptions{})

	_, _, err := ds.Get()
	require.NoError(t, err)

	loader.rows = []rawRow{baseRow("a"), baseRow("b")}
	writeFile(t, path, "version two")

	df, _, err := ds.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, df.Nrow())
	assert.EqualValues(t, 2, atomic.LoadInt32(&loader.calls))
}

func TestDatasetInvalidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	writeFile(t, path, "v1")

	loader := &countingLoader{rows: []rawRow{baseRow("a")}, t: t}
	ds := NewDataset(path, loader.load, CleanOptions{})

	_, _, err := ds.Get()
	require.NoError(t, err)
	ds.Invalidate()
	_, _, err = ds.Get()
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&loader.calls))
}

func TestDatasetReturnsCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	writeFile(t, path, "v1")

	loader := &countingLoader{rows: []rawRow{baseRow("a")}, t: t}
	ds := NewDataset(path, loader.load, CleanOptions{})

	df, _, err := ds.Get()
	require.NoError(t, err)
	df = df.Mutate(series.New([]string{"changed"}, series.String, ColCity))
	require.NoError(t, df.Err)

	again, _, err := ds.Get()
	require.NoError(t, err)
	assert.Equal(t, "Urban", again.Col(ColCity).Elem(0).String())
}

func TestDatasetConcurrentGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	writeFile(t, path, "v1")

	loader := &countingLoader{rows: []rawRow{baseRow("a"), baseRow("b")}, t: t}
	ds := NewDataset(path, loader.load, CleanOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			df, _, err := ds.Get()
			assert.NoError(t, err)
			assert.Equal(t, 2, df.Nrow())
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&loader.calls))
}

func TestDatasetErrors(t *testing.T) {
	dir := t.TempDir()

	ds := NewDataset(filepath.Join(dir, "missing.csv"), (&countingLoader{t: t}).load, CleanOptions{})
	_, _, err := ds.Get()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(dir, "train.csv")
	writeFile(t, path, "v1")
	boom := errors.New("boom")
	var got LoadStats
	ds = NewDataset(path, (&countingLoader{err: boom, t: t}).load, CleanOptions{})
	ds.OnLoad(func(s LoadStats) { got = s })
	_, _, err = ds.Get()
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, got.Err, boom)

	bad := &countingLoader{rows: []rawRow{baseRow("a").with(ColAge, "old")}, t: t}
	ds = NewDataset(path, bad.load, CleanOptions{})
	_, _, err = ds.Get()
	require.Error(t, err)
	assert.True(t, IsFormat(err))

	// 失败不缓存
	_, _, err = ds.Get()
	require.Error(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&bad.calls))
}

func TestDatasetHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	writeFile(t, path, "header")

	ds := NewDataset(path, (&countingLoader{t: t}).load, CleanOptions{})
	df, report, err := ds.Get()
	require.NoError(t, err)
	assert.Equal(t, 0, df.Nrow())
	assert.Equal(t, Columns, df.Names())
	assert.Equal(t, CleanReport{}, report)

	out, err := OrdersByDay(df)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Nrow())

	_, err = AverageDistance(df)
	assert.True(t, IsNoData(err))
}

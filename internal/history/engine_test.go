package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulse-link/internal/domain"
)

// fakeRepo 仓储fake，按需注入各操作的返回值
type fakeRepo struct {
	records []domain.HeartRateRecord
	stats   domain.HeartRateStats
	err     error

	lastRange domain.TimeRange
	lastLimit int
}

func (f *fakeRepo) Insert(ctx context.Context, reading domain.Reading) (domain.HeartRateRecord, error) {
	return domain.HeartRateRecord{}, f.err
}

func (f *fakeRepo) QueryRange(ctx context.Context, tr domain.TimeRange, limit int) ([]domain.HeartRateRecord, error) {
	f.lastRange = tr
	f.lastLimit = limit
	return f.records, f.err
}

func (f *fakeRepo) Stats(ctx context.Context, tr domain.TimeRange) (domain.HeartRateStats, error) {
	return f.stats, f.err
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(repo *fakeRepo) *Engine {
	return NewEngineWithClock(repo, zap.NewNop(), func() time.Time { return testNow })
}

func TestResolvePreset_OneHour(t *testing.T) {
	e := newTestEngine(&fakeRepo{})

	tr, preset, err := e.ResolvePreset("1hour")
	require.NoError(t, err)
	assert.Equal(t, testNow, tr.End)
	assert.Equal(t, testNow.Add(-time.Hour), tr.Start)
	assert.Equal(t, "Last 1 Hour", preset.Label)

	// 该跨度对应5秒桶宽
	assert.Equal(t, 5*time.Second, BucketWidth(tr.Span()))
}

func TestResolvePreset_Unknown(t *testing.T) {
	e := newTestEngine(&fakeRepo{})

	_, _, err := e.ResolvePreset("2weeks")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestResolveRange_Invalid(t *testing.T) {
	e := newTestEngine(&fakeRepo{})

	_, err := e.ResolveRange(testNow, testNow)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = e.ResolveRange(testNow, testNow.Add(-time.Minute))
	assert.ErrorIs(t, err, ErrInvalidRange)

	tr, err := e.ResolveRange(testNow.Add(-time.Minute), testNow)
	require.NoError(t, err)
	assert.True(t, tr.Valid())
}

func TestBucketWidthTable(t *testing.T) {
	cases := []struct {
		span  time.Duration
		width time.Duration
	}{
		{5 * time.Minute, time.Second},
		{15 * time.Minute, time.Second},
		{16 * time.Minute, 5 * time.Second},
		{time.Hour, 5 * time.Second},
		{2 * time.Hour, 30 * time.Second},
		{6 * time.Hour, 30 * time.Second},
		{24 * time.Hour, time.Minute},
		{7 * 24 * time.Hour, 5 * time.Minute},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.width, BucketWidth(tc.span), "span=%s", tc.span)
	}
}

func TestFetchAggregated(t *testing.T) {
	base := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)

	// 1小时跨度 → 5秒桶；仓储返回倒序（最新在前）
	repo := &fakeRepo{records: []domain.HeartRateRecord{
		{ID: 4, HeartRate: 90, Timestamp: base.Add(7 * time.Second)},
		{ID: 3, HeartRate: 80, Timestamp: base.Add(6 * time.Second)},
		{ID: 2, HeartRate: 75, Timestamp: base.Add(2 * time.Second)},
		{ID: 1, HeartRate: 72, Timestamp: base.Add(time.Second)},
	}}
	e := newTestEngine(repo)

	tr := domain.TimeRange{Start: base, End: base.Add(time.Hour)}
	points := e.FetchAggregated(context.Background(), tr)

	// 两个桶：[base, base+5s) 与 [base+5s, base+10s)
	require.Len(t, points, 2)
	assert.True(t, points[0].Timestamp.Equal(base))
	// mean(72, 75) = 73.5 → 74
	assert.Equal(t, 74, points[0].HeartRate)
	assert.True(t, points[1].Timestamp.Equal(base.Add(5*time.Second)))
	// mean(80, 90) = 85
	assert.Equal(t, 85, points[1].HeartRate)

	// 升序且桶键唯一
	assert.True(t, points[0].Timestamp.Before(points[1].Timestamp))
}

func TestFetchAggregated_SparseBuckets(t *testing.T) {
	base := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)

	// 中间缺数据的桶不补点
	repo := &fakeRepo{records: []domain.HeartRateRecord{
		{ID: 2, HeartRate: 80, Timestamp: base.Add(30 * time.Second)},
		{ID: 1, HeartRate: 70, Timestamp: base},
	}}
	e := newTestEngine(repo)

	tr := domain.TimeRange{Start: base, End: base.Add(time.Hour)}
	points := e.FetchAggregated(context.Background(), tr)

	require.Len(t, points, 2)
	assert.True(t, points[0].Timestamp.Equal(base))
	assert.True(t, points[1].Timestamp.Equal(base.Add(30*time.Second)))
}

func TestFetchAggregated_DegradesToEmpty(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}
	e := newTestEngine(repo)

	tr := domain.TimeRange{Start: testNow.Add(-time.Hour), End: testNow}
	points := e.FetchAggregated(context.Background(), tr)

	assert.NotNil(t, points)
	assert.Len(t, points, 0)
}

func TestFetchStats_DegradesToZero(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}
	e := newTestEngine(repo)

	stats := e.FetchStats(context.Background(), domain.TimeRange{Start: testNow.Add(-time.Hour), End: testNow})
	assert.Equal(t, domain.HeartRateStats{}, stats)
}

func TestFetchRecent_WindowEndsNow(t *testing.T) {
	repo := &fakeRepo{}
	e := newTestEngine(repo)

	e.FetchRecent(context.Background(), 30*time.Minute, 100)
	assert.Equal(t, testNow, repo.lastRange.End)
	assert.Equal(t, testNow.Add(-30*time.Minute), repo.lastRange.Start)
	assert.Equal(t, 100, repo.lastLimit)
}

func TestPresetCatalog(t *testing.T) {
	presets := Presets()
	require.Len(t, presets, 6)

	labels := make([]string, 0, len(presets))
	for _, p := range presets {
		labels = append(labels, p.Label)
	}
	assert.Equal(t, []string{
		"Last 5 Minutes",
		"Last 15 Minutes",
		"Last 1 Hour",
		"Last 6 Hours",
		"Last 24 Hours",
		"Last 7 Days",
	}, labels)
}

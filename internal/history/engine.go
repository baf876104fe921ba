package history

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"pulse-link/internal/domain"
	"pulse-link/internal/repository"
)

// ErrInvalidRange 区间非法（start >= end）或预设名称未知
// 作为被拒绝的请求返回给调用方，不重试
var ErrInvalidRange = errors.New("invalid time range")

// 聚合取数上限：桶宽表已按跨度控制输出点数，
// 这里只防御单区间内记录数异常膨胀
const aggregateFetchLimit = 50000

// Engine 历史查询与聚合引擎
// 读路径容错：仓储查询失败时记录日志并降级为空结果，不向上传播
type Engine struct {
	repo   repository.HeartRateRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine 创建查询引擎
func NewEngine(repo repository.HeartRateRepository, logger *zap.Logger) *Engine {
	return &Engine{repo: repo, logger: logger, now: time.Now}
}

// NewEngineWithClock 创建使用指定时钟的查询引擎（测试用）
func NewEngineWithClock(repo repository.HeartRateRepository, logger *zap.Logger, now func() time.Time) *Engine {
	return &Engine{repo: repo, logger: logger, now: now}
}

// ResolvePreset 解析预设名称为具体区间
// "now" 在每次调用时取值，不缓存
func (e *Engine) ResolvePreset(name string) (domain.TimeRange, Preset, error) {
	preset, ok := LookupPreset(name)
	if !ok {
		return domain.TimeRange{}, Preset{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidRange, name)
	}

	end := e.now()
	return domain.TimeRange{Start: end.Add(-preset.Duration), End: end}, preset, nil
}

// ResolveRange 校验调用方提供的显式区间
func (e *Engine) ResolveRange(start, end time.Time) (domain.TimeRange, error) {
	tr := domain.TimeRange{Start: start, End: end}
	if !tr.Valid() {
		return domain.TimeRange{}, fmt.Errorf("%w: start must be before end", ErrInvalidRange)
	}
	return tr, nil
}

// BucketWidth 根据区间跨度确定聚合桶宽（固定阶梯表）
// 与请求的点数无关：跨度越大桶越宽，输出点数大致有界
func BucketWidth(span time.Duration) time.Duration {
	switch {
	case span <= 15*time.Minute:
		return time.Second
	case span <= time.Hour:
		return 5 * time.Second
	case span <= 6*time.Hour:
		return 30 * time.Second
	case span <= 24*time.Hour:
		return time.Minute
	default:
		return 5 * time.Minute
	}
}

// FetchAggregated 取区间内原始记录并按桶宽降采样
// 桶键 = floor(timestamp/width)*width，桶值为桶内均值（四舍五入），
// 输出按时间升序，空桶不补点
func (e *Engine) FetchAggregated(ctx context.Context, tr domain.TimeRange) []domain.AggregatedPoint {
	width := BucketWidth(tr.Span())

	records, err := e.repo.QueryRange(ctx, tr, aggregateFetchLimit)
	if err != nil {
		e.logger.Error("Failed to fetch records for aggregation", zap.Error(err))
		return []domain.AggregatedPoint{}
	}

	type bucket struct {
		sum   int
		count int
	}

	widthMs := width.Milliseconds()
	buckets := make(map[int64]*bucket)
	for _, rec := range records {
		key := rec.Timestamp.UnixMilli() / widthMs * widthMs
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.sum += rec.HeartRate
		b.count++
	}

	points := make([]domain.AggregatedPoint, 0, len(buckets))
	for key, b := range buckets {
		points = append(points, domain.AggregatedPoint{
			Timestamp: time.UnixMilli(key).UTC(),
			HeartRate: int(math.Round(float64(b.sum) / float64(b.count))),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	return points
}

// FetchStats 区间统计，直接委托仓储，失败时降级为零值
func (e *Engine) FetchStats(ctx context.Context, tr domain.TimeRange) domain.HeartRateStats {
	stats, err := e.repo.Stats(ctx, tr)
	if err != nil {
		e.logger.Error("Failed to fetch heart rate stats", zap.Error(err))
		return domain.HeartRateStats{}
	}
	return stats
}

// FetchHistorical 取区间内原始记录（时间倒序），失败时降级为空结果
func (e *Engine) FetchHistorical(ctx context.Context, tr domain.TimeRange, limit int) []domain.HeartRateRecord {
	records, err := e.repo.QueryRange(ctx, tr, limit)
	if err != nil {
		e.logger.Error("Failed to fetch historical records", zap.Error(err))
		return []domain.HeartRateRecord{}
	}
	return records
}

// FetchRecent 最近 window 内的记录（recent 端点与实时订阅端共用）
func (e *Engine) FetchRecent(ctx context.Context, window time.Duration, limit int) []domain.HeartRateRecord {
	end := e.now()
	return e.FetchHistorical(ctx, domain.TimeRange{Start: end.Add(-window), End: end}, limit)
}

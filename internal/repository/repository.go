package repository

import (
	"context"

	"pulse-link/internal/domain"
)

// HeartRateRepository 心率数据仓储接口
// 写路径失败由调用方记录日志后继续（不重试、不排队，该时刻的数据点丢弃）；
// 读路径调用方将错误降级为空结果
type HeartRateRepository interface {
	// Insert 追加一条读数，返回带存储分配ID的记录
	Insert(ctx context.Context, reading domain.Reading) (domain.HeartRateRecord, error)

	// QueryRange 查询区间内记录（含边界），按时间倒序，最多 limit 条
	QueryRange(ctx context.Context, tr domain.TimeRange, limit int) ([]domain.HeartRateRecord, error)

	// Stats 计算区间内全部记录的统计值（不受 limit 约束），空区间时各字段为 0
	Stats(ctx context.Context, tr domain.TimeRange) (domain.HeartRateStats, error)
}

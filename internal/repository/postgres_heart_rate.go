package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"pulse-link/internal/domain"
)

// PostgresHeartRateRepository 心率数据Repository实现（heart_rate_data 表）
type PostgresHeartRateRepository struct {
	db *sql.DB
}

// NewPostgresHeartRateRepository 创建心率数据Repository
func NewPostgresHeartRateRepository(db *sql.DB) *PostgresHeartRateRepository {
	return &PostgresHeartRateRepository{db: db}
}

// 确保实现了接口
var _ HeartRateRepository = (*PostgresHeartRateRepository)(nil)

// Insert 追加一条读数（append-only，记录不更新）
func (r *PostgresHeartRateRepository) Insert(ctx context.Context, reading domain.Reading) (domain.HeartRateRecord, error) {
	query := `
		INSERT INTO heart_rate_data (heart_rate, timestamp)
		VALUES ($1, $2)
		RETURNING id
	`

	var id int64
	if err := r.db.QueryRowContext(ctx, query, reading.HeartRate, reading.Timestamp).Scan(&id); err != nil {
		return domain.HeartRateRecord{}, fmt.Errorf("failed to insert heart rate reading: %w", err)
	}

	return domain.HeartRateRecord{
		ID:        id,
		HeartRate: reading.HeartRate,
		Timestamp: reading.Timestamp,
	}, nil
}

// QueryRange 查询区间内记录，时间倒序（最新在前），最多 limit 条
func (r *PostgresHeartRateRepository) QueryRange(ctx context.Context, tr domain.TimeRange, limit int) ([]domain.HeartRateRecord, error) {
	query := `
		SELECT id, heart_rate, timestamp
		FROM heart_rate_data
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, tr.Start, tr.End, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query heart rate range: %w", err)
	}
	defer rows.Close()

	records := make([]domain.HeartRateRecord, 0)
	for rows.Next() {
		var rec domain.HeartRateRecord
		if err := rows.Scan(&rec.ID, &rec.HeartRate, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan heart rate record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate heart rate records: %w", err)
	}

	return records, nil
}

// Stats 计算区间统计值（min/max/avg/count），均值四舍五入取整
func (r *PostgresHeartRateRepository) Stats(ctx context.Context, tr domain.TimeRange) (domain.HeartRateStats, error) {
	query := `
		SELECT
			COALESCE(MIN(heart_rate), 0),
			COALESCE(MAX(heart_rate), 0),
			COALESCE(AVG(heart_rate), 0),
			COUNT(*)
		FROM heart_rate_data
		WHERE timestamp >= $1 AND timestamp <= $2
	`

	var stats domain.HeartRateStats
	var avg float64
	err := r.db.QueryRowContext(ctx, query, tr.Start, tr.End).Scan(&stats.Min, &stats.Max, &avg, &stats.Count)
	if err != nil {
		return domain.HeartRateStats{}, fmt.Errorf("failed to query heart rate stats: %w", err)
	}

	stats.Average = int(math.Round(avg))
	return stats, nil
}

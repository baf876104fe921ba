package domain

import (
	"errors"
	"time"
)

// 心率有效范围（开区间）：超出范围的读数在边界处丢弃，
// 不落库、不广播
const (
	MinHeartRate = 0
	MaxHeartRate = 300
)

// ErrInvalidReading 解析成功但数值越界的读数
var ErrInvalidReading = errors.New("heart rate out of valid range")

// Reading 一条心率读数（解析层产物，尚未落库）
// Timestamp 为接收时刻，不取自上游报文
type Reading struct {
	HeartRate int       `json:"heartRate"`
	Timestamp time.Time `json:"timestamp"`
}

// Valid 校验心率是否在有效范围内（0 < hr < 300）
func (r Reading) Valid() bool {
	return r.HeartRate > MinHeartRate && r.HeartRate < MaxHeartRate
}

// HeartRateRecord 已持久化的心率记录（对应 heart_rate_data 表）
type HeartRateRecord struct {
	ID        int64     `json:"id" db:"id"`                // BIGSERIAL
	HeartRate int       `json:"heartRate" db:"heart_rate"` // INTEGER
	Timestamp time.Time `json:"timestamp" db:"timestamp"`  // TIMESTAMPTZ
}

// HeartRateStats 区间统计结果，空区间时所有字段为 0
type HeartRateStats struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Average int `json:"average"` // 四舍五入取整
	Count   int `json:"count"`
}

// AggregatedPoint 聚合后的展示点（桶起始时间 + 桶内均值），不落库
type AggregatedPoint struct {
	Timestamp time.Time `json:"timestamp"`
	HeartRate int       `json:"heartRate"`
}

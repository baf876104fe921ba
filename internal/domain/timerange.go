package domain

import "time"

// TimeRange 查询时间区间，约定 Start < End
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Span 区间跨度
func (tr TimeRange) Span() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Valid 校验区间是否合法（Start 严格早于 End）
func (tr TimeRange) Valid() bool {
	return tr.Start.Before(tr.End)
}

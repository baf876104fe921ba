package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"pulse-link/internal/domain"
	"pulse-link/internal/history"
)

const (
	defaultHistoricalLimit = 1000
	defaultRecentLimit     = 100
	exportFetchLimit       = 50000
)

// DataHandler 历史数据查询 Handler
type DataHandler struct {
	engine *history.Engine
	logger *zap.Logger
}

// NewDataHandler 创建 DataHandler
func NewDataHandler(engine *history.Engine, logger *zap.Logger) *DataHandler {
	return &DataHandler{engine: engine, logger: logger}
}

// timeRangePayload 响应中的时间区间（RFC3339）
type timeRangePayload struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Label string `json:"label,omitempty"`
}

func newTimeRangePayload(tr domain.TimeRange, label string) timeRangePayload {
	return timeRangePayload{
		Start: tr.Start.UTC().Format(time.RFC3339Nano),
		End:   tr.End.UTC().Format(time.RFC3339Nano),
		Label: label,
	}
}

type rangeMeta struct {
	Preset       string `json:"preset,omitempty"`
	TotalRecords int    `json:"totalRecords"`
	Limit        int    `json:"limit"`
}

type rangeResponse struct {
	Data      []domain.HeartRateRecord `json:"data"`
	Stats     domain.HeartRateStats    `json:"stats"`
	TimeRange timeRangePayload         `json:"timeRange"`
	Meta      rangeMeta                `json:"meta"`
}

// resolveQueryRange 解析请求中的显式区间，两个边界都必须提供
// 缺失或非法属于客户端错误（400），不是服务端故障
func (h *DataHandler) resolveQueryRange(w http.ResponseWriter, r *http.Request) (domain.TimeRange, bool) {
	startRaw := r.URL.Query().Get("start")
	endRaw := r.URL.Query().Get("end")

	if startRaw == "" || endRaw == "" {
		writeError(w, http.StatusBadRequest, "Start and end dates are required")
		return domain.TimeRange{}, false
	}

	start, err := parseTimestamp(startRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date")
		return domain.TimeRange{}, false
	}
	end, err := parseTimestamp(endRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end date")
		return domain.TimeRange{}, false
	}

	tr, err := h.engine.ResolveRange(start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Start must be before end")
		return domain.TimeRange{}, false
	}

	return tr, true
}

// GetHistorical GET /api/data/historical?start&end&limit
func (h *DataHandler) GetHistorical(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.resolveQueryRange(w, r)
	if !ok {
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), defaultHistoricalLimit)
	data := h.engine.FetchHistorical(r.Context(), tr, limit)
	stats := h.engine.FetchStats(r.Context(), tr)

	writeJSON(w, http.StatusOK, rangeResponse{
		Data:      data,
		Stats:     stats,
		TimeRange: newTimeRangePayload(tr, ""),
		Meta:      rangeMeta{TotalRecords: len(data), Limit: limit},
	})
}

// GetPreset GET /api/data/preset/{preset}?limit
func (h *DataHandler) GetPreset(w http.ResponseWriter, r *http.Request, name string) {
	tr, preset, err := h.engine.ResolvePreset(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid preset. Available: "+availablePresets())
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), defaultHistoricalLimit)
	data := h.engine.FetchHistorical(r.Context(), tr, limit)
	stats := h.engine.FetchStats(r.Context(), tr)

	writeJSON(w, http.StatusOK, rangeResponse{
		Data:      data,
		Stats:     stats,
		TimeRange: newTimeRangePayload(tr, preset.Label),
		Meta:      rangeMeta{Preset: preset.Name, TotalRecords: len(data), Limit: limit},
	})
}

// GetTimeRanges GET /api/data/time-ranges 预设目录
func (h *DataHandler) GetTimeRanges(w http.ResponseWriter, r *http.Request) {
	type presetPayload struct {
		Name       string `json:"name"`
		Label      string `json:"label"`
		DurationMs int64  `json:"durationMs"`
	}

	presets := history.Presets()
	out := make([]presetPayload, 0, len(presets))
	for _, p := range presets {
		out = append(out, presetPayload{
			Name:       p.Name,
			Label:      p.Label,
			DurationMs: p.Duration.Milliseconds(),
		})
	}

	writeJSON(w, http.StatusOK, out)
}

// GetStats GET /api/data/stats?start&end 只返回统计值
func (h *DataHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.resolveQueryRange(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.engine.FetchStats(r.Context(), tr))
}

// GetRecent GET /api/data/recent?limit 最近一小时
func (h *DataHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), defaultRecentLimit)
	writeJSON(w, http.StatusOK, h.engine.FetchRecent(r.Context(), time.Hour, limit))
}

// GetAggregated GET /api/data/aggregated?start&end 或 ?preset=
// 按跨度选桶宽降采样后的展示点
func (h *DataHandler) GetAggregated(w http.ResponseWriter, r *http.Request) {
	var tr domain.TimeRange
	label := ""

	if name := r.URL.Query().Get("preset"); name != "" {
		resolved, preset, err := h.engine.ResolvePreset(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid preset. Available: "+availablePresets())
			return
		}
		tr = resolved
		label = preset.Label
	} else {
		resolved, ok := h.resolveQueryRange(w, r)
		if !ok {
			return
		}
		tr = resolved
	}

	points := h.engine.FetchAggregated(r.Context(), tr)
	width := history.BucketWidth(tr.Span())

	writeJSON(w, http.StatusOK, struct {
		Data      []domain.AggregatedPoint `json:"data"`
		TimeRange timeRangePayload         `json:"timeRange"`
		Meta      struct {
			BucketSeconds int `json:"bucketSeconds"`
			TotalPoints   int `json:"totalPoints"`
		} `json:"meta"`
	}{
		Data:      points,
		TimeRange: newTimeRangePayload(tr, label),
		Meta: struct {
			BucketSeconds int `json:"bucketSeconds"`
			TotalPoints   int `json:"totalPoints"`
		}{
			BucketSeconds: int(width.Seconds()),
			TotalPoints:   len(points),
		},
	})
}

// Export GET /api/data/export?start&end 导出区间记录与统计为 Excel
func (h *DataHandler) Export(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.resolveQueryRange(w, r)
	if !ok {
		return
	}

	data := h.engine.FetchHistorical(r.Context(), tr, exportFetchLimit)
	stats := h.engine.FetchStats(r.Context(), tr)

	content, err := generateHeartRateExport(tr, data, stats)
	if err != nil {
		h.logger.Error("Failed to generate heart rate export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate export")
		return
	}

	filename := "heart_rate_" + tr.Start.UTC().Format("20060102T150405") +
		"_" + tr.End.UTC().Format("20060102T150405") + ".xlsx"

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func availablePresets() string {
	names := make([]string, 0)
	for _, p := range history.Presets() {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}

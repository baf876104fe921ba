package history

import "time"

// Preset 预设时间窗口：相对当前时刻的命名区间，每次查询时重新解析
type Preset struct {
	Name     string        `json:"name"`
	Label    string        `json:"label"`
	Duration time.Duration `json:"-"`
}

// 预设目录（与前端时间选择器一致的顺序）
var presetCatalog = []Preset{
	{Name: "5min", Label: "Last 5 Minutes", Duration: 5 * time.Minute},
	{Name: "15min", Label: "Last 15 Minutes", Duration: 15 * time.Minute},
	{Name: "1hour", Label: "Last 1 Hour", Duration: time.Hour},
	{Name: "6hours", Label: "Last 6 Hours", Duration: 6 * time.Hour},
	{Name: "24hours", Label: "Last 24 Hours", Duration: 24 * time.Hour},
	{Name: "7days", Label: "Last 7 Days", Duration: 7 * 24 * time.Hour},
}

// Presets 返回全部预设（目录顺序）
func Presets() []Preset {
	out := make([]Preset, len(presetCatalog))
	copy(out, presetCatalog)
	return out
}

// LookupPreset 按名称查找预设
func LookupPreset(name string) (Preset, bool) {
	for _, p := range presetCatalog {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

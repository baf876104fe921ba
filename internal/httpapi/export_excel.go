package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"pulse-link/internal/domain"
)

// 导出表头
var heartRateExportHeader = []string{
	"ID",
	"Heart Rate (BPM)",
	"Timestamp",
}

// generateHeartRateExport 生成心率数据导出 Excel 文件
// 第一个工作表为区间内全部记录（每条记录一行），第二个为统计摘要
func generateHeartRateExport(tr domain.TimeRange, data []domain.HeartRateRecord, stats domain.HeartRateStats) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	sheetName := "Heart Rate"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range heartRateExportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for row, rec := range data {
		values := []interface{}{
			rec.ID,
			rec.HeartRate,
			rec.Timestamp.UTC().Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	// 统计摘要工作表
	statsSheet := "Stats"
	if _, err := f.NewSheet(statsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create stats sheet: %w", err)
	}

	statsRows := [][]interface{}{
		{"Range Start", tr.Start.UTC().Format(time.RFC3339)},
		{"Range End", tr.End.UTC().Format(time.RFC3339)},
		{"Min", stats.Min},
		{"Max", stats.Max},
		{"Average", stats.Average},
		{"Count", stats.Count},
	}
	for row, pair := range statsRows {
		for col, v := range pair {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+1)
			_ = f.SetCellValue(statsSheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel file: %w", err)
	}

	return buf.Bytes(), nil
}

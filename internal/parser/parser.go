package parser

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"pulse-link/internal/domain"
)

// ErrUnparsable 上游报文无法解析出心率数值
// 调用方记录日志后丢弃该条消息，连接保持打开
var ErrUnparsable = errors.New("unparsable heart rate message")

// Parser 上游报文解析器
// 上游三种编码混发：JSON数字、带 heartRate/value 字段的JSON对象、裸数字文本
type Parser struct {
	now func() time.Time
}

// New 创建解析器
func New() *Parser {
	return &Parser{now: time.Now}
}

// NewWithClock 创建使用指定时钟的解析器（测试用）
func NewWithClock(now func() time.Time) *Parser {
	return &Parser{now: now}
}

// Parse 解析一条上游报文
// 时间戳取解析时刻（接收时间），不取报文内容
// 注意：数值范围校验（0 < hr < 300）由调用方负责，
// 解析失败与"解析成功但越界"是两种不同结果
func (p *Parser) Parse(payload []byte) (domain.Reading, error) {
	ts := p.now()

	// 优先尝试结构化解码
	var decoded interface{}
	if err := json.Unmarshal(payload, &decoded); err == nil {
		switch v := decoded.(type) {
		case float64:
			return domain.Reading{HeartRate: roundToInt(v), Timestamp: ts}, nil
		case map[string]interface{}:
			if hr, ok := numberField(v, "heartRate"); ok {
				return domain.Reading{HeartRate: roundToInt(hr), Timestamp: ts}, nil
			}
			if hr, ok := numberField(v, "value"); ok {
				return domain.Reading{HeartRate: roundToInt(hr), Timestamp: ts}, nil
			}
			return domain.Reading{}, ErrUnparsable
		default:
			return domain.Reading{}, ErrUnparsable
		}
	}

	// 结构化解码失败时按裸数字文本解析
	trimmed := strings.TrimSpace(string(payload))
	if num, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return domain.Reading{HeartRate: roundToInt(num), Timestamp: ts}, nil
	}

	return domain.Reading{}, ErrUnparsable
}

func numberField(obj map[string]interface{}, key string) (float64, bool) {
	raw, ok := obj[key]
	if !ok {
		return 0, false
	}
	num, ok := raw.(float64)
	return num, ok
}

func roundToInt(v float64) int {
	return int(math.Round(v))
}

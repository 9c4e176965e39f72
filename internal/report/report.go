// Package report 解析 Lambda 平台写入日志流的 REPORT 行。
//
// 一条 REPORT 行形如：
//
//	REPORT RequestId: <id>\tDuration: 100.00 ms\tBilled Duration: 100 ms\tMemory Size: 128 MB\tMax Memory Used: 64 MB
//
// 前缀之后是以制表符分隔的 "<Name>: <value>" 字段。
package report

import (
	"strconv"
	"strings"

	"github.com/oriys/lambda-log-ingestor/internal/domain"
)

// Prefix 是 REPORT 行的固定前缀。
const Prefix = "REPORT "

// REPORT 行中的字段名
const (
	FieldRequestID      = "RequestId"
	FieldDuration       = "Duration"
	FieldBilledDuration = "Billed Duration"
	FieldMemorySize     = "Memory Size"
	FieldMaxMemoryUsed  = "Max Memory Used"
)

// FieldValue 返回第一个名称匹配的字段在 "<name>: " 之后的子串。
// 匹配区分大小写且为精确前缀匹配；没有匹配字段时 ok 为 false，这不是错误。
func FieldValue(fields []string, name string) (string, bool) {
	prefix := name + ": "
	for _, field := range fields {
		if strings.HasPrefix(field, prefix) {
			return field[len(prefix):], true
		}
	}
	return "", false
}

// IsReport 判断一条日志消息是否为 REPORT 行。
func IsReport(message string) bool {
	return strings.HasPrefix(message, Prefix)
}

// Fields 去掉前缀与首尾空白后按制表符切分字段。
func Fields(message string) []string {
	return strings.Split(strings.TrimSpace(strings.TrimPrefix(message, Prefix)), "\t")
}

// Parse 解析一条 REPORT 行。
// 消息不是 REPORT 行或缺少 RequestId 时 ok 为 false；其余字段缺失时对应指标为 nil。
func Parse(message string) (domain.ReportRecord, bool) {
	if !IsReport(message) {
		return domain.ReportRecord{}, false
	}
	fields := Fields(message)
	requestID, ok := FieldValue(fields, FieldRequestID)
	if !ok || requestID == "" {
		return domain.ReportRecord{}, false
	}
	return domain.ReportRecord{
		RequestID:      requestID,
		Duration:       optional(fields, FieldDuration),
		BilledDuration: optional(fields, FieldBilledDuration),
		MemorySize:     optional(fields, FieldMemorySize),
		MaxMemoryUsed:  optional(fields, FieldMaxMemoryUsed),
	}, true
}

func optional(fields []string, name string) *string {
	v, ok := FieldValue(fields, name)
	if !ok {
		return nil
	}
	return &v
}

// Quantity 将 "100.00 ms"、"64 MB" 这样的值拆成数值与单位。
// 值为 nil 或数值部分无法解析时 ok 为 false。
func Quantity(value *string) (float64, string, bool) {
	if value == nil {
		return 0, "", false
	}
	num, unit, _ := strings.Cut(strings.TrimSpace(*value), " ")
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, "", false
	}
	return f, strings.TrimSpace(unit), true
}

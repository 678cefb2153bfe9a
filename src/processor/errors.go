package processor

import (
	"errors"
	"fmt"
)

// DataQualityError 必填字段缺失导致的剔除统计, 只出现在 CleanReport 中, 不会中断清洗
type DataQualityError struct {
	Column string
	Rows   int
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("列 %s 缺失值, 剔除 %d 行", e.Column, e.Rows)
}

// FormatError 字段内容与期望格式不符
type FormatError struct {
	Row    int // 原始数据中的行号(从0开始, 不含表头)
	Column string
	Value  string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("第 %d 行列 %s 格式错误 (%q): %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// NoDataError 聚合至少需要一行数据, 但筛选后为空
type NoDataError struct {
	Op string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("%s: 没有可用数据", e.Op)
}

// DivideByZeroError 某周没有可统计的配送员
type DivideByZeroError struct {
	Op  string
	Key string
}

func (e *DivideByZeroError) Error() string {
	return fmt.Sprintf("%s: %s 分母为0", e.Op, e.Key)
}

// ArgumentError 调用参数非法
type ArgumentError struct {
	Name  string
	Value string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("参数 %s 非法: %q", e.Name, e.Value)
}

func IsNoData(err error) bool {
	var target *NoDataError
	return errors.As(err, &target)
}

func IsFormat(err error) bool {
	var target *FormatError
	return errors.As(err, &target)
}

func IsDivideByZero(err error) bool {
	var target *DivideByZeroError
	return errors.As(err, &target)
}

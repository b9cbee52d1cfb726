package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidSortField 排序字段格式非法或不在白名单内
	ErrInvalidSortField = errors.New("invalid sort field")
	// ErrInvalidSortOrder 排序方向不是 ASC/DESC
	ErrInvalidSortOrder = errors.New("sort order must be ASC or DESC")
)

// 列名只允许小写字母、数字和下划线,不接受带表名前缀的写法
var sortFieldPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateSortField 校验排序列名格式
func ValidateSortField(field string) error {
	if !sortFieldPattern.MatchString(field) {
		return fmt.Errorf("%w: %q", ErrInvalidSortField, field)
	}
	return nil
}

// ValidateSortOrder 校验排序方向,忽略大小写和首尾空白
func ValidateSortOrder(order string) error {
	switch SanitizeSortOrder(order) {
	case "ASC", "DESC":
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSortOrder, order)
}

// SanitizeSortField 去掉首尾空白并转小写
func SanitizeSortField(field string) string {
	return strings.ToLower(strings.TrimSpace(field))
}

// SanitizeSortOrder 去掉首尾空白并转大写,空串视为 DESC
func SanitizeSortOrder(order string) string {
	order = strings.ToUpper(strings.TrimSpace(order))
	if order == "" {
		return "DESC"
	}
	return order
}

// OrderClause 生成 "列 方向" 形式的排序子句
//
// 列名必须出现在 allowed 中,空列名回落到 fallback
func OrderClause(field, order string, allowed map[string]bool, fallback string) (string, error) {
	field = SanitizeSortField(field)
	if field == "" {
		field = fallback
	}
	if err := ValidateSortField(field); err != nil {
		return "", err
	}
	if !allowed[field] {
		return "", fmt.Errorf("%w: %q", ErrInvalidSortField, field)
	}
	if err := ValidateSortOrder(order); err != nil {
		return "", err
	}
	return field + " " + SanitizeSortOrder(order), nil
}

package okx

import (
	"fmt"
	"strings"
)

// ValidationError 上游返回的字段缺失或格式不合法
type ValidationError struct {
	Scope string // 所属结构，如 "ranks"、"public-stats"
	Row   int    // 行号，-1 表示不是数组元素
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("missing %s", e.path())
	}
	return fmt.Sprintf("invalid %s: %s", e.path(), e.Value)
}

func (e *ValidationError) path() string {
	var b strings.Builder
	b.WriteString(e.Scope)
	if e.Row >= 0 {
		fmt.Fprintf(&b, "[%d]", e.Row)
	}
	if e.Field != "" {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(e.Field)
	}
	return b.String()
}

// NotFoundError 上游找不到对应的带单员
type NotFoundError struct {
	Resource string
	IDs      []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, strings.Join(e.IDs, ", "))
}

// BusinessError HTTP 200 但业务 code 非 0
type BusinessError struct {
	Endpoint string
	Code     string
	Msg      string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("OKX %s 业务错误 code=%s msg=%s", e.Endpoint, e.Code, e.Msg)
}

// HTTPError 非 200 响应
type HTTPError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("OKX %s HTTP 错误 %d: %s", e.Endpoint, e.Status, e.Body)
}

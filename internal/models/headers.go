package models

import (
	"fmt"
	"net/http"
	"strings"
)

// CliHeaders 命令行传递的头部列表,每项格式为 "Name: Value"
type CliHeaders []string

// Parse 将字符串列表解析为 http.Header
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header)
	for i, s := range ch {
		name, value, ok := strings.Cut(s, ":")
		if !ok {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: 应为 'Name: Value'", i+1)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: 头部名称不能为空", i+1)
		}
		result.Set(name, strings.TrimSpace(value))
	}
	return result, nil
}

// HeaderProvider HTTP头部提供者
// 每次调用都可能返回不同的User-Agent
type HeaderProvider interface {
	GetHeaders() (http.Header, error)
}

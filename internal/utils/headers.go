package utils

import (
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/RecoveryAshes/InsightCrawler/internal/models"
)

// MaxHeaderValueLength HTTP头部值最大长度 (8KB)
const MaxHeaderValueLength = 8192

var (
	headerNamePattern  = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	headerValuePattern = regexp.MustCompile(`^[\x20-\x7E\t]*$`)

	// 由HTTP客户端管理的头部,不允许自定义
	forbiddenHeaders = map[string]bool{
		"host":              true,
		"content-length":    true,
		"transfer-encoding": true,
	}

	sensitiveKeywords = []string{"authorization", "cookie", "token", "key", "secret", "password", "credential"}
)

// ValidateHeaders 校验头部名称和值 (RFC 7230)
func ValidateHeaders(headers http.Header) error {
	for name, values := range headers {
		if forbiddenHeaders[strings.ToLower(name)] {
			return &models.ValidationError{HeaderName: name, Reason: "此头部由HTTP客户端自动管理,不允许自定义"}
		}
		if !headerNamePattern.MatchString(name) {
			return &models.ValidationError{HeaderName: name, Reason: "头部名称包含非法字符"}
		}
		for _, value := range values {
			if len(value) > MaxHeaderValueLength {
				return &models.ValidationError{HeaderName: name, Reason: "头部值过长"}
			}
			if !headerValuePattern.MatchString(value) {
				return &models.ValidationError{HeaderName: name, Reason: "头部值包含非法字符 (仅允许可打印ASCII字符)"}
			}
		}
	}
	return nil
}

// IsSensitiveHeader 按名称关键字判断是否敏感
func IsSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// RedactHeaders 返回脱敏后的 "Name: Value" 字符串,用于日志
func RedactHeaders(headers http.Header) string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		value := headers.Get(name)
		if IsSensitiveHeader(name) {
			value = redactValue(value)
		}
		parts = append(parts, name+": "+value)
	}
	return strings.Join(parts, ", ")
}

func redactValue(value string) string {
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

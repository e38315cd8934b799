package models

import (
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidateTargetURL 校验目标的列表页地址
// 只接受带主机名的 http/https 绝对地址, 不允许前后空白和内嵌账号
func ValidateTargetURL(raw string) error {
	if raw == "" {
		return &ConfigError{Field: "url", Cause: errors.New("地址不能为空")}
	}
	if strings.TrimSpace(raw) != raw {
		return &ConfigError{Field: "url", Cause: errors.New("地址包含前后空白")}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigError{Field: "url", Cause: err}
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return &ConfigError{Field: "url", Cause: errors.New("只支持http或https地址")}
	case u.Host == "":
		return &ConfigError{Field: "url", Cause: errors.New("缺少主机名")}
	case u.User != nil:
		return &ConfigError{Field: "url", Cause: errors.New("不允许在地址中携带账号信息")}
	}
	return nil
}

// NewID 生成按时间递增的ID (UUIDv7), 历史和文章按ID排序即为写入顺序
func NewID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

package main

import (
	"fmt"
	"net"
	"strconv"
)

// ValidateTargetID 验证目标ID
func ValidateTargetID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("目标ID必须为正整数,当前值: %d", id)
	}
	return nil
}

// ValidateLimit 验证显示条数
func ValidateLimit(limit int) error {
	if limit < 1 || limit > 1000 {
		return fmt.Errorf("显示条数必须在1-1000之间,当前值: %d", limit)
	}
	return nil
}

// ValidateAddr 验证监听地址
func ValidateAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("无效的监听地址 %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("无效的端口: %s", port)
	}
	return nil
}

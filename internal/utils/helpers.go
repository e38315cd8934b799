package utils

import "unicode/utf8"

// TruncateRunes 按字符截断字符串,超出部分以 "..." 结尾
func TruncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

package crawlers

import (
	"strings"
	"time"
)

// 依次尝试的常见日期格式
var fallbackDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006.01.02 15:04",
	"2006.01.02",
	"2006/01/02 15:04",
	"2006/01/02",
	"Jan 02, 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02 Jan 2006",
	"2 Jan 2006",
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
}

// ParseDate 解析日期
// 先尝试配置的格式(Java风格,如 yyyy.MM.dd),再依次尝试常见格式
// 全部失败返回nil,不返回错误
func ParseDate(raw, format string, loc *time.Location) *time.Time {
	value := strings.TrimSpace(raw)
	value = strings.TrimSuffix(value, ".")
	if value == "" {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}

	layouts := fallbackDateLayouts
	if format != "" {
		layouts = append([]string{JavaLayout(format)}, fallbackDateLayouts...)
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return &t
		}
	}
	return nil
}

// JavaLayout 将 yyyy-MM-dd HH:mm:ss 风格的格式转换为Go的参考时间布局
// 单引号内为字面量
func JavaLayout(pattern string) string {
	var b strings.Builder
	runes := []rune(pattern)

	for i := 0; i < len(runes); {
		c := runes[i]

		if c == '\'' {
			j := i + 1
			for j < len(runes) && runes[j] != '\'' {
				b.WriteRune(runes[j])
				j++
			}
			i = j + 1
			continue
		}

		if !isASCIILetter(c) {
			b.WriteRune(c)
			i++
			continue
		}

		j := i
		for j < len(runes) && runes[j] == c {
			j++
		}
		b.WriteString(javaToken(c, j-i))
		i = j
	}
	return b.String()
}

func javaToken(c rune, n int) string {
	switch c {
	case 'y', 'u':
		if n == 2 {
			return "06"
		}
		return "2006"
	case 'M', 'L':
		switch {
		case n >= 4:
			return "January"
		case n == 3:
			return "Jan"
		case n == 2:
			return "01"
		}
		return "1"
	case 'd':
		if n >= 2 {
			return "02"
		}
		return "2"
	case 'H', 'k':
		return "15"
	case 'h', 'K':
		if n >= 2 {
			return "03"
		}
		return "3"
	case 'm':
		if n >= 2 {
			return "04"
		}
		return "4"
	case 's':
		if n >= 2 {
			return "05"
		}
		return "5"
	case 'S':
		return strings.Repeat("0", n)
	case 'a':
		return "PM"
	case 'E':
		if n >= 4 {
			return "Monday"
		}
		return "Mon"
	case 'z':
		return "MST"
	case 'Z':
		return "-0700"
	case 'X':
		switch n {
		case 1:
			return "Z07"
		case 2:
			return "Z0700"
		}
		return "Z07:00"
	}
	return strings.Repeat(string(c), n)
}

func isASCIILetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

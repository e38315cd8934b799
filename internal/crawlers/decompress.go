package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// decompressBody 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli); 声明gzip但内容未压缩时原样返回
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip", "x-gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()
		return readAll(reader, "gzip")

	case "deflate":
		// 多数服务器发送的是zlib封装的deflate,少数发送裸deflate
		if reader, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer reader.Close()
			return readAll(reader, "deflate")
		}
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()
		return readAll(reader, "deflate")

	case "br":
		return readAll(brotli.NewReader(bytes.NewReader(body)), "brotli")

	case "", "identity":
		return body, nil

	default:
		return body, fmt.Errorf("未知的Content-Encoding: %s", contentEncoding)
	}
}

func readAll(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s读取失败: %w", name, err)
	}
	return data, nil
}

package crawlers

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
)

// decodingTransport 在colly读取响应之前解压响应体
// colly 会按 Content-Type 的charset转码, 转码必须作用在解压后的内容上
type decodingTransport struct {
	base http.RoundTripper
}

func newDecodingTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &decodingTransport{base: base}
}

// RoundTrip 实现 http.RoundTripper 接口
func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	encoding := resp.Header.Get("Content-Encoding")
	if encoding == "" || resp.Uncompressed {
		return resp, nil
	}

	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	body, err := decompressBody(encoding, raw)
	if err != nil {
		return nil, err
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.Header.Del("Content-Encoding")
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	resp.ContentLength = int64(len(body))
	resp.Uncompressed = true
	return resp, nil
}

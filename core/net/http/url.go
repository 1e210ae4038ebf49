package http

import (
	"fmt"
	"net/url"
	"strings"
)

// WebSocketURL 将 http(s) 根地址转换为 ws(s) 地址并拼接 path 与查询参数
func WebSocketURL(base *url.URL, path string, query url.Values) (string, error) {
	u := *base
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// PathSegment 转义单个路径段，避免设备编号中的 "/" 改变路由
func PathSegment(s string) string {
	return url.PathEscape(s)
}

package validate

import (
	"net/url"
	"strings"
)

// 内网地址前缀，禁止抓取以防 SSRF
var privatePrefixes = []string{
	"192.168.", "10.",
	"172.16.", "172.17.", "172.18.", "172.19.",
	"172.20.", "172.21.", "172.22.", "172.23.",
	"172.24.", "172.25.", "172.26.", "172.27.",
	"172.28.", "172.29.", "172.30.", "172.31.",
}

// URL 校验 URL 格式并拦截内网目标
func URL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if u.Host == "" {
		return false
	}

	host := strings.ToLower(u.Host)

	// 本机回环
	if strings.Contains(host, "localhost") || strings.Contains(host, "127.") || strings.Contains(host, "::1") {
		return false
	}

	for _, prefix := range privatePrefixes {
		if strings.HasPrefix(host, prefix) {
			return false
		}
	}

	return true
}

package node

import (
	"net"
	"net/http"
	"strings"
)

// NormalizeBaseURL turns a bare host or host:port into an http URL, adding
// defPort when no port is given. Addresses that already carry a scheme are
// returned unchanged.
func NormalizeBaseURL(addr, defPort string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}

	host, rest := addr, ""
	if i := strings.IndexAny(addr, "/?"); i >= 0 {
		host, rest = addr[:i], addr[i:]
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = host + ":" + defPort
	}
	return "http://" + host + rest
}

// RequestBaseURL reconstructs the URL a request was addressed to, without its
// query, honoring X-Forwarded-Proto and X-Forwarded-Host from a proxy.
func RequestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = strings.TrimSpace(strings.Split(h, ",")[0])
	}
	if host == "" {
		return ""
	}
	path := r.URL.Path
	if path == "/" {
		path = ""
	}
	return scheme + "://" + host + path
}

// Package ratelimit derives client identities and enforces a per-identity
// fixed-window request budget.
package ratelimit

import (
	"net/http"
	"strings"
)

// ClientKeyHeader lets a caller pin its own bucket identity.
const ClientKeyHeader = "X-Client-Key"

// proxyIPHeaders are consulted, in order, when no platform IP is known.
var proxyIPHeaders = []string{
	"X-Nf-Client-Connection-Ip",
	"Cf-Connecting-Ip",
	"X-Forwarded-For",
	"X-Real-Ip",
}

// Key derives the rate-limit bucket for a request. The first present of
// these wins:
//
//	X-Client-Key            -> "ck:<key>"
//	platformIP              -> "ip:<ip>"
//	proxy chain IP headers  -> "ip:<ip>" (first X-Forwarded-For hop)
//	User-Agent + Accept     -> "ua:<ua>|<accept>"
//
// The result is never empty.
func Key(h http.Header, platformIP string) string {
	if ck := strings.TrimSpace(h.Get(ClientKeyHeader)); ck != "" {
		return "ck:" + ck
	}
	if ip := strings.TrimSpace(platformIP); ip != "" {
		return "ip:" + ip
	}
	for _, name := range proxyIPHeaders {
		v := h.Get(name)
		if name == "X-Forwarded-For" {
			v, _, _ = strings.Cut(v, ",")
		}
		if v = strings.TrimSpace(v); v != "" {
			return "ip:" + v
		}
	}
	return "ua:" + h.Get("User-Agent") + "|" + h.Get("Accept")
}

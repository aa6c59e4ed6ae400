package lnurlpay

import (
	"net/http"
	"strings"
)

// singleValueHeaders is consulted in order before falling back to the
// Forwarded/X-Forwarded-For chain and finally the peer socket, per §6.3.
var singleValueHeaders = []string{
	"CF-Connecting-IP",
	"CloudFront-Viewer-Address",
	"Fly-Client-IP",
	"X-Real-IP",
	"True-Client-IP",
}

// ResolveClientIP implements the request-logging client-IP resolution chain:
// a fixed set of single-value proxy headers, then the rightmost `Forwarded:
// for=`, then the rightmost `X-Forwarded-For` entry, then the TCP peer
// address. The first header that parses to a non-empty value wins.
func ResolveClientIP(r *http.Request) string {
	for _, name := range singleValueHeaders {
		if value := strings.TrimSpace(r.Header.Get(name)); value != "" {
			return stripPort(value)
		}
	}

	if forVal, ok := forwardedFor(r.Header.Get("Forwarded")); ok {
		return forVal
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		last := strings.TrimSpace(parts[len(parts)-1])
		if last != "" {
			return stripPort(last)
		}
	}

	return stripPort(r.RemoteAddr)
}

// Package device captures client metadata (IP, User-Agent, parsed device
// summary) for the security audit trail on recovery attempts.
package device

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"keyhaven/pkg/requestcontext"
)

// Middleware stores the client IP, the raw User-Agent, and a compact parsed
// device summary ("Firefox 131.0 / Linux") in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		ua := r.UserAgent()
		ctx := requestcontext.WithClientMetadata(r.Context(), ip, ua)
		ctx = requestcontext.WithDevice(ctx, Summarize(ua))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Summarize renders a short "browser version / os" description of a raw
// User-Agent string. Unknown agents come back as "unknown".
func Summarize(rawUA string) string {
	if rawUA == "" {
		return "unknown"
	}
	parsed := useragent.New(rawUA)
	name, version := parsed.Browser()
	if name == "" {
		return "unknown"
	}
	os := parsed.OS()
	if os == "" {
		os = "unknown"
	}
	if version == "" {
		return fmt.Sprintf("%s / %s", name, os)
	}
	return fmt.Sprintf("%s %s / %s", name, version, os)
}

// clientIP resolves the originating IP, preferring X-Forwarded-For when the
// request came through a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type requestMetaKey struct{}

// RequestMeta is the client information attached to audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// ClientIP extracts client ip from common headers or RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// WithRequestMeta stores the request's client details in ctx.
func WithRequestMeta(ctx context.Context, r *http.Request) context.Context {
	if r == nil {
		return ctx
	}
	return context.WithValue(ctx, requestMetaKey{}, RequestMeta{IP: ClientIP(r), UserAgent: r.UserAgent()})
}

// RequestMetaFromContext returns client details stored by WithRequestMeta.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if ctx == nil {
		return RequestMeta{}
	}
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// Middleware attaches RequestMeta to every request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRequestMeta(r.Context(), r)))
	})
}

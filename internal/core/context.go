package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "request_ip"
	ctxKeyUserAgent contextKey = "request_ua"
)

// ContextWithRequester records who made the request so ingest logs can
// name the uploader.
func ContextWithRequester(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyIPAddress, ip)
	return context.WithValue(ctx, ctxKeyUserAgent, userAgent)
}

// RequesterFromContext returns the address and user agent stored by
// ContextWithRequester, or empty strings.
func RequesterFromContext(ctx context.Context) (ip, userAgent string) {
	ip, _ = ctx.Value(ctxKeyIPAddress).(string)
	userAgent, _ = ctx.Value(ctxKeyUserAgent).(string)
	return ip, userAgent
}

// requesterFields returns the requester as log attributes.
func requesterFields(ctx context.Context) []any {
	ip, ua := RequesterFromContext(ctx)
	if ip == "" && ua == "" {
		return nil
	}
	return []any{"ip", ip, "user_agent", ua}
}

package aegis

import "context"

type clientIPKey struct{}
type userAgentKey struct{}

// WithClientIP attaches the request's client IP to ctx. Engine methods
// that bind or check tokens against an address read it back with
// [ClientIPFromContext].
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the client IP attached by [WithClientIP],
// or "" when none was attached.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// WithUserAgent attaches the request's user agent to ctx.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, ua)
}

// UserAgentFromContext returns the user agent attached by
// [WithUserAgent], or "" when none was attached.
func UserAgentFromContext(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentKey{}).(string)
	return ua
}

package httpclient

import (
	"context"
	"net/http"
)

type cookiesKey struct{}

// WithCookies attaches the cookie jar of an incoming browser request to ctx.
// Requests issued with such a context are authenticated from the jar.
func WithCookies(ctx context.Context, cookies []*http.Cookie) context.Context {
	return context.WithValue(ctx, cookiesKey{}, cookies)
}

func cookiesFrom(ctx context.Context) ([]*http.Cookie, bool) {
	cookies, ok := ctx.Value(cookiesKey{}).([]*http.Cookie)
	return cookies, ok
}

// TokenFrom extracts the named cookie's value from the jar attached to ctx.
func TokenFrom(ctx context.Context, name string) string {
	cookies, ok := cookiesFrom(ctx)
	if !ok {
		return ""
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

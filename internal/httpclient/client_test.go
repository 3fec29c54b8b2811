package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/metrics"
)

func captureServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var got http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = *r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestDo_AttachesBearerFromCookieJar(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{"success":true}`)
	c := New(srv.URL)

	ctx := WithCookies(context.Background(), []*http.Cookie{
		{Name: "theme", Value: "dark"},
		{Name: "access_token", Value: "tok-123"},
	})
	require.NoError(t, c.Get(ctx, "/courses", nil))

	assert.Equal(t, "Bearer tok-123", got.Header.Get("Authorization"))
}

func TestDo_NoTokenNoHeader(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
	}{
		{name: "no jar", ctx: context.Background()},
		{name: "jar without token", ctx: WithCookies(context.Background(), []*http.Cookie{{Name: "theme", Value: "dark"}})},
		{name: "empty token", ctx: WithCookies(context.Background(), []*http.Cookie{{Name: "access_token", Value: ""}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := captureServer(t, http.StatusOK, `{}`)
			require.NoError(t, New(srv.URL).Get(tt.ctx, "/courses", nil))
			_, present := got.Header["Authorization"]
			assert.False(t, present)
		})
	}
}

func TestDo_DefaultHeaders(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{}`)
	c := New(srv.URL, WithHeader("X-Client", "attendance-web"))

	require.NoError(t, c.Post(context.Background(), "/auth/logout", nil, nil))

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/auth/logout", got.URL.Path)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "attendance-web", got.Header.Get("X-Client"))
}

func TestDo_CustomTokenCookie(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{}`)
	c := New(srv.URL, WithTokenCookie("jwt"))

	ctx := WithCookies(context.Background(), []*http.Cookie{{Name: "jwt", Value: "abc"}})
	require.NoError(t, c.Get(ctx, "/auth/me", nil))
	assert.Equal(t, "Bearer abc", got.Header.Get("Authorization"))
}

func TestDo_EncodesBodyAndDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		json.NewEncoder(w).Encode(map[string]string{"echo": in["email"]}) //nolint:errcheck
	}))
	defer srv.Close()

	var out map[string]string
	err := New(srv.URL).Post(context.Background(), "/auth/login", map[string]string{"email": "a@b.c"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", out["echo"])
}

func TestDo_EmptyBodyIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var out map[string]any
	assert.NoError(t, New(srv.URL).Get(context.Background(), "/", &out))
}

func TestDo_HTTPErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "envelope error", status: http.StatusUnauthorized, body: `{"success":false,"error":"Invalid credentials"}`, wantMsg: "Invalid credentials"},
		{name: "envelope message", status: http.StatusForbidden, body: `{"success":false,"message":"Access denied"}`, wantMsg: "Access denied"},
		{name: "plain body", status: http.StatusBadGateway, body: "upstream down", wantMsg: "upstream down"},
		{name: "empty body", status: http.StatusNotFound, body: "", wantMsg: "Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := captureServer(t, tt.status, tt.body)
			err := New(srv.URL).Get(context.Background(), "/x", nil)
			require.Error(t, err)

			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.wantMsg, httpErr.Message)
			assert.True(t, IsStatus(err, tt.status))
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestDo_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := New(url).Get(context.Background(), "/courses", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do request")
	assert.Equal(t, 0, StatusCode(err))
	assert.False(t, IsStatus(err, http.StatusUnauthorized))
}

func TestDo_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	err := New(srv.URL, WithTimeout(50*time.Millisecond)).Get(context.Background(), "/slow", nil)
	require.Error(t, err)
}

func TestDo_RecordsMetrics(t *testing.T) {
	srv, _ := captureServer(t, http.StatusUnauthorized, `{"error":"nope"}`)
	m := metrics.New(prometheus.NewRegistry())

	_ = New(srv.URL, WithMetrics(m)).Get(context.Background(), "/auth/me", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("GET", "4xx")))
}

func TestTokenFrom(t *testing.T) {
	assert.Empty(t, TokenFrom(context.Background(), "access_token"))

	ctx := WithCookies(context.Background(), []*http.Cookie{{Name: "access_token", Value: "v"}})
	assert.Equal(t, "v", TokenFrom(ctx, "access_token"))
	assert.Empty(t, TokenFrom(ctx, "other"))
}

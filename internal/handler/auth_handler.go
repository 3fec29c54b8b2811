package handler

import (
	"context"
	"net/http"
	"sync"

	"attendance/internal/logging"
	"attendance/internal/query"
	"attendance/internal/session"
)

// LogoutHandler ends the browser's session locally right away and tells the
// API about it in the background.
type LogoutHandler struct {
	*Pages
	auth AuthAPI
	bg   sync.WaitGroup
}

func NewLogoutHandler(p *Pages, auth AuthAPI) *LogoutHandler {
	return &LogoutHandler{Pages: p, auth: auth}
}

func (h *LogoutHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)

	if err := h.store.Logout(w, r); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "failed to clear session", "error", err)
	}
	if sess.Token != "" {
		h.cache.Invalidate(query.Key{query.Owner(sess.Token)})
		h.revoke(ctx)
	}
	h.redirect(w, r, "/login?message=logged_out")
}

// revoke calls the API logout with the cookies of the request in ctx. The
// result only gets logged.
func (h *LogoutHandler) revoke(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	h.bg.Add(1)
	go func() {
		defer h.bg.Done()
		if err := h.auth.Logout(ctx); err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "server logout failed", "error", err)
		}
	}()
}

// Wait blocks until every background logout has finished.
func (h *LogoutHandler) Wait() {
	h.bg.Wait()
}

package handler

import (
	"net/http"
	"net/url"
	"strings"

	"attendance/internal/csrf"
	"attendance/internal/entity"
	"attendance/internal/httpclient"
	"attendance/internal/logging"
	"attendance/internal/repository"
	"attendance/internal/session"
)

var loginErrors = map[string]string{
	"empty_fields":        "Please enter your email and password.",
	"invalid_credentials": "Invalid email or password.",
	"unavailable":         "The attendance service is unavailable. Please try again later.",
	"session_error":       "Could not start your session. Please try again.",
	"invalid_form":        "Your login form expired. Please try again.",
}

var loginMessages = map[string]string{
	"logged_out": "You have been logged out.",
	"expired":    "Your session has expired. Please log in again.",
}

type loginView struct {
	Error   string
	Message string
	Email   string
	CSRF    string
}

type LoginHandler struct {
	*Pages
	auth AuthAPI
	csrf *csrf.Protector
}

func NewLoginHandler(p *Pages, auth AuthAPI, protector *csrf.Protector) *LoginHandler {
	return &LoginHandler{Pages: p, auth: auth, csrf: protector}
}

func (h *LoginHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if session.FromContext(r.Context()).IsAuthenticated() {
		h.redirect(w, r, "/dashboard")
		return
	}

	token, err := h.csrf.Token(w, r)
	if err != nil {
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "failed to issue form token", "error", err)
		h.renderError(w, r, http.StatusInternalServerError, "Could not load the login form. Please try again.")
		return
	}

	q := r.URL.Query()
	data := loginView{
		Error:   loginErrors[q.Get("error")],
		Message: loginMessages[q.Get("message")],
		Email:   q.Get("email"),
		CSRF:    token,
	}
	h.render(w, r, http.StatusOK, "login", h.page(r, "Login", data))
}

func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if err := h.csrf.Verify(r); err != nil {
		logger.InfoContext(ctx, "login form rejected", "error", err)
		h.loginFailed(w, r, "invalid_form", email)
		return
	}
	if email == "" || password == "" {
		h.loginFailed(w, r, "empty_fields", email)
		return
	}

	resp, err := h.auth.Login(ctx, entity.LoginRequest{Email: email, Password: password})
	if err != nil {
		code := "unavailable"
		switch {
		case httpclient.IsStatus(err, http.StatusUnauthorized), httpclient.IsStatus(err, http.StatusBadRequest):
			code = "invalid_credentials"
		case ctx.Err() != nil:
			// The browser went away.
			return
		default:
			logger.WarnContext(ctx, "login request failed", "error", err, "decode", repository.IsDecodeError(err))
		}
		h.loginFailed(w, r, code, email)
		return
	}

	// Login starts a fresh record, so the pending target is read first.
	target := h.store.PendingRedirect(r)
	if target == "" {
		target = "/dashboard"
	}
	if _, err := h.store.Login(w, r, resp.Data.AccessToken, resp.Data.User); err != nil {
		logger.ErrorContext(ctx, "failed to write session", "error", err)
		h.loginFailed(w, r, "session_error", email)
		return
	}
	logger.InfoContext(ctx, "user logged in", "user_id", resp.Data.User.ID, "role", resp.Data.User.Role)
	h.redirect(w, r, target)
}

func (h *LoginHandler) loginFailed(w http.ResponseWriter, r *http.Request, code, email string) {
	q := url.Values{}
	q.Set("error", code)
	if email != "" {
		q.Set("email", email)
	}
	h.redirect(w, r, "/login?"+q.Encode())
}

// Package handler contains the page controllers of the web front-end.
package handler

import (
	"context"
	"net/http"

	"attendance/internal/entity"
	"attendance/internal/httpclient"
	"attendance/internal/logging"
	"attendance/internal/query"
	"attendance/internal/session"
	"attendance/internal/templates"
)

// AuthAPI is the part of the attendance API that deals with identity.
type AuthAPI interface {
	Login(ctx context.Context, req entity.LoginRequest) (*entity.LoginResponse, error)
	GetProfile(ctx context.Context) (*entity.User, error)
	Logout(ctx context.Context) error
}

// CourseAPI is the part of the attendance API that serves courses.
type CourseAPI interface {
	GetCourses(ctx context.Context, page, perPage int) (*entity.CoursesResponse, error)
	GetCourse(ctx context.Context, id int) (*entity.Course, error)
}

// Pages bundles what every controller needs to read the session, use the
// query cache and render.
type Pages struct {
	store *session.Store
	cache *query.Client
	views *templates.Renderer
}

func NewPages(store *session.Store, cache *query.Client, views *templates.Renderer) *Pages {
	return &Pages{store: store, cache: cache, views: views}
}

func (p *Pages) page(r *http.Request, title string, data any) templates.Page {
	sess := session.FromContext(r.Context())
	return templates.Page{Title: title, User: sess.User, Data: data}
}

func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, name string, page templates.Page) {
	if err := p.views.Render(w, status, name, page); err != nil {
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "render failed", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type errorView struct {
	Status  int
	Message string
}

func (p *Pages) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	p.render(w, r, status, "error", p.page(r, http.StatusText(status), errorView{Status: status, Message: message}))
}

// expire handles a 401 from the API: the browser's session is cleared, its
// cached queries are dropped and it is sent to the login page.
func (p *Pages) expire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	if err := p.store.Logout(w, r); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "failed to clear expired session", "error", err)
	}
	if sess.Token != "" {
		p.cache.Invalidate(query.Key{query.Owner(sess.Token)})
	}
	p.redirect(w, r, "/login?message=expired")
}

// fail renders an API error for a page that needed the data to show
// anything at all.
func (p *Pages) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch httpclient.StatusCode(err) {
	case http.StatusUnauthorized:
		p.expire(w, r)
	case http.StatusForbidden:
		p.renderError(w, r, http.StatusForbidden, "You do not have access to this page.")
	case http.StatusNotFound:
		p.renderError(w, r, http.StatusNotFound, "This page does not exist.")
	default:
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "api request failed", "error", err)
		p.renderError(w, r, http.StatusBadGateway, "The attendance service is unavailable. Please try again later.")
	}
}

func (p *Pages) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, p.views.URL(path), http.StatusSeeOther)
}

// ownerKey scopes a query key to the current browser's token.
func ownerKey(r *http.Request, parts ...string) query.Key {
	sess := session.FromContext(r.Context())
	return append(query.Key{query.Owner(sess.Token)}, parts...)
}

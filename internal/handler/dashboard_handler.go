package handler

import (
	"context"
	"net/http"
	"strconv"

	"attendance/internal/entity"
	"attendance/internal/httpclient"
	"attendance/internal/logging"
	"attendance/internal/query"
	"attendance/internal/repository"
	"attendance/internal/session"
)

// coursesView feeds the "courses" block of the dashboard, which is rendered
// both inside the page and on its own as a fragment.
type coursesView struct {
	Role    entity.Role
	Courses []entity.Course
	Loading bool
}

type DashboardHandler struct {
	*Pages
	courses CourseAPI
}

func NewDashboardHandler(p *Pages, courses CourseAPI) *DashboardHandler {
	return &DashboardHandler{Pages: p, courses: courses}
}

// Dashboard renders the ready state when the course list is cached and the
// loading state otherwise. In the loading state the fetch is already running
// and the page pulls the Courses fragment once it is done.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	key := coursesKey(r)

	st, ok := h.cache.Peek(key)
	if ok && httpclient.IsStatus(st.Err, http.StatusUnauthorized) {
		h.expire(w, r)
		return
	}

	view := coursesView{Role: sess.User.Role}
	if ok && st.HasData() {
		courses, err := query.Get(ctx, h.cache, key, h.fetchCourses)
		if err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "failed to read cached courses", "error", err)
		}
		view.Courses = courses
	} else {
		h.cache.Prefetch(ctx, key, func(ctx context.Context) (any, error) {
			return h.fetchCourses(ctx)
		})
		view.Loading = true
	}

	page := h.page(r, "Dashboard", view)
	page.Refresh = view.Loading
	h.render(w, r, http.StatusOK, "dashboard", page)
}

// Courses waits for the course list and renders the courses block alone.
func (h *DashboardHandler) Courses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)

	courses, err := query.Get(ctx, h.cache, coursesKey(r), h.fetchCourses)
	if err != nil {
		if httpclient.IsStatus(err, http.StatusUnauthorized) {
			h.expire(w, r)
			return
		}
		logging.FromContext(ctx).WarnContext(ctx, "failed to load courses", "error", err)
		courses = nil
	}

	view := coursesView{Role: sess.User.Role, Courses: courses}
	if err := h.views.Fragment(w, http.StatusOK, "dashboard", "courses", view); err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "render failed", "page", "dashboard", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *DashboardHandler) fetchCourses(ctx context.Context) ([]entity.Course, error) {
	resp, err := h.courses.GetCourses(ctx, repository.DefaultPage, repository.DefaultPerPage)
	if err != nil {
		return nil, err
	}
	return resp.Courses(), nil
}

func coursesKey(r *http.Request) query.Key {
	return ownerKey(r, "courses", strconv.Itoa(repository.DefaultPage), strconv.Itoa(repository.DefaultPerPage))
}

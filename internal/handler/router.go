package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendance/internal/csrf"
	"attendance/internal/metrics"
	"attendance/internal/middleware"
	"attendance/internal/query"
	"attendance/internal/session"
	"attendance/internal/templates"
)

type Deps struct {
	Auth     AuthAPI
	CSRF     *csrf.Protector
	Courses  CourseAPI
	Store    *session.Store
	Cache    *query.Client
	Views    *templates.Renderer
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Mode     string
	// BasePath mounts every route under a prefix such as "/attendance".
	BasePath string
}

// Router is the complete HTTP handler of the front-end.
type Router struct {
	http.Handler
	logout *LogoutHandler
}

func NewRouter(d Deps) *Router {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	p := NewPages(d.Store, d.Cache, d.Views)

	index := NewIndexHandler(p)
	login := NewLoginHandler(p, d.Auth, d.CSRF)
	logout := NewLogoutHandler(p, d.Auth)
	dashboard := NewDashboardHandler(p, d.Courses)
	course := NewCourseHandler(p, d.Courses)
	profile := NewProfileHandler(p, d.Auth)

	requireAuth := middleware.RequireAuth(d.Store, d.Views.URL("/login"))
	requireSession := middleware.RequireSession(d.Views.URL("/login"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", index.Index)
	mux.HandleFunc("GET /login", login.LoginPage)
	mux.HandleFunc("POST /login", login.Login)
	mux.HandleFunc("POST /logout", logout.Logout)
	mux.Handle("GET /dashboard", requireAuth(http.HandlerFunc(dashboard.Dashboard)))
	mux.Handle("GET /dashboard/courses", requireSession(http.HandlerFunc(dashboard.Courses)))
	mux.Handle("GET /courses/{id}", requireAuth(http.HandlerFunc(course.Course)))
	mux.Handle("GET /profile", requireAuth(http.HandlerFunc(profile.Profile)))
	mux.Handle("GET /healthz", Health(d.Mode))
	if d.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	h := middleware.Chain(mux,
		middleware.Logger(d.Logger),
		middleware.RequestID,
		middleware.AccessLog,
		middleware.Recover,
		middleware.NoCache,
		d.Store.Middleware,
		middleware.Metrics(d.Metrics),
	)

	return &Router{Handler: mount(strings.TrimRight(d.BasePath, "/"), h), logout: logout}
}

// Wait blocks until background work started by requests has finished. Call
// it after the server has stopped accepting requests.
func (rt *Router) Wait() {
	rt.logout.Wait()
}

func mount(base string, h http.Handler) http.Handler {
	if base == "" {
		return h
	}
	root := http.NewServeMux()
	root.Handle(base+"/", http.StripPrefix(base, h))
	root.Handle(base, http.RedirectHandler(base+"/", http.StatusMovedPermanently))
	return root
}

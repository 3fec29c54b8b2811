package handler

import (
	"context"
	"net/http"
	"strconv"

	"attendance/internal/entity"
	"attendance/internal/query"
)

type CourseHandler struct {
	*Pages
	courses CourseAPI
}

func NewCourseHandler(p *Pages, courses CourseAPI) *CourseHandler {
	return &CourseHandler{Pages: p, courses: courses}
}

func (h *CourseHandler) Course(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 1 {
		h.renderError(w, r, http.StatusNotFound, "This page does not exist.")
		return
	}

	key := ownerKey(r, "course", strconv.Itoa(id))
	course, err := query.Get(r.Context(), h.cache, key, func(ctx context.Context) (*entity.Course, error) {
		return h.courses.GetCourse(ctx, id)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "course", h.page(r, course.Name, course))
}

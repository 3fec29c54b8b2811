package entity

import "strconv"

type Course struct {
	ID            int    `json:"id" validate:"required"`
	Name          string `json:"name"`
	Code          string `json:"code"`
	Description   string `json:"description,omitempty"`
	TeacherID     int    `json:"teacher_id,omitempty"`
	Semester      string `json:"semester"`
	Year          int    `json:"year"`
	EnrolledCount int    `json:"enrolled_count,omitempty"`
}

// Term is the "semester year" label shown on course cards.
func (c Course) Term() string {
	switch {
	case c.Semester == "" && c.Year == 0:
		return ""
	case c.Year == 0:
		return c.Semester
	case c.Semester == "":
		return strconv.Itoa(c.Year)
	}
	return c.Semester + " " + strconv.Itoa(c.Year)
}

type CoursePage struct {
	Items   []Course `json:"items"`
	Total   int      `json:"total"`
	Pages   int      `json:"pages"`
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
	HasNext bool     `json:"has_next"`
	HasPrev bool     `json:"has_prev"`
}

type CoursesResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    CoursePage `json:"data"`
}

// Courses returns the decoded items, never nil.
func (r *CoursesResponse) Courses() []Course {
	if r == nil || r.Data.Items == nil {
		return []Course{}
	}
	return r.Data.Items
}

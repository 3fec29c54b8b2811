package repository

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"attendance/internal/entity"
	"attendance/internal/httpclient"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 20
)

type CourseRepository struct {
	client *httpclient.Client
}

func NewCourseRepository(client *httpclient.Client) *CourseRepository {
	return &CourseRepository{client: client}
}

// GetCourses fetches one page of the courses visible to the current user.
// Non-positive page or perPage fall back to the defaults.
func (r *CourseRepository) GetCourses(ctx context.Context, page, perPage int) (*entity.CoursesResponse, error) {
	if page < 1 {
		page = DefaultPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	var resp entity.CoursesResponse
	if err := r.client.Get(ctx, "/courses?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("repository.GetCourses: %w", err)
	}
	if resp.Data.Items == nil {
		resp.Data.Items = []entity.Course{}
	}
	return &resp, nil
}

func (r *CourseRepository) GetCourse(ctx context.Context, id int) (*entity.Course, error) {
	var resp struct {
		Success bool          `json:"success"`
		Data    entity.Course `json:"data"`
	}
	if err := r.client.Get(ctx, "/courses/"+strconv.Itoa(id), &resp); err != nil {
		return nil, fmt.Errorf("repository.GetCourse: %w", err)
	}
	if err := checkResponse("repository.GetCourse", resp.Data); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

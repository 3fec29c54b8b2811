package query

import "time"

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "idle"
}

// State is a snapshot of one cache entry. Data survives a failed refetch,
// so Status can be StatusError while HasData is true.
type State struct {
	Data      any
	Err       error
	Status    Status
	UpdatedAt time.Time
	Fetching  bool
}

func (s State) HasData() bool {
	return !s.UpdatedAt.IsZero()
}

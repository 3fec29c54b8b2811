package entity

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

type User struct {
	ID       int    `json:"id" validate:"required"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     Role   `json:"role" validate:"oneof=admin teacher student"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginData struct {
	AccessToken string `json:"access_token" validate:"required"`
	User        User   `json:"user"`
}

type LoginResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Data    LoginData `json:"data"`
}

package account

import "time"

const (
	RoleGeneral = "general"
	RoleCoach   = "coach"
	RoleAdmin   = "admin"
)

// UserInfo is the caller's profile from /auth/me.
type UserInfo struct {
	ID          int        `json:"id"`
	UserID      string     `json:"user_id"`
	UserName    string     `json:"user_name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLogined *time.Time `json:"last_logined,omitempty"`
}

func (u UserInfo) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// AdminStatus is the outcome of an admin permission check.
type AdminStatus string

const (
	AdminAllowed   AdminStatus = "allowed"
	AdminForbidden AdminStatus = "forbidden"
)

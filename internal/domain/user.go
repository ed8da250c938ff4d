package domain

import "time"

const (
	RoleClient    = "client"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// Roles lists every role a user can register with.
var Roles = []string{RoleClient, RoleAdmin, RoleModerator}

func IsValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Photo     string    `json:"photo"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserCredentials is the minimal projection used to check a password.
type UserCredentials struct {
	ID       string
	Password string
}

// UserUpdate carries the editable profile fields. Empty strings are left untouched.
type UserUpdate struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

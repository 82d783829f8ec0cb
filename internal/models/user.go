package models

import "time"

type User struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
	RoleKitchen = "kitchen"
)

func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleCashier, RoleKitchen:
		return true
	default:
		return false
	}
}

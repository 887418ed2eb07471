package httpdto

import "github.com/brickly26/iMessage/internal/domain/user"

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

type AuthResponse struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

func FromAuthUser(u user.User) AuthUser {
	return AuthUser{
		ID:       u.ID.String(),
		Email:    u.Email,
		Username: u.Username.String,
	}
}

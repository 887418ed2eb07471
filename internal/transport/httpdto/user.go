package httpdto

import "github.com/brickly26/iMessage/internal/services"

type ClaimUsernameRequest struct {
	Username string `json:"username" binding:"required"`
}

type SearchedUser struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Relationship string `json:"relationship"`
}

type SearchUsersResponse struct {
	Users []SearchedUser `json:"users"`
}

func FromUserProjectionSlice(items []services.UserProjection) []SearchedUser {
	out := make([]SearchedUser, 0, len(items))
	for _, item := range items {
		out = append(out, SearchedUser{
			ID:           item.ID.String(),
			Username:     item.Username,
			Relationship: string(item.Relationship),
		})
	}
	return out
}

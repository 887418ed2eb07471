package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brickly26/iMessage/internal/services"
	"github.com/brickly26/iMessage/internal/transport/httpdto"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) ClaimUsername(c *gin.Context) {
	var req httpdto.ClaimUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if err := h.service.ClaimUsername(c.Request.Context(), userID, req.Username); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *UserHandler) Search(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	query := c.Query("username")
	var (
		items []services.UserProjection
		err   error
	)
	if c.Query("friends") == "true" {
		items, err = h.service.SearchFriends(c.Request.Context(), userID, query)
	} else {
		items, err = h.service.SearchUsers(c.Request.Context(), userID, query)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.SearchUsersResponse{
		Users: httpdto.FromUserProjectionSlice(items),
	}))
}

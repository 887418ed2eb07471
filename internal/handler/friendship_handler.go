package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brickly26/iMessage/internal/domain/friendship"
	"github.com/brickly26/iMessage/internal/services"
	"github.com/brickly26/iMessage/internal/transport/httpdto"
	apperrors "github.com/brickly26/iMessage/pkg/errors"
)

type FriendshipHandler struct {
	service *services.FriendshipService
}

func NewFriendshipHandler(service *services.FriendshipService) *FriendshipHandler {
	return &FriendshipHandler{service: service}
}

func (h *FriendshipHandler) Send(c *gin.Context) {
	var req httpdto.SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid receiver id", "INVALID_REQUEST"))
		return
	}

	senderID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	request, err := h.service.SendRequest(c.Request.Context(), senderID, receiverID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FriendRequestResponse{
		Request: h.service.RequestView(c.Request.Context(), request),
	}))
}

func (h *FriendshipHandler) Respond(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.RespondFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var choice friendship.RequestStatus
	switch strings.ToUpper(req.Choice) {
	case "ACCEPT", string(friendship.StatusAccepted):
		choice = friendship.StatusAccepted
	case "DECLINE", string(friendship.StatusDeclined):
		choice = friendship.StatusDeclined
	default:
		_ = c.Error(apperrors.ErrInvalidChoice)
		return
	}

	request, err := h.service.Respond(c.Request.Context(), userID, requestID, choice)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FriendRequestResponse{
		Request: h.service.RequestView(c.Request.Context(), request),
	}))
}

func (h *FriendshipHandler) ListReceived(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	requests, err := h.service.ListReceivedRequests(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListFriendRequestsResponse{
		Requests: requests,
	}))
}

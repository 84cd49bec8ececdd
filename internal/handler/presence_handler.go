package handler

import (
	"net/http"

	"forum-chat/internal/services"
	"forum-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	users *services.UserService
}

func NewPresenceHandler(users *services.UserService) *PresenceHandler {
	return &PresenceHandler{users: users}
}

// Online returns the profiles of every currently connected user.
func (h *PresenceHandler) Online(c *gin.Context) {
	if _, ok := services.UserIDFromContext(c.Request.Context()); !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	profiles, err := h.users.OnlineUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"users": profiles}))
}

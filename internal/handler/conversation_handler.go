package handler

import (
	"net/http"
	"time"

	"forum-chat/internal/domain/conversation"
	"forum-chat/internal/services"
	"forum-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	service *services.DeliveryService
}

func NewConversationHandler(service *services.DeliveryService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	participantID, err := parseUUID(req.ParticipantID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid participant_id", "INVALID_REQUEST"))
		return
	}

	view, err := h.service.FindOrCreateConversation(c.Request.Context(), userID, participantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	page, pageSize, ok := paging(c)
	if !ok {
		return
	}

	views, total, err := h.service.ListConversations(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PagedResponse[services.ConversationView]{
		Items:    views,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}))
}

func (h *ConversationHandler) Messages(c *gin.Context) {
	conversationID, userID, ok := conversationAndUser(c)
	if !ok {
		return
	}

	page, pageSize, ok := paging(c)
	if !ok {
		return
	}

	views, err := h.service.ListMessages(c.Request.Context(), conversationID, userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"messages": views}))
}

func (h *ConversationHandler) MarkAllRead(c *gin.Context) {
	conversationID, userID, ok := conversationAndUser(c)
	if !ok {
		return
	}
	count, err := h.service.MarkConversationRead(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkedCountResponse{Count: count}))
}

func (h *ConversationHandler) DeleteAllMessages(c *gin.Context) {
	conversationID, userID, ok := conversationAndUser(c)
	if !ok {
		return
	}
	count, err := h.service.DeleteAllMessagesForUser(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkedCountResponse{Count: count}))
}

func (h *ConversationHandler) UpdateAcceptanceSettings(c *gin.Context) {
	conversationID, userID, ok := conversationAndUser(c)
	if !ok {
		return
	}
	var req httpdto.AcceptanceSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.service.UpdateAcceptanceSettings(c.Request.Context(), conversationID, userID, req.RequireAcceptance, req.AutoAcceptKnown); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"conversation_id": conversationID}))
}

func (h *ConversationHandler) SetStatus(c *gin.Context) {
	conversationID, userID, ok := conversationAndUser(c)
	if !ok {
		return
	}
	var req httpdto.ConversationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.service.SetConversationStatus(c.Request.Context(), conversationID, userID, conversation.Status(req.Status)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"conversation_id": conversationID, "status": req.Status}))
}

func (h *ConversationHandler) UpdateNotificationSettings(c *gin.Context) {
	conversationID, userID, ok := conversationAndUser(c)
	if !ok {
		return
	}
	var req httpdto.NotificationSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	var mutedUntil *time.Time
	if req.MutedUntil != nil {
		parsed, err := time.Parse(time.RFC3339, *req.MutedUntil)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid muted_until", "INVALID_REQUEST"))
			return
		}
		mutedUntil = &parsed
	}
	if err := h.service.UpdateNotificationSettings(c.Request.Context(), conversationID, userID, req.NotifyEnabled, mutedUntil); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"conversation_id": conversationID}))
}

func conversationAndUser(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return uuid.Nil, uuid.Nil, false
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return uuid.Nil, uuid.Nil, false
	}
	return conversationID, userID, true
}

func paging(c *gin.Context) (int, int, bool) {
	page, err := parseInt(c.Query("page"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid page", "INVALID_REQUEST"))
		return 0, 0, false
	}
	pageSize, err := parseInt(c.Query("page_size"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid page_size", "INVALID_REQUEST"))
		return 0, 0, false
	}
	return page, pageSize, true
}

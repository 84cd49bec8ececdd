package handler

import (
	"net/http"
	"strconv"

	"forum-chat/internal/domain/message"
	"forum-chat/internal/services"
	"forum-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	service *services.DeliveryService
}

func NewMessageHandler(service *services.DeliveryService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	receiverID, err := parseUUID(req.ReceiverID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid receiver_id", "INVALID_REQUEST"))
		return
	}

	attachments := make([]message.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, message.Attachment{
			Name: a.Name,
			URL:  a.URL,
			Size: a.Size,
			Mime: a.Mime,
		})
	}

	view, err := h.service.Send(c.Request.Context(), services.SendInput{
		SenderID:    userID,
		ReceiverID:  receiverID,
		Content:     req.Content,
		Type:        message.Type(req.Type),
		Attachments: attachments,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(view))
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	messageID, userID, ok := messageAndUser(c)
	if !ok {
		return
	}
	if err := h.service.MarkMessageRead(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message_id": messageID}))
}

func (h *MessageHandler) Accept(c *gin.Context) {
	messageID, userID, ok := messageAndUser(c)
	if !ok {
		return
	}
	view, err := h.service.AcceptMessage(c.Request.Context(), messageID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

func (h *MessageHandler) Reject(c *gin.Context) {
	messageID, userID, ok := messageAndUser(c)
	if !ok {
		return
	}
	if err := h.service.RejectMessage(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message_id": messageID}))
}

func (h *MessageHandler) Recall(c *gin.Context) {
	messageID, userID, ok := messageAndUser(c)
	if !ok {
		return
	}
	if err := h.service.RecallMessage(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message_id": messageID}))
}

func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, userID, ok := messageAndUser(c)
	if !ok {
		return
	}
	var req httpdto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	view, err := h.service.EditMessage(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, userID, ok := messageAndUser(c)
	if !ok {
		return
	}
	if err := h.service.DeleteMessage(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message_id": messageID}))
}

func (h *MessageHandler) PendingCount(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	count, err := h.service.PendingCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PendingCountResponse{PendingCount: count}))
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadCountResponse{UnreadCount: count}))
}

// messageAndUser extracts the :id path parameter and the authenticated user,
// writing the error response itself when either is missing.
func messageAndUser(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_REQUEST"))
		return uuid.Nil, uuid.Nil, false
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return uuid.Nil, uuid.Nil, false
	}
	return messageID, userID, true
}

func respondError(c *gin.Context, err error) {
	c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), services.ErrorCode(err)))
}

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(value)
}

func parseInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

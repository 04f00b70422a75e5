package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messenger/internal/domain"
	"messenger/internal/service"
	"messenger/pkg/logger"
)

type MessageHandler struct {
	messageService *service.MessageService
	log            logger.Logger
}

func NewMessageHandler(messageService *service.MessageService, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		log:            log,
	}
}

type SendMessageRequest struct {
	Content  string             `json:"content"`
	Type     domain.MessageType `json:"type,omitempty"`
	ReplyTo  string             `json:"reply_to,omitempty"`
	MediaURL string             `json:"media_url,omitempty"`
	FileName string             `json:"file_name,omitempty"`
	FileSize int64              `json:"file_size,omitempty"`
	Duration int                `json:"duration,omitempty"`
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageService.Send(c.Request.Context(), c.Param("id"), currentUserID(c), service.SendInput{
		Content:  req.Content,
		Type:     req.Type,
		ReplyTo:  req.ReplyTo,
		MediaURL: req.MediaURL,
		FileName: req.FileName,
		FileSize: req.FileSize,
		Duration: req.Duration,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) List(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)

	messages, err := h.messageService.List(c.Request.Context(), c.Param("id"), currentUserID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *MessageHandler) Edit(c *gin.Context) {
	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageService.Edit(c.Request.Context(), c.Param("id"), c.Param("messageId"), currentUserID(c), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// Delete удаляет для всех либо только для себя, в зависимости от
// параметра for_everyone
func (h *MessageHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")
	messageID := c.Param("messageId")
	userID := currentUserID(c)

	var err error
	if c.DefaultQuery("for_everyone", "true") == "true" {
		err = h.messageService.DeleteForEveryone(ctx, chatID, messageID, userID)
	} else {
		err = h.messageService.DeleteForMe(ctx, chatID, messageID, userID)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type ReactRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func (h *MessageHandler) React(c *gin.Context) {
	var req ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageService.React(c.Request.Context(), c.Param("id"), c.Param("messageId"), currentUserID(c), req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	if err := h.messageService.MarkRead(c.Request.Context(), c.Param("id"), c.Param("messageId"), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

func (h *MessageHandler) MarkDelivered(c *gin.Context) {
	if err := h.messageService.MarkDelivered(c.Request.Context(), c.Param("id"), c.Param("messageId"), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "delivered"})
}

func (h *MessageHandler) Pin(c *gin.Context) {
	if err := h.messageService.Pin(c.Request.Context(), c.Param("id"), c.Param("messageId"), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "pinned"})
}

func (h *MessageHandler) Unpin(c *gin.Context) {
	if err := h.messageService.Unpin(c.Request.Context(), c.Param("id"), c.Param("messageId"), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "unpinned"})
}

type ForwardRequest struct {
	TargetChatID string `json:"target_chat_id" binding:"required"`
}

func (h *MessageHandler) Forward(c *gin.Context) {
	var req ForwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageService.Forward(c.Request.Context(), c.Param("id"), c.Param("messageId"), req.TargetChatID, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

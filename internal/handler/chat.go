package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messenger/internal/domain"
	"messenger/internal/service"
	"messenger/pkg/logger"
)

type ChatHandler struct {
	chatService *service.ChatService
	log         logger.Logger
}

func NewChatHandler(chatService *service.ChatService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		log:         log,
	}
}

type CreateChatRequest struct {
	Kind        domain.ChatKind `json:"kind" binding:"required"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	MemberIDs   []string        `json:"member_ids,omitempty"`
}

func (h *ChatHandler) Create(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	ctx := c.Request.Context()

	var (
		chat *domain.Chat
		err  error
	)
	switch req.Kind {
	case domain.ChatKindDirect:
		chat, err = h.chatService.CreateDirect(ctx, userID, req.UserID)
	case domain.ChatKindGroup:
		chat, err = h.chatService.CreateGroup(ctx, userID, req.Name, req.MemberIDs)
	case domain.ChatKindChannel:
		chat, err = h.chatService.CreateChannel(ctx, userID, req.Name, req.Description, req.MemberIDs)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown chat kind"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, chat)
}

func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.chatService.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *ChatHandler) GetByID(c *gin.Context) {
	chat, err := h.chatService.Get(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, chat)
}

type UpdateChatRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
}

func (h *ChatHandler) Update(c *gin.Context) {
	var req UpdateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chatService.UpdateInfo(c.Request.Context(), c.Param("id"), currentUserID(c), req.Name, req.Description, req.Avatar); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type AddMembersRequest struct {
	MemberIDs []string `json:"member_ids" binding:"required"`
}

func (h *ChatHandler) AddMembers(c *gin.Context) {
	var req AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chatService.AddMembers(c.Request.Context(), c.Param("id"), currentUserID(c), req.MemberIDs); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "added"})
}

func (h *ChatHandler) RemoveMember(c *gin.Context) {
	if err := h.chatService.RemoveMember(c.Request.Context(), c.Param("id"), currentUserID(c), c.Param("userId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *ChatHandler) Join(c *gin.Context) {
	if err := h.chatService.Join(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "joined"})
}

func (h *ChatHandler) Leave(c *gin.Context) {
	if err := h.chatService.Leave(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

type BanRequest struct {
	Reason string     `json:"reason,omitempty"`
	Until  *time.Time `json:"until,omitempty"`
}

func (h *ChatHandler) Ban(c *gin.Context) {
	var req BanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := h.chatService.Ban(c.Request.Context(), c.Param("id"), currentUserID(c), c.Param("userId"), req.Reason, req.Until); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "banned"})
}

func (h *ChatHandler) Unban(c *gin.Context) {
	if err := h.chatService.Unban(c.Request.Context(), c.Param("id"), currentUserID(c), c.Param("userId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "unbanned"})
}

type PromoteRequest struct {
	Rights domain.PermissionSet `json:"rights,omitempty"`
}

func (h *ChatHandler) Promote(c *gin.Context) {
	var req PromoteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := h.chatService.PromoteAdmin(c.Request.Context(), c.Param("id"), currentUserID(c), c.Param("userId"), req.Rights); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "promoted"})
}

func (h *ChatHandler) Demote(c *gin.Context) {
	if err := h.chatService.DemoteAdmin(c.Request.Context(), c.Param("id"), currentUserID(c), c.Param("userId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "demoted"})
}

func (h *ChatHandler) SetDefaultPermissions(c *gin.Context) {
	var req domain.MemberPermissions
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chatService.SetDefaultPermissions(c.Request.Context(), c.Param("id"), currentUserID(c), req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *ChatHandler) SetRestrictions(c *gin.Context) {
	var req domain.MemberRestrictions
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chatService.SetMemberRestrictions(c.Request.Context(), c.Param("id"), currentUserID(c), c.Param("userId"), &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

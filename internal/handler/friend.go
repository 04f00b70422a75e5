package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger/internal/domain"
	"messenger/internal/service"
	"messenger/pkg/logger"
)

type FriendHandler struct {
	friendService *service.FriendService
	log           logger.Logger
}

func NewFriendHandler(friendService *service.FriendService, log logger.Logger) *FriendHandler {
	return &FriendHandler{
		friendService: friendService,
		log:           log,
	}
}

type SendFriendRequestRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

func (h *FriendHandler) SendRequest(c *gin.Context) {
	var req SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID == "" && req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id or username is required"})
		return
	}

	var (
		request *domain.FriendRequest
		err     error
	)
	if req.UserID != "" {
		request, err = h.friendService.SendRequest(c.Request.Context(), currentUserID(c), req.UserID)
	} else {
		request, err = h.friendService.SendRequestByUsername(c.Request.Context(), currentUserID(c), req.Username)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

func (h *FriendHandler) Accept(c *gin.Context) {
	if err := h.friendService.Accept(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (h *FriendHandler) Reject(c *gin.Context) {
	if err := h.friendService.Reject(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (h *FriendHandler) ListRequests(c *gin.Context) {
	requests, err := h.friendService.ListReceived(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (h *FriendHandler) ListFriends(c *gin.Context) {
	friends, err := h.friendService.ListFriends(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

func (h *FriendHandler) Block(c *gin.Context) {
	if err := h.friendService.Block(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "blocked"})
}

func (h *FriendHandler) Unblock(c *gin.Context) {
	if err := h.friendService.Unblock(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "unblocked"})
}

func (h *FriendHandler) ListBlocked(c *gin.Context) {
	blocked, err := h.friendService.ListBlocked(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"blocked": blocked})
}

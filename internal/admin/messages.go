package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avendano/forecourt/internal/store"
)

type sendRequest struct {
	JID     string `json:"jid" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// handleSend delivers a one-off message to a single counterparty.
func (s *Server) handleSend(c *gin.Context) {
	if s.messenger == nil {
		fail(c, http.StatusServiceUnavailable, "messaging gateway not running")
		return
	}

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "jid and message are required")
		return
	}

	if err := s.messenger.Deliver(c.Request.Context(), req.JID, req.Message); err != nil {
		s.serverError(c, err)
		return
	}
	ok(c, gin.H{"sent": req.JID})
}

type broadcastRequest struct {
	JIDs    []string `json:"jids"`
	IsGroup *bool    `json:"isGroup"`
	Tags    []string `json:"tags"`
	Message string   `json:"message" binding:"required"`
}

// handleBroadcast fans a message out to an explicit JID list, or to the
// allow-list filtered by group flag and tags when no list is given.
func (s *Server) handleBroadcast(c *gin.Context) {
	if s.messenger == nil {
		fail(c, http.StatusServiceUnavailable, "messaging gateway not running")
		return
	}

	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "message is required")
		return
	}

	ctx := c.Request.Context()
	if len(req.JIDs) > 0 {
		ok(c, s.messenger.Broadcast(ctx, req.JIDs, req.Message))
		return
	}

	results, err := s.messenger.BroadcastFiltered(ctx, store.BroadcastFilter{
		IsGroup: req.IsGroup,
		Tags:    req.Tags,
	}, req.Message)
	if err != nil {
		s.serverError(c, err)
		return
	}
	ok(c, results)
}

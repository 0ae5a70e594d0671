package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avendano/forecourt/internal/models"
	"github.com/avendano/forecourt/internal/store"
)

// handleConversationList returns the latest conversation per counterparty,
// newest first, with contact details attached.
func (s *Server) handleConversationList(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !validConversationStatus(status) {
		fail(c, http.StatusBadRequest, "invalid status")
		return
	}
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 10)

	rows, total, err := s.convs.ListRecent(status, page, limit)
	if err != nil {
		s.serverError(c, err)
		return
	}

	type row struct {
		Conversation models.Conversation `json:"conversation"`
		Contact      *models.Contact     `json:"contact,omitempty"`
	}
	out := make([]row, len(rows))
	for i, r := range rows {
		out[i] = row{Conversation: r.Conversation, Contact: r.Contact}
	}
	ok(c, gin.H{"conversations": out, "total": total, "page": page, "limit": limit})
}

// handleConversationHistory returns a counterparty's conversations with all
// turns, newest conversation first.
func (s *Server) handleConversationHistory(c *gin.Context) {
	jid := c.Param("jid")
	limit := intQuery(c, "limit", 20)

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "before must be RFC 3339")
			return
		}
		before = &t
	}

	convs, err := s.convs.ListForJID(jid, limit, before)
	if err != nil {
		s.serverError(c, err)
		return
	}
	ok(c, convs)
}

type conversationStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// handleConversationStatus lets an operator force a conversation's status,
// typically to end or un-escalate one.
func (s *Server) handleConversationStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid conversation id")
		return
	}

	var req conversationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validConversationStatus(req.Status) {
		fail(c, http.StatusBadRequest, "status must be active, ended, or escalated")
		return
	}

	conv, err := s.convs.Get(uint(id))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.serverError(c, err)
		return
	}

	if err := s.convs.UpdateStatus(conv, req.Status); err != nil {
		if errors.Is(err, store.ErrConflict) {
			fail(c, http.StatusConflict, "conversation changed concurrently, retry")
			return
		}
		s.serverError(c, err)
		return
	}
	ok(c, conv)
}

func validConversationStatus(s string) bool {
	switch s {
	case models.ConversationActive, models.ConversationEnded, models.ConversationEscalated:
		return true
	}
	return false
}

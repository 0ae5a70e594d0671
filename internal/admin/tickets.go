package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avendano/forecourt/internal/models"
	"github.com/avendano/forecourt/internal/store"
	"github.com/avendano/forecourt/internal/tickets"
)

func (s *Server) handleTicketList(c *gin.Context) {
	opts := store.TicketListOpts{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Priority: c.Query("priority"),
		Assignee: c.Query("assignee"),
		Page:     intQuery(c, "page", 1),
		Limit:    intQuery(c, "limit", 20),
	}
	if opts.Status != "" && !models.ValidTicketStatus(opts.Status) {
		fail(c, http.StatusBadRequest, "invalid status")
		return
	}
	if opts.Priority != "" && !models.ValidPriority(opts.Priority) {
		fail(c, http.StatusBadRequest, "invalid priority")
		return
	}
	if opts.Category != "" && !models.ValidCategory(opts.Category) {
		fail(c, http.StatusBadRequest, "invalid category")
		return
	}

	rows, total, err := s.ticketSt.List(opts)
	if err != nil {
		s.serverError(c, err)
		return
	}
	ok(c, gin.H{"tickets": rows, "total": total, "page": opts.Page, "limit": opts.Limit})
}

// handleTicketGet returns a ticket with its notes, the linked conversation,
// and the contact.
func (s *Server) handleTicketGet(c *gin.Context) {
	ticket, err := s.ticketSt.Get(c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "ticket not found")
		return
	}
	if err != nil {
		s.serverError(c, err)
		return
	}

	resp := gin.H{"ticket": ticket}
	if conv, err := s.convs.Get(ticket.ConversationID); err == nil {
		resp["conversation"] = conv
	}
	if contact, err := s.contacts.Get(ticket.JID); err == nil {
		resp["contact"] = contact
	}
	ok(c, resp)
}

type ticketUpdateRequest struct {
	Status   string  `json:"status"`
	Priority string  `json:"priority"`
	Assignee *string `json:"assignedTo"`
	Note     string  `json:"note"`
}

func (s *Server) handleTicketUpdate(c *gin.Context) {
	var req ticketUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := tickets.Update{
		Status:   req.Status,
		Priority: req.Priority,
		Assignee: req.Assignee,
		Note:     req.Note,
		Author:   operatorName(c),
	}
	if err := upd.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ticket, err := s.ticketSvc.Update(c.Request.Context(), c.Param("id"), upd)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "ticket not found")
		return
	}
	if err != nil {
		s.serverError(c, err)
		return
	}
	ok(c, ticket)
}

type ticketRespondRequest struct {
	Message string `json:"message" binding:"required"`
}

func (s *Server) handleTicketRespond(c *gin.Context) {
	var req ticketRespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "message is required")
		return
	}

	ticket, err := s.ticketSvc.Respond(c.Request.Context(), c.Param("id"), req.Message, operatorName(c))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "ticket not found")
		return
	}
	if err != nil {
		s.serverError(c, err)
		return
	}
	ok(c, gin.H{"message": "response sent", "ticket": ticket})
}

func (s *Server) handleTicketStats(c *gin.Context) {
	stats, err := s.ticketSt.Stats()
	if err != nil {
		s.serverError(c, err)
		return
	}
	ok(c, stats)
}

package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/avendano/forecourt/internal/store"
)

// handleContactList returns contacts filtered by search text, group flag,
// and allow-list state.
func (s *Server) handleContactList(c *gin.Context) {
	opts := store.ContactListOpts{
		Search: c.Query("search"),
		Page:   intQuery(c, "page", 1),
		Limit:  intQuery(c, "limit", 50),
	}
	if v, okParse := boolQuery(c, "isGroup"); okParse {
		opts.IsGroup = &v
	}
	if v, okParse := boolQuery(c, "whitelisted"); okParse {
		opts.Whitelisted = &v
	}

	contacts, total, err := s.contacts.List(opts)
	if err != nil {
		s.serverError(c, err)
		return
	}
	ok(c, gin.H{"contacts": contacts, "total": total, "page": opts.Page, "limit": opts.Limit})
}

type contactUpdateRequest struct {
	Name        *string  `json:"name"`
	Whitelisted *bool    `json:"whitelisted"`
	Tags        []string `json:"tags"`
}

func (s *Server) handleContactUpdate(c *gin.Context) {
	jid := c.Param("jid")
	var req contactUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	contact, err := s.contacts.Update(jid, store.ContactUpdate{
		Name:        req.Name,
		Whitelisted: req.Whitelisted,
		Tags:        req.Tags,
	})
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "contact not found")
		return
	}
	if err != nil {
		s.serverError(c, err)
		return
	}

	if req.Whitelisted != nil {
		s.cache.InvalidateWhitelisted(c.Request.Context(), jid)
	}
	ok(c, contact)
}

func (s *Server) handleContactDelete(c *gin.Context) {
	jid := c.Param("jid")
	err := s.contacts.Delete(jid)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "contact not found")
		return
	}
	if err != nil {
		s.serverError(c, err)
		return
	}
	s.cache.InvalidateWhitelisted(c.Request.Context(), jid)
	ok(c, gin.H{"deleted": jid})
}

// --- Allow-list ---

func (s *Server) handleWhitelistList(c *gin.Context) {
	contacts, err := s.contacts.Whitelisted()
	if err != nil {
		s.serverError(c, err)
		return
	}
	ok(c, contacts)
}

type whitelistAddRequest struct {
	JID     string `json:"jid" binding:"required"`
	Name    string `json:"name"`
	IsGroup bool   `json:"isGroup"`
}

func (s *Server) handleWhitelistAdd(c *gin.Context) {
	var req whitelistAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "jid is required")
		return
	}

	contact, err := s.contacts.AddToWhitelist(req.JID, req.Name, req.IsGroup)
	if err != nil {
		s.serverError(c, err)
		return
	}
	s.cache.InvalidateWhitelisted(c.Request.Context(), req.JID)
	ok(c, contact)
}

func (s *Server) handleWhitelistRemove(c *gin.Context) {
	jid := c.Param("jid")
	err := s.contacts.RemoveFromWhitelist(jid)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "contact not found")
		return
	}
	if err != nil {
		s.serverError(c, err)
		return
	}
	s.cache.InvalidateWhitelisted(c.Request.Context(), jid)
	ok(c, gin.H{"removed": jid})
}

// --- Query helpers ---

func intQuery(c *gin.Context, name string, def int) int {
	if raw := c.Query(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return def
}

func boolQuery(c *gin.Context, name string) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func (s *Server) serverError(c *gin.Context, err error) {
	s.log.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	fail(c, http.StatusInternalServerError, "server error")
}

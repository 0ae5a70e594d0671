package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type documentAddRequest struct {
	Content  string   `json:"content" binding:"required"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

// handleDocumentAdd grows the retrieval corpus. New documents are live for
// the next inbound message without a restart.
func (s *Server) handleDocumentAdd(c *gin.Context) {
	if s.corpus == nil {
		fail(c, http.StatusServiceUnavailable, "corpus not loaded")
		return
	}

	var req documentAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "content is required")
		return
	}

	doc, err := s.corpus.Add(s.db, req.Content, req.Category, req.Keywords)
	if err != nil {
		s.serverError(c, err)
		return
	}
	ok(c, doc)
}

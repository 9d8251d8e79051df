package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"onboarding-forms/internal/importer"
	"onboarding-forms/internal/session"
)

var errNoPending = errors.New("session has no pending snippet")

type selectRequest struct {
	SectionID string   `json:"sectionId"`
	FieldIDs  []string `json:"fieldIds"`
}

type saveSessionRequest struct {
	Notes string `json:"notes"`
}

type sessionHandler func(c *gin.Context, es *session.EditorSession)

// withSession resolves :sessionId before calling fn.
func (s *Server) withSession(fn sessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		es, err := s.sessions.Get(c.Param("sessionId"))
		if err != nil {
			s.abortWithError(c, err)
			return
		}
		fn(c, es)
	}
}

func (s *Server) handleOpenSession(c *gin.Context) {
	es, err := s.svc.OpenSession(c.Request.Context(), s.sessions, c.Param("productId"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, es.State())
}

func (s *Server) handleGetSession(c *gin.Context, es *session.EditorSession) {
	c.JSON(http.StatusOK, es.State())
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.sessions.Delete(c.Param("sessionId")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStageSnippet(c *gin.Context, es *session.EditorSession) {
	var req snippetRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}
	snippet, err := req.snippet()
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	es.Stage(snippet)
	c.JSON(http.StatusOK, es.State())
}

func (s *Server) handleApplyPending(c *gin.Context, es *session.EditorSession) {
	if es.State().PendingPatch == nil {
		s.abortWithError(c, badRequest(errNoPending))
		return
	}
	outcome, err := es.ApplyPending()
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome, "session": es.State()})
}

func (s *Server) handleDiscardPending(c *gin.Context, es *session.EditorSession) {
	es.Discard()
	c.JSON(http.StatusOK, es.State())
}

// handleReplaceSessionDocument swaps in an uploaded document. A document
// with blocking errors is refused and the session keeps its document.
func (s *Server) handleReplaceSessionDocument(c *gin.Context, es *session.EditorSession) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.abortWithError(c, badRequest(err))
		return
	}
	format, err := importFormat(c, data)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	doc, report, err := importer.Document(format, data)
	if err != nil {
		s.abortWithError(c, badRequest(err))
		return
	}
	if err := report.Err(); err != nil {
		s.abortWithError(c, err)
		return
	}
	if _, err := es.Replace(doc); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report, "session": es.State()})
}

func (s *Server) handleSessionReorder(c *gin.Context, es *session.EditorSession) {
	var req reorderRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}
	coll, err := req.collection()
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if err := es.Reorder(coll, *req.From, *req.To); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, es.State())
}

func (s *Server) handleSessionSelect(c *gin.Context, es *session.EditorSession) {
	var req selectRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}
	if err := es.Select(req.SectionID, req.FieldIDs...); err != nil {
		s.abortWithError(c, badRequest(err))
		return
	}
	c.JSON(http.StatusOK, es.State())
}

func (s *Server) handleSaveSession(c *gin.Context, es *session.EditorSession) {
	var req saveSessionRequest
	if c.Request.ContentLength > 0 {
		if err := bindJSON(c, &req); err != nil {
			s.abortWithError(c, err)
			return
		}
	}
	res, err := s.svc.SaveSession(c.Request.Context(), es, author(c), req.Notes)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": res, "session": es.State()})
}

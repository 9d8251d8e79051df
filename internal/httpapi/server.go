// Package httpapi exposes the form configuration service over HTTP with gin.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"onboarding-forms/internal/formservice"
	"onboarding-forms/internal/session"
)

// UserHeader names the user recorded on versions written by a request.
const UserHeader = "X-Forms-User"

// Server holds the handlers' dependencies.
type Server struct {
	svc      *formservice.Service
	sessions *session.Manager
	log      zerolog.Logger
}

// New creates a Server. sessions may be nil, which disables the editor
// session routes.
func New(svc *formservice.Service, sessions *session.Manager, log zerolog.Logger) *Server {
	return &Server{
		svc:      svc,
		sessions: sessions,
		log:      log.With().Str("component", "httpapi").Logger(),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(corsMiddleware())

	api := r.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/templates", s.handleListTemplates)
		api.POST("/snippets", s.handleBroadcastSnippet)
		api.GET("/products", s.handleListProducts)

		product := api.Group("/products/:productId")
		{
			product.GET("/configuration", s.handleGetConfiguration)
			product.PUT("/configuration", s.handleImportConfiguration)
			product.GET("/configuration/export", s.handleExportConfiguration)
			product.POST("/snippets", s.handleApplySnippet)
			product.POST("/reorder", s.handleReorder)
			product.POST("/dedupe", s.handleDedupe)
			product.POST("/fields/:fieldId/promote", s.handlePromoteField)
			product.POST("/edits", s.handleEdit)
			product.GET("/versions", s.handleListVersions)
			product.POST("/versions/:version/restore", s.handleRestoreVersion)
			product.POST("/resolve", s.handleResolve)
			product.POST("/rule-context", s.handleRuleContext)
			product.POST("/templates/:name", s.handleApplyTemplate)
			if s.sessions != nil {
				product.POST("/sessions", s.handleOpenSession)
			}
		}

		if s.sessions != nil {
			sess := api.Group("/sessions/:sessionId")
			{
				sess.GET("", s.withSession(s.handleGetSession))
				sess.DELETE("", s.handleDeleteSession)
				sess.POST("/snippet", s.withSession(s.handleStageSnippet))
				sess.POST("/apply", s.withSession(s.handleApplyPending))
				sess.POST("/discard", s.withSession(s.handleDiscardPending))
				sess.PUT("/document", s.withSession(s.handleReplaceSessionDocument))
				sess.POST("/reorder", s.withSession(s.handleSessionReorder))
				sess.POST("/select", s.withSession(s.handleSessionSelect))
				sess.POST("/save", s.withSession(s.handleSaveSession))
			}
		}
	}
	return r
}

// requestLogger logs one line per request in place of gin.Logger.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := s.log.Info()
		if status >= 500 {
			ev = s.log.Error()
		} else if status >= 400 {
			ev = s.log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("product_id", c.Param("productId")).
			Msg("request")
	}
}

// corsMiddleware adds CORS headers for the browser-based editor.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+UserHeader)
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// author is the user a write is attributed to.
func author(c *gin.Context) string {
	if u := c.GetHeader(UserHeader); u != "" {
		return u
	}
	return "api"
}

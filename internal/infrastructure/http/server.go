// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
// The transport surface is deliberately thin: validation and JSON
// shaping here, everything else in the usecases.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/finrag/finrag-go/internal/domain/entities"
	"github.com/finrag/finrag-go/internal/domain/ports"
	"github.com/finrag/finrag-go/internal/domain/usecases"
)

// Server is the HTTP server for the chat API.
type Server struct {
	chat     *usecases.ChatUseCase
	sessions ports.SessionStore
	logger   *logrus.Logger
	addr     string
	engine   *gin.Engine
}

// NewServer creates a new HTTP server and registers routes.
func NewServer(chat *usecases.ChatUseCase, sessions ports.SessionStore, logger *logrus.Logger, addr string) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		chat:     chat,
		sessions: sessions,
		logger:   logger,
		addr:     addr,
		engine:   engine,
	}

	engine.Use(s.requestLogger())
	engine.Use(corsMiddleware())

	engine.GET("/", s.handleRoot)
	engine.GET("/health", s.handleHealth)
	engine.POST("/chat", s.handleChat)
	engine.POST("/reload", s.handleReload)
	engine.DELETE("/sessions/:id", s.handleResetSession)

	return s
}

// Handler exposes the underlying engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 300 * time.Second, // generation can be slow
	}

	s.logger.WithField("addr", s.addr).Info("server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
	TopK      int    `json:"top_k"`
}

type chatResponse struct {
	SessionID string            `json:"session_id"`
	Answer    string            `json:"answer"`
	Sources   []entities.Source `json:"sources"`
}

// handleChat answers one question. The only transport-level failures
// are a malformed request body and a missing corpus; the pipeline
// degrades everything else into a well-formed answer.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	resp, err := s.chat.Chat(c.Request.Context(), entities.ChatRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		TopK:      req.TopK,
	})
	if err != nil {
		status := http.StatusBadRequest
		if err == usecases.ErrNoData {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	sources := resp.Sources
	if sources == nil {
		sources = []entities.Source{}
	}
	c.JSON(http.StatusOK, chatResponse{
		SessionID: resp.SessionID,
		Answer:    resp.Answer,
		Sources:   sources,
	})
}

// handleReload re-reads the CSVs and rebuilds the index. On failure the
// previous corpus keeps serving.
func (s *Server) handleReload(c *gin.Context) {
	if err := s.chat.Reload(c.Request.Context()); err != nil {
		s.logger.WithError(err).Error("reload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

func (s *Server) handleResetSession(c *gin.Context) {
	s.sessions.Reset(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "finrag",
		"version": "1.0.0",
		"endpoints": gin.H{
			"health": "GET /health",
			"chat":   "POST /chat",
			"reload": "POST /reload",
			"reset":  "DELETE /sessions/:id",
		},
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

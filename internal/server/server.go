// Package server exposes the pipeline over HTTP: input upload, outline and
// document generation, progress polling, and prompt management.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bidcraft/bidwriter/internal/prompt"
	"github.com/bidcraft/bidwriter/internal/workflow"
)

// Server wires the workflow and prompt manager into HTTP handlers.
type Server struct {
	wf      *workflow.Workflow
	prompts *prompt.Manager
	logger  *slog.Logger
}

func New(wf *workflow.Workflow, prompts *prompt.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		wf:      wf,
		prompts: prompts,
		logger:  logger.With("component", "server"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/save_input", s.handleSaveInput)
	router.POST("/generate_outline", s.handleGenerateOutline)
	router.POST("/generate_content", s.handleGenerateContent)
	router.POST("/generate_document", s.handleGenerateDocument)
	router.GET("/progress", s.handleProgress)

	api := router.Group("/api")
	{
		api.GET("/prompts", s.handleListPrompts)
		api.POST("/prompts", s.handleSavePrompt)
		api.DELETE("/prompts/:key", s.handleDeletePrompt)
		api.POST("/prompts/reset/:key", s.handleResetPrompt)
	}

	return router
}

// apiResponse is the JSON envelope every endpoint returns.
type apiResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Data    any    `json:"data,omitempty"`
}

func respondOK(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, apiResponse{Success: true, Msg: msg, Data: data})
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, apiResponse{Success: false, Msg: msg})
}

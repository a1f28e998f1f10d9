package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smilemakc/wfkernel/internal/admission"
	"github.com/smilemakc/wfkernel/internal/infrastructure/middleware"
)

// setupCaseRoutes wires the Admission Gate (C2) and Case Executor (C7): a
// case is admitted against the current snapshot's spec, then stepped or run
// to completion, with its folds (C6) queryable once recorded.
func (s *Server) setupCaseRoutes(apiV1 *gin.RouterGroup) {
	cases := apiV1.Group("/cases")
	{
		cases.POST("", s.handleCreateCase)
		cases.GET("/:id", s.handleGetCase)
		cases.POST("/:id/step", s.handleStepCase)
		cases.POST("/:id/run", s.handleRunCase)
		cases.GET("/:id/folds", s.handleCaseFolds)
	}
	s.logger.Info("case routes registered")
}

type createCaseRequest struct {
	SpecID   string                    `json:"spec_id" binding:"required"`
	Input    map[string]any            `json:"input"`
	Required []admission.RequiredPredicate `json:"required,omitempty"`
}

func (s *Server) handleCreateCase(c *gin.Context) {
	var req createCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiErr := middleware.NewAPIErrorWithDetails("INVALID_JSON", err.Error(), http.StatusBadRequest, nil)
		c.JSON(apiErr.HTTPStatus, apiErr)
		return
	}

	schema := admission.Schema{Required: req.Required}
	kase, err := s.cases.CreateCase(c.Request.Context(), req.SpecID, req.Input, schema)
	if err != nil {
		apiErr := middleware.TranslateError(err)
		c.JSON(apiErr.HTTPStatus, apiErr)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"case_id": kase.ID,
		"spec_id": kase.SpecID,
		"state":   kase.State.String(),
	})
}

func (s *Server) handleGetCase(c *gin.Context) {
	kase, ok := s.cases.Get(c.Param("id"))
	if !ok {
		apiErr := middleware.ErrNotFound
		c.JSON(apiErr.HTTPStatus, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"case_id": kase.ID,
		"spec_id": kase.SpecID,
		"state":   kase.State.String(),
		"data":    kase.Data,
	})
}

func (s *Server) handleStepCase(c *gin.Context) {
	out, err := s.cases.Step(c.Request.Context(), c.Param("id"))
	if err != nil {
		apiErr := middleware.TranslateError(err)
		c.JSON(apiErr.HTTPStatus, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"fired_tasks": out.FiredTasks,
		"terminal":    out.Terminal,
		"fold_count":  out.Fold.Count,
	})
}

func (s *Server) handleRunCase(c *gin.Context) {
	fold, err := s.cases.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		apiErr := middleware.TranslateError(err)
		c.JSON(apiErr.HTTPStatus, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"fold_count":  fold.Count,
		"root_hash":   fold.RootHash,
		"degraded":    fold.Degraded,
		"first_tick":  fold.FirstTick,
		"last_tick":   fold.LastTick,
	})
}

func (s *Server) handleCaseFolds(c *gin.Context) {
	folds, err := s.cases.Folds(c.Request.Context(), c.Param("id"))
	if err != nil {
		apiErr := middleware.TranslateError(err)
		c.JSON(apiErr.HTTPStatus, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folds": folds})
}

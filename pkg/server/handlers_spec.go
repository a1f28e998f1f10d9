package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smilemakc/wfkernel/internal/infrastructure/middleware"
	"github.com/smilemakc/wfkernel/internal/snapshot"
)

// setupSpecRoutes wires the spec-ingestion front door (C1 publish): a YAML
// workflow document enters the kernel as a new, not-yet-ready snapshot.
func (s *Server) setupSpecRoutes(apiV1 *gin.RouterGroup) {
	specs := apiV1.Group("/specs")
	{
		specs.POST("", s.handleImportSpec)
	}
	s.logger.Info("spec routes registered")
}

type importSpecQuery struct {
	ParentID string `form:"parent_id"`
}

func (s *Server) handleImportSpec(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apiErr := middleware.ErrInvalidJSON
		c.JSON(apiErr.HTTPStatus, apiErr)
		return
	}

	var q importSpecQuery
	_ = c.ShouldBindQuery(&q)

	var parent snapshot.ID
	hasParent := q.ParentID != ""
	if hasParent {
		parent, err = parseSnapshotID(q.ParentID)
		if err != nil {
			apiErr := middleware.NewAPIError("BAD_REQUEST", "invalid parent_id", http.StatusBadRequest)
			c.JSON(apiErr.HTTPStatus, apiErr)
			return
		}
	}

	id, err := s.yamlImporter.ImportAndPublish(body, parent, hasParent)
	if err != nil {
		apiErr := middleware.TranslateError(err)
		c.JSON(apiErr.HTTPStatus, apiErr)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"snapshot_id": hexID(id)})
}

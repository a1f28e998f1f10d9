package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smilemakc/wfkernel/internal/infrastructure/middleware"
)

// setupSnapshotRoutes wires the promotion-gate API (C1): mark-ready,
// promote, and the current-descriptor query the hot path's GetCurrent
// mirrors for observability purposes.
func (s *Server) setupSnapshotRoutes(apiV1 *gin.RouterGroup) {
	snapshots := apiV1.Group("/snapshots")
	{
		snapshots.GET("/current", s.handleCurrentSnapshot)
		snapshots.POST("/:id/ready", s.handleMarkSnapshotReady)
		snapshots.POST("/:id/promote", s.handlePromoteSnapshot)
	}
	s.logger.Info("snapshot routes registered")
}

func (s *Server) handleCurrentSnapshot(c *gin.Context) {
	desc := s.snapshotStore.GetCurrent()
	if desc == nil {
		apiErr := middleware.ErrNotFound
		c.JSON(apiErr.HTTPStatus, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshot_id":    hexID(desc.SnapshotID),
		"generation":     desc.Generation,
		"epoch_ts_nanos": desc.EpochTimestamp,
	})
}

func (s *Server) handleMarkSnapshotReady(c *gin.Context) {
	id, err := parseSnapshotID(c.Param("id"))
	if err != nil {
		apiErr := middleware.NewAPIError("BAD_REQUEST", "invalid snapshot id", http.StatusBadRequest)
		c.JSON(apiErr.HTTPStatus, apiErr)
		return
	}
	if err := s.snapshotStore.MarkReady(id); err != nil {
		apiErr := middleware.TranslateError(err)
		c.JSON(apiErr.HTTPStatus, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handlePromoteSnapshot(c *gin.Context) {
	id, err := parseSnapshotID(c.Param("id"))
	if err != nil {
		apiErr := middleware.NewAPIError("BAD_REQUEST", "invalid snapshot id", http.StatusBadRequest)
		c.JSON(apiErr.HTTPStatus, apiErr)
		return
	}
	if err := s.snapshotStore.Promote(id); err != nil {
		apiErr := middleware.TranslateError(err)
		c.JSON(apiErr.HTTPStatus, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "promoted"})
}

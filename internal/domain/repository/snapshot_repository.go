package repository

import (
	"context"

	"github.com/smilemakc/wfkernel/internal/infrastructure/storage/models"
)

// SnapshotRepository defines cold-path persistence for published snapshots
// (C1). The engine itself only depends on this interface; the hot path
// never touches it.
type SnapshotRepository interface {
	Create(ctx context.Context, snap *models.SnapshotModel) error
	MarkReady(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.SnapshotModel, error)
	FindLatestReady(ctx context.Context) (*models.SnapshotModel, error)
}

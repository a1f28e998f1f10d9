package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/smilemakc/wfkernel/internal/domain/repository"
	"github.com/smilemakc/wfkernel/internal/infrastructure/storage/models"
)

var _ repository.SnapshotRepository = (*SnapshotRepository)(nil)

// SnapshotRepository implements repository.SnapshotRepository using Bun ORM.
type SnapshotRepository struct {
	db *bun.DB
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db *bun.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create persists a newly published snapshot (not yet ready).
func (r *SnapshotRepository) Create(ctx context.Context, snap *models.SnapshotModel) error {
	if _, err := r.db.NewInsert().Model(snap).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}

// MarkReady sets a snapshot's ready flag and stamps ready_at.
func (r *SnapshotRepository) MarkReady(ctx context.Context, id string) error {
	now := time.Now()
	_, err := r.db.NewUpdate().
		Model((*models.SnapshotModel)(nil)).
		Set("ready = ?", true).
		Set("ready_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark snapshot ready: %w", err)
	}
	return nil
}

// FindByID retrieves a snapshot by its content-hash id.
func (r *SnapshotRepository) FindByID(ctx context.Context, id string) (*models.SnapshotModel, error) {
	snap := new(models.SnapshotModel)
	err := r.db.NewSelect().Model(snap).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("snapshot %s: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("failed to find snapshot: %w", err)
	}
	return snap, nil
}

// FindLatestReady returns the ready snapshot with the latest ready_at.
func (r *SnapshotRepository) FindLatestReady(ctx context.Context) (*models.SnapshotModel, error) {
	snap := new(models.SnapshotModel)
	err := r.db.NewSelect().
		Model(snap).
		Where("ready = ?", true).
		Order("ready_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no ready snapshot: %w", sql.ErrNoRows)
		}
		return nil, fmt.Errorf("failed to find latest ready snapshot: %w", err)
	}
	return snap, nil
}

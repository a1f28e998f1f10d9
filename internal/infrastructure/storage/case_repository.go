package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/smilemakc/wfkernel/internal/domain/repository"
	"github.com/smilemakc/wfkernel/internal/infrastructure/storage/models"
)

var _ repository.CaseRepository = (*CaseRepository)(nil)

// CaseRepository implements repository.CaseRepository using Bun ORM.
type CaseRepository struct {
	db *bun.DB
}

// NewCaseRepository creates a new CaseRepository.
func NewCaseRepository(db *bun.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// Create persists a newly started case.
func (r *CaseRepository) Create(ctx context.Context, c *models.CaseModel) error {
	if _, err := r.db.NewInsert().Model(c).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}
	return nil
}

// Update persists a case's state/data after a step.
func (r *CaseRepository) Update(ctx context.Context, c *models.CaseModel) error {
	c.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(c).
		Column("state", "data", "updated_at").
		Where("id = ?", c.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	return nil
}

// FindByID retrieves a case by id.
func (r *CaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.CaseModel, error) {
	c := new(models.CaseModel)
	err := r.db.NewSelect().Model(c).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("case %s: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("failed to find case: %w", err)
	}
	return c, nil
}

// FindBySpecID lists cases for a spec, newest first.
func (r *CaseRepository) FindBySpecID(ctx context.Context, specID string, limit, offset int) ([]*models.CaseModel, error) {
	var cases []*models.CaseModel
	err := r.db.NewSelect().
		Model(&cases).
		Where("spec_id = ?", specID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, nil
}

var _ repository.FoldRepository = (*FoldRepository)(nil)

// FoldRepository implements repository.FoldRepository using Bun ORM.
type FoldRepository struct {
	db *bun.DB
}

// NewFoldRepository creates a new FoldRepository.
func NewFoldRepository(db *bun.DB) *FoldRepository {
	return &FoldRepository{db: db}
}

// Create persists a composed receipt fold.
func (r *FoldRepository) Create(ctx context.Context, f *models.FoldModel) error {
	if _, err := r.db.NewInsert().Model(f).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create fold: %w", err)
	}
	return nil
}

// FindByCaseID lists folds recorded for a case, in fold order.
func (r *FoldRepository) FindByCaseID(ctx context.Context, caseID uuid.UUID) ([]*models.FoldModel, error) {
	var folds []*models.FoldModel
	err := r.db.NewSelect().
		Model(&folds).
		Where("case_id = ?", caseID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list folds: %w", err)
	}
	return folds, nil
}

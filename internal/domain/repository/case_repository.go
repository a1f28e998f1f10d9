package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/smilemakc/wfkernel/internal/infrastructure/storage/models"
)

// CaseRepository defines cold-path persistence for case instances (C7).
type CaseRepository interface {
	Create(ctx context.Context, c *models.CaseModel) error
	Update(ctx context.Context, c *models.CaseModel) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CaseModel, error)
	FindBySpecID(ctx context.Context, specID string, limit, offset int) ([]*models.CaseModel, error)
}

// FoldRepository defines cold-path persistence for composed receipt folds
// (C6), queried by the receipt-verification API.
type FoldRepository interface {
	Create(ctx context.Context, f *models.FoldModel) error
	FindByCaseID(ctx context.Context, caseID uuid.UUID) ([]*models.FoldModel, error)
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// FoldModel persists one composed receipt Fold (C6) for a case: its root hash,
// root ticks and lanes, and the block's count and tick range.
type FoldModel struct {
	bun.BaseModel `bun:"table:folds,alias:fo"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	CaseID    uuid.UUID `bun:"case_id,notnull,type:uuid" json:"case_id"`
	RootHash  uint64    `bun:"root_hash,notnull,type:bigint" json:"root_hash"`
	RootTicks uint32    `bun:"root_ticks,notnull" json:"root_ticks"`
	RootLanes uint32    `bun:"root_lanes,notnull" json:"root_lanes"`
	Count     int       `bun:"count,notnull" json:"count"`
	FirstTick uint64    `bun:"first_tick,notnull,type:bigint" json:"first_tick"`
	LastTick  uint64    `bun:"last_tick,notnull,type:bigint" json:"last_tick"`
	Degraded  bool      `bun:"degraded,notnull,default:false" json:"degraded"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// TableName returns the table name for FoldModel.
func (FoldModel) TableName() string { return "folds" }

// BeforeInsert sets the id and timestamp.
func (f *FoldModel) BeforeInsert(ctx interface{}) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	return nil
}

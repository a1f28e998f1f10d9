package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SnapshotModel persists a published, content-addressed Snapshot (C1): the
// frozen (WorkflowSpec, Interner) pair a case executes against.
type SnapshotModel struct {
	bun.BaseModel `bun:"table:snapshots,alias:sn"`

	ID        string   `bun:"id,pk" json:"id"` // hex-encoded content hash
	ParentID  string   `bun:"parent_id" json:"parent_id,omitempty"`
	SpecsJSON JSONBMap `bun:"specs,type:jsonb,notnull" json:"specs"`
	TermsJSON JSONBMap `bun:"terms,type:jsonb,notnull" json:"terms"`
	Ready     bool     `bun:"ready,notnull,default:false" json:"ready"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	ReadyAt   *time.Time `bun:"ready_at" json:"ready_at,omitempty"`
}

// TableName returns the table name for SnapshotModel.
func (SnapshotModel) TableName() string { return "snapshots" }

// BeforeInsert sets CreatedAt.
func (s *SnapshotModel) BeforeInsert(ctx interface{}) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.SpecsJSON == nil {
		s.SpecsJSON = make(JSONBMap)
	}
	if s.TermsJSON == nil {
		s.TermsJSON = make(JSONBMap)
	}
	return nil
}

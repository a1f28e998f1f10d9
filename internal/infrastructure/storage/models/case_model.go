package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CaseModel persists a running or completed Case (C7's FSM instance) to cold
// storage. The row is a record of the case's state; the case service does not
// reload a Case from it after a process restart.
type CaseModel struct {
	bun.BaseModel `bun:"table:cases,alias:ca"`

	ID         uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	SpecID     string    `bun:"spec_id,notnull" json:"spec_id"`
	SnapshotID string    `bun:"snapshot_id,notnull" json:"snapshot_id"`
	State      string    `bun:"state,notnull,default:'created'" json:"state" validate:"oneof=created running suspended completed cancelled failed"`
	Data       JSONBMap  `bun:"data,type:jsonb,default:'{}'" json:"data,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// TableName returns the table name for CaseModel.
func (CaseModel) TableName() string { return "cases" }

// BeforeInsert sets the id and timestamps.
func (c *CaseModel) BeforeInsert(ctx interface{}) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Data == nil {
		c.Data = make(JSONBMap)
	}
	return nil
}

// BeforeUpdate refreshes UpdatedAt.
func (c *CaseModel) BeforeUpdate(ctx interface{}) error {
	c.UpdatedAt = time.Now()
	return nil
}

package membership

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType is the kind of lifecycle transition
type EventType string

const (
	EventPaused    EventType = "PAUSED"
	EventResumed   EventType = "RESUMED"
	EventUpgraded  EventType = "UPGRADED"
	EventCancelled EventType = "CANCELLED"
)

// IsValid checks if the event type is known
func (t EventType) IsValid() bool {
	switch t {
	case EventPaused, EventResumed, EventUpgraded, EventCancelled:
		return true
	}
	return false
}

// LifecycleEvent is the immutable audit record of one transition
type LifecycleEvent struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	MembershipID    uuid.UUID
	EventType       EventType
	EffectiveDate   time.Time
	DurationDays    *int
	OldPlanID       *uuid.UUID
	NewPlanID       *uuid.UUID
	Reason          string
	RefundAmount    *decimal.Decimal
	RefundReference string
	ProrationCredit *decimal.Decimal
	PreviousData    Snapshot
	PerformedBy     string
	CreatedAt       time.Time
}

// SnapshotSchemaVersion is the current layout of Snapshot
const SnapshotSchemaVersion = 1

// Snapshot is the typed, versioned pre-transition state of a membership
type Snapshot struct {
	SchemaVersion   int        `json:"schema_version"`
	MemberID        uuid.UUID  `json:"member_id"`
	PlanID          uuid.UUID  `json:"plan_id"`
	BranchID        *uuid.UUID `json:"branch_id,omitempty"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	OriginalEndDate *time.Time `json:"original_end_date,omitempty"`
	Status          Status     `json:"status"`
	FreezeDays      int        `json:"freeze_days"`
	Version         int        `json:"version"`
}

// Value implements driver.Valuer for JSON column storage
func (s Snapshot) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSON column storage.
// Rows written before versioning carry no schema_version and read as version 1.
func (s *Snapshot) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = Snapshot{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("membership snapshot: unsupported type %T", value)
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return err
	}
	if s.SchemaVersion == 0 {
		s.SchemaVersion = 1
	}
	if s.SchemaVersion > SnapshotSchemaVersion {
		return errors.New("membership snapshot: written by a newer schema")
	}
	return nil
}

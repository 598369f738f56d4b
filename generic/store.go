/*
store.go - Audit log contract

PURPOSE:
  Every record the engine creates is paired with an append-only audit
  entry naming the actor, the action, the entity and the full resulting
  document. Stores write the entry in the same transaction as the record
  it describes.

APPEND-ONLY CONTRACT:
  - Append(): the only write
  - NO Update() or Delete() methods exist

SEE ALSO:
  - payroll/store.go: calculation and employee ports
  - store/sqlite/sqlite.go, store/postgres/postgres.go, store/memory/memory.go
*/
package generic

import (
	"context"
	"encoding/json"
	"time"
)

// =============================================================================
// AUDIT LOG - Separate from records, tracks who did what when
// =============================================================================

// AuditEntry records who did what when.
type AuditEntry struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	ActorID    string          `json:"actor_id"`
	Action     AuditAction     `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	After      json.RawMessage `json:"after"` // the full resulting document
	At         time.Time       `json:"at"`
}

type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
)

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	TenantID   string
	EntityType string
	EntityID   string
	ActorID    string
	Limit      int
}

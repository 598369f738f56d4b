package payroll

import (
	"context"

	"github.com/warp/labor-engine/generic"
)

// =============================================================================
// STORE PORTS - What the engine needs from the document store
// =============================================================================

// EmployeeStore reads and upserts employees.
type EmployeeStore interface {
	// GetEmployee returns generic.ErrEmployeeNotFound when absent.
	GetEmployee(ctx context.Context, tenantID, employeeID string) (*Employee, error)

	// SaveEmployee creates or replaces the employee. created reports
	// whether the id was new.
	SaveEmployee(ctx context.Context, e Employee) (created bool, err error)

	ListEmployees(ctx context.Context, tenantID string) ([]Employee, error)
}

// SettingsStore reads and writes tenant settings.
type SettingsStore interface {
	// GetSettings returns (nil, nil) when the tenant has no settings.
	GetSettings(ctx context.Context, tenantID string) (*Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}

// CalculationStore persists calculation records. There is no update and no
// delete; retention is a store policy.
type CalculationStore interface {
	// GetCalculation returns generic.ErrRecordNotFound when absent.
	GetCalculation(ctx context.Context, tenantID, id string) (*CalculationRecord, error)

	// CreateCalculation inserts the record and its audit entry atomically
	// if no record with the same (tenant, id) exists. A duplicate returns
	// generic.ErrDuplicateFingerprint and writes nothing.
	CreateCalculation(ctx context.Context, rec CalculationRecord, audit generic.AuditEntry) error

	ListCalculations(ctx context.Context, filter CalculationFilter) ([]CalculationRecord, error)
}

// Store is everything the API needs from a backend.
type Store interface {
	EmployeeStore
	SettingsStore
	CalculationStore
	generic.AuditLog

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

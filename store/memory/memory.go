// Package memory provides an in-memory payroll.Store for tests and dev.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/labor-engine/billing"
	"github.com/warp/labor-engine/generic"
	"github.com/warp/labor-engine/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu            sync.RWMutex
	employees     map[key]payroll.Employee
	settings      map[string]payroll.Settings
	calculations  map[key]payroll.CalculationRecord
	audit         []generic.AuditEntry
	subscriptions map[string]billing.Subscription
}

// key scopes every document id to its tenant.
type key struct {
	TenantID string
	ID       string
}

func New() *Store {
	return &Store{
		employees:     make(map[key]payroll.Employee),
		settings:      make(map[string]payroll.Settings),
		calculations:  make(map[key]payroll.CalculationRecord),
		subscriptions: make(map[string]billing.Subscription),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) GetEmployee(_ context.Context, tenantID, employeeID string) (*payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[key{tenantID, employeeID}]
	if !ok {
		return nil, generic.ErrEmployeeNotFound
	}
	return &e, nil
}

func (s *Store) SaveEmployee(_ context.Context, e payroll.Employee) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{e.TenantID, e.ID}
	_, exists := s.employees[k]
	s.employees[k] = e
	return !exists, nil
}

func (s *Store) ListEmployees(_ context.Context, tenantID string) ([]payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []payroll.Employee{}
	for k, e := range s.employees {
		if k.TenantID == tenantID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *Store) GetSettings(_ context.Context, tenantID string) (*payroll.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[tenantID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *Store) SaveSettings(_ context.Context, st payroll.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[st.TenantID] = st
	return nil
}

// =============================================================================
// CALCULATIONS - Conditional create, no update, no delete
// =============================================================================

func (s *Store) GetCalculation(_ context.Context, tenantID, id string) (*payroll.CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.calculations[key{tenantID, id}]
	if !ok {
		return nil, generic.ErrRecordNotFound
	}
	return &rec, nil
}

// CreateCalculation checks and writes under one lock, so the record and its
// audit entry land together or not at all.
func (s *Store) CreateCalculation(_ context.Context, rec payroll.CalculationRecord, audit generic.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{rec.TenantID, rec.ID}
	if _, exists := s.calculations[k]; exists {
		return generic.ErrDuplicateFingerprint
	}
	rec.Idempotent = false
	s.calculations[k] = rec
	s.audit = append(s.audit, audit)
	return nil
}

func (s *Store) ListCalculations(_ context.Context, f payroll.CalculationFilter) ([]payroll.CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []payroll.CalculationRecord{}
	for k, rec := range s.calculations {
		if k.TenantID != f.TenantID {
			continue
		}
		if f.EmployeeID != "" && rec.EmployeeID != f.EmployeeID {
			continue
		}
		if f.Period != "" && rec.Period != f.Period {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) AppendAudit(_ context.Context, entry generic.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

// QueryAudit returns matching entries, newest first.
func (s *Store) QueryAudit(_ context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []generic.AuditEntry{}
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if e.TenantID != f.TenantID {
			continue
		}
		if f.EntityType != "" && e.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != "" && e.EntityID != f.EntityID {
			continue
		}
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

func (s *Store) GetSubscription(_ context.Context, tenantID string) (*billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[tenantID]
	if !ok {
		return nil, billing.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *Store) SaveSubscription(_ context.Context, sub billing.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.TenantID] = sub
	return nil
}

// Package storetest is the behavioral suite every store implementation
// must pass.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/labor-engine/billing"
	"github.com/warp/labor-engine/generic"
	"github.com/warp/labor-engine/payroll"
)

// Store is what a backend must implement to be used by the server.
type Store interface {
	payroll.Store
	billing.SubscriptionStore
}

// Run exercises s against the storage contract. newStore must return an
// empty store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("employees", func(t *testing.T) { testEmployees(t, newStore(t)) })
	t.Run("settings", func(t *testing.T) { testSettings(t, newStore(t)) })
	t.Run("calculations", func(t *testing.T) { testCalculations(t, newStore(t)) })
	t.Run("conditional create", func(t *testing.T) { testConditionalCreate(t, newStore(t)) })
	t.Run("concurrent create", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
	t.Run("audit", func(t *testing.T) { testAudit(t, newStore(t)) })
	t.Run("subscriptions", func(t *testing.T) { testSubscriptions(t, newStore(t)) })
	t.Run("ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

func date(s string) generic.Date { return generic.MustParseDate(s) }

func employee(tenant, id, name string) payroll.Employee {
	return payroll.Employee{
		ID:            id,
		TenantID:      tenant,
		Name:          name,
		MonthlySalary: 300000,
		Admission:     date("2025-01-15"),
		Sector:        "commerce",
		Active:        true,
	}
}

func record(tenant, id, employeeID, period string, at time.Time) payroll.CalculationRecord {
	return payroll.CalculationRecord{
		ID:         id,
		TenantID:   tenant,
		EmployeeID: employeeID,
		Period:     period,
		Parameters: payroll.BuildParameters(payroll.DefaultTaxTables(), nil, 2025, "UTC", nil),
		Inputs: payroll.RecordInputs{
			MonthlySalary: 300000,
			Admission:     date("2025-01-15"),
		},
		Results: payroll.RecordResults{
			DaysWorked:     17,
			Eligible:       true,
			ProratedSalary: 170000,
			Totals:         payroll.RecordTotals{Gross: 170000, Net: 170000},
		},
		Hashes:        payroll.RecordHashes{Fingerprint: id + "-full"},
		CreatedBy:     "u1",
		CreatedAt:     at,
		SchemaVersion: payroll.SchemaVersion,
	}
}

func audit(rec payroll.CalculationRecord) generic.AuditEntry {
	entry, err := payroll.CalculationAudit(rec)
	if err != nil {
		panic(err)
	}
	return entry
}

var t0 = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================
// CASES
// =============================================================================

func testEmployees(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetEmployee(ctx, "t1", "missing")
	assert.ErrorIs(t, err, generic.ErrEmployeeNotFound)

	created, err := s.SaveEmployee(ctx, employee("t1", "e1", "Bruno"))
	require.NoError(t, err)
	assert.True(t, created)

	e := employee("t1", "e1", "Bruno")
	term := date("2025-06-30")
	e.Termination = &term
	e.Active = false
	created, err = s.SaveEmployee(ctx, e)
	require.NoError(t, err)
	assert.False(t, created, "same id updates")

	got, err := s.GetEmployee(ctx, "t1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Bruno", got.Name)
	assert.Equal(t, generic.Cents(300000), got.MonthlySalary)
	assert.Equal(t, "2025-01-15", got.Admission.String())
	require.NotNil(t, got.Termination)
	assert.Equal(t, "2025-06-30", got.Termination.String())
	assert.False(t, got.Active)

	_, err = s.SaveEmployee(ctx, employee("t1", "e2", "Ana"))
	require.NoError(t, err)
	_, err = s.SaveEmployee(ctx, employee("t2", "e3", "Other tenant"))
	require.NoError(t, err)

	list, err := s.ListEmployees(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ana", list[0].Name)
	assert.Equal(t, "Bruno", list[1].Name)

	_, err = s.GetEmployee(ctx, "t2", "e1")
	assert.ErrorIs(t, err, generic.ErrEmployeeNotFound, "tenants are isolated")
}

func testSettings(t *testing.T, s Store) {
	ctx := context.Background()

	got, err := s.GetSettings(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)

	tables := payroll.DefaultTaxTables()
	require.NoError(t, s.SaveSettings(ctx, payroll.Settings{
		TenantID:  "t1",
		Taxes:     map[int]payroll.TaxYear{2025: tables.ForYear(2025)},
		Proration: &payroll.ProrationRules{CommercialMonthDays: 30, FifteenDayRule: false},
		UpdatedAt: t0,
	}))

	got, err = s.GetSettings(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Contains(t, got.Taxes, 2025)
	assert.Equal(t, tables.ForYear(2025), got.Taxes[2025])
	require.NotNil(t, got.Proration)
	assert.False(t, got.Proration.FifteenDayRule)
}

func testCalculations(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetCalculation(ctx, "t1", "nope")
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)

	r1 := record("t1", "fp1", "e1", "2025-01", t0)
	r2 := record("t1", "fp2", "e1", "2025-02", t0.Add(time.Minute))
	r3 := record("t1", "fp3", "e2", "2025-01", t0.Add(2*time.Minute))
	for _, r := range []payroll.CalculationRecord{r1, r2, r3} {
		require.NoError(t, s.CreateCalculation(ctx, r, audit(r)))
	}

	got, err := s.GetCalculation(ctx, "t1", "fp1")
	require.NoError(t, err)
	assert.Equal(t, r1.ID, got.ID)
	assert.Equal(t, r1.Results, got.Results)
	assert.Equal(t, r1.Parameters, got.Parameters)
	assert.Equal(t, r1.Hashes, got.Hashes)
	assert.True(t, r1.CreatedAt.Equal(got.CreatedAt))
	assert.False(t, got.Idempotent)

	all, err := s.ListCalculations(ctx, payroll.CalculationFilter{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "fp3", all[0].ID, "newest first")

	byEmployee, err := s.ListCalculations(ctx, payroll.CalculationFilter{TenantID: "t1", EmployeeID: "e1"})
	require.NoError(t, err)
	assert.Len(t, byEmployee, 2)

	byPeriod, err := s.ListCalculations(ctx, payroll.CalculationFilter{TenantID: "t1", EmployeeID: "e1", Period: "2025-02"})
	require.NoError(t, err)
	require.Len(t, byPeriod, 1)
	assert.Equal(t, "fp2", byPeriod[0].ID)

	limited, err := s.ListCalculations(ctx, payroll.CalculationFilter{TenantID: "t1", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	other, err := s.ListCalculations(ctx, payroll.CalculationFilter{TenantID: "t2"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testConditionalCreate(t *testing.T, s Store) {
	ctx := context.Background()
	r := record("t1", "fp1", "e1", "2025-01", t0)
	require.NoError(t, s.CreateCalculation(ctx, r, audit(r)))

	dup := r
	dup.CreatedBy = "someone-else"
	err := s.CreateCalculation(ctx, dup, audit(dup))
	assert.ErrorIs(t, err, generic.ErrDuplicateFingerprint)

	got, err := s.GetCalculation(ctx, "t1", "fp1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.CreatedBy, "the first write wins")

	entries, err := s.QueryAudit(ctx, generic.AuditFilter{TenantID: "t1", EntityType: "calculation"})
	require.NoError(t, err)
	assert.Len(t, entries, 1, "a duplicate writes no audit entry")

	// the same fingerprint under another tenant is a different record
	other := record("t2", "fp1", "e1", "2025-01", t0)
	require.NoError(t, s.CreateCalculation(ctx, other, audit(other)))
}

func testConcurrentCreate(t *testing.T, s Store) {
	ctx := context.Background()
	r := record("t1", "fp-race", "e1", "2025-01", t0)

	const n = 10
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.CreateCalculation(ctx, r, audit(r))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, generic.ErrDuplicateFingerprint)
	}
	assert.Equal(t, 1, ok)

	entries, err := s.QueryAudit(ctx, generic.AuditFilter{TenantID: "t1", EntityID: "fp-race"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func testAudit(t *testing.T, s Store) {
	ctx := context.Background()
	entries := []generic.AuditEntry{
		{ID: "a1", TenantID: "t1", ActorID: "u1", Action: generic.AuditCreate, EntityType: "employee", EntityID: "e1", After: []byte(`{"id":"e1"}`), At: t0},
		{ID: "a2", TenantID: "t1", ActorID: "u2", Action: generic.AuditUpdate, EntityType: "employee", EntityID: "e1", At: t0.Add(time.Second)},
		{ID: "a3", TenantID: "t1", ActorID: "u1", Action: generic.AuditUpdate, EntityType: "settings", EntityID: "t1", At: t0.Add(2 * time.Second)},
		{ID: "a4", TenantID: "t2", ActorID: "u9", Action: generic.AuditCreate, EntityType: "employee", EntityID: "e9", At: t0},
	}
	for _, e := range entries {
		require.NoError(t, s.AppendAudit(ctx, e))
	}

	all, err := s.QueryAudit(ctx, generic.AuditFilter{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a3", all[0].ID, "newest first")
	assert.JSONEq(t, `{"id":"e1"}`, string(all[2].After))
	assert.True(t, t0.Equal(all[2].At))

	byEntity, err := s.QueryAudit(ctx, generic.AuditFilter{TenantID: "t1", EntityType: "employee", EntityID: "e1"})
	require.NoError(t, err)
	assert.Len(t, byEntity, 2)

	byActor, err := s.QueryAudit(ctx, generic.AuditFilter{TenantID: "t1", ActorID: "u2"})
	require.NoError(t, err)
	require.Len(t, byActor, 1)
	assert.Equal(t, generic.AuditUpdate, byActor[0].Action)

	limited, err := s.QueryAudit(ctx, generic.AuditFilter{TenantID: "t1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func testSubscriptions(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetSubscription(ctx, "t1")
	assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)

	require.NoError(t, s.SaveSubscription(ctx, billing.Subscription{
		TenantID: "t1", StripeSubscriptionID: "sub_1", Status: "active", CurrentPeriodEnd: t0, UpdatedAt: t0,
	}))
	require.NoError(t, s.SaveSubscription(ctx, billing.Subscription{
		TenantID: "t1", StripeSubscriptionID: "sub_1", Status: "past_due", UpdatedAt: t0,
	}))

	sub, err := s.GetSubscription(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)
	assert.Equal(t, "past_due", sub.Status)
	assert.False(t, sub.Active())
}

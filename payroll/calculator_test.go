package payroll_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/labor-engine/generic"
	"github.com/warp/labor-engine/payroll"
	"github.com/warp/labor-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var fixedNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func newCalculator(st payroll.Store, opts ...payroll.Option) *payroll.Calculator {
	opts = append([]payroll.Option{payroll.WithClock(func() time.Time { return fixedNow })}, opts...)
	return payroll.NewCalculator(st, opts...)
}

func seedEmployee(t *testing.T, st payroll.Store, id, admission, termination string) {
	t.Helper()
	e := payroll.Employee{
		ID:            id,
		TenantID:      "t1",
		Name:          "Employee " + id,
		MonthlySalary: 300000,
		Admission:     date(admission),
		Active:        termination == "",
	}
	if termination != "" {
		e.Termination = datePtr(termination)
	}
	_, err := st.SaveEmployee(context.Background(), e)
	require.NoError(t, err)
}

func request(employeeID, period string) payroll.Request {
	return payroll.Request{TenantID: "t1", EmployeeID: employeeID, ActorID: "u1", Period: period}
}

type recordingPublisher struct {
	mu   sync.Mutex
	recs []payroll.CalculationRecord
	err  error
}

func (p *recordingPublisher) PublishCalculated(_ context.Context, rec payroll.CalculationRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs = append(p.recs, rec)
	return p.err
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *recordingMetrics) ObserveCalculation(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

// countingStore fails the test if validation lets a bad request through.
type countingStore struct {
	*memory.Store
	employeeLookups atomic.Int32
}

func (s *countingStore) GetEmployee(ctx context.Context, tenantID, id string) (*payroll.Employee, error) {
	s.employeeLookups.Add(1)
	return s.Store.GetEmployee(ctx, tenantID, id)
}

// failingStore breaks on settings.
type failingStore struct {
	*memory.Store
}

func (failingStore) GetSettings(context.Context, string) (*payroll.Settings, error) {
	return nil, errors.New("connection refused")
}

// racingStore lets another writer win between lookup and create.
type racingStore struct {
	*memory.Store
}

func (s racingStore) CreateCalculation(ctx context.Context, rec payroll.CalculationRecord, audit generic.AuditEntry) error {
	rec.CreatedBy = "winner"
	if err := s.Store.CreateCalculation(ctx, rec, audit); err != nil {
		return err
	}
	return generic.ErrDuplicateFingerprint
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestCalculate_FullMonth(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedEmployee(t, st, "e1", "2025-01-01", "")

	rec, err := newCalculator(st).Calculate(ctx, request("e1", "2025-01"))
	require.NoError(t, err)

	assert.False(t, rec.Idempotent)
	assert.Len(t, rec.ID, payroll.FingerprintLength)
	assert.Equal(t, "2025-01", rec.Period)
	assert.Equal(t, "u1", rec.CreatedBy)
	assert.Equal(t, fixedNow, rec.CreatedAt)
	assert.Equal(t, payroll.SchemaVersion, rec.SchemaVersion)
	assert.Equal(t, generic.Cents(300000), rec.Inputs.MonthlySalary)

	assert.Equal(t, 31, rec.Results.DaysWorked)
	assert.True(t, rec.Results.Eligible)
	assert.Equal(t, generic.Cents(300000), rec.Results.ProratedSalary)
	assert.Equal(t, generic.Cents(25000), rec.Results.ThirteenthSalary)
	assert.Equal(t, generic.Cents(330609), rec.Results.Totals.Net)
	assert.Equal(t, "UTC", rec.Parameters.Timezone)
}

func TestCalculate_AdmittedMidMonth(t *testing.T) {
	st := memory.New()
	seedEmployee(t, st, "e1", "2025-01-15", "")

	rec, err := newCalculator(st).Calculate(context.Background(), request("e1", "2025-01"))
	require.NoError(t, err)
	assert.Equal(t, 17, rec.Results.DaysWorked)
	assert.Equal(t, generic.Cents(170000), rec.Results.ProratedSalary)
	assert.True(t, rec.Results.Eligible)
}

func TestCalculate_ShortContract(t *testing.T) {
	st := memory.New()
	seedEmployee(t, st, "e1", "2025-02-10", "2025-02-14")

	rec, err := newCalculator(st).Calculate(context.Background(), request("e1", "2025-02"))
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Results.DaysWorked)
	assert.Equal(t, generic.Cents(50000), rec.Results.ProratedSalary)
	assert.Equal(t, generic.Cents(0), rec.Results.ThirteenthSalary)
	assert.Equal(t, generic.Cents(0), rec.Results.Vacation)
	assert.Equal(t, generic.Cents(0), rec.Results.VacationBonus)
	require.NotNil(t, rec.Inputs.Termination)
	assert.Equal(t, "2025-02-14", rec.Inputs.Termination.String())
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestCalculate_ReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedEmployee(t, st, "e1", "2025-01-01", "")
	pub := &recordingPublisher{}
	metrics := &recordingMetrics{}
	calc := newCalculator(st, payroll.WithPublisher(pub), payroll.WithMetrics(metrics))

	first, err := calc.Calculate(ctx, request("e1", "2025-01"))
	require.NoError(t, err)
	second, err := calc.Calculate(ctx, request("e1", "2025-01"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Idempotent)
	assert.Equal(t, first.Results, second.Results)

	audit, err := st.QueryAudit(ctx, generic.AuditFilter{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, audit, 1, "replays write nothing")
	assert.Equal(t, "calculation:"+first.ID+":create", audit[0].ID)
	assert.Equal(t, generic.AuditCreate, audit[0].Action)
	assert.Equal(t, "u1", audit[0].ActorID)

	assert.Len(t, pub.recs, 1)
	assert.Equal(t, []string{payroll.OutcomeCreated, payroll.OutcomeIdempotent}, metrics.outcomes)

	stored, err := st.GetCalculation(ctx, "t1", first.ID)
	require.NoError(t, err)
	assert.False(t, stored.Idempotent, "the flag is never persisted")
}

func TestCalculate_OverrideChangesFingerprint(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedEmployee(t, st, "e1", "2025-01-01", "")
	calc := newCalculator(st)

	plain, err := calc.Calculate(ctx, request("e1", "2025-01"))
	require.NoError(t, err)

	rate := 0.10
	req := request("e1", "2025-01")
	req.Override = &payroll.Override{FlatRate: &rate}
	overridden, err := calc.Calculate(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, plain.ID, overridden.ID)
	assert.False(t, overridden.Idempotent)
	assert.Equal(t, generic.Cents(30000), overridden.Results.FlatContribution)
}

func TestCalculate_SettingsChangeFingerprint(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedEmployee(t, st, "e1", "2025-01-01", "")
	calc := newCalculator(st)

	before, err := calc.Calculate(ctx, request("e1", "2025-01"))
	require.NoError(t, err)

	require.NoError(t, st.SaveSettings(ctx, payroll.Settings{
		TenantID:  "t1",
		Proration: &payroll.ProrationRules{CommercialMonthDays: 30, FifteenDayRule: false},
	}))
	after, err := calc.Calculate(ctx, request("e1", "2025-01"))
	require.NoError(t, err)
	assert.NotEqual(t, before.ID, after.ID)
}

func TestCalculate_LostRaceReturnsWinner(t *testing.T) {
	st := racingStore{Store: memory.New()}
	seedEmployee(t, st, "e1", "2025-01-01", "")

	rec, err := newCalculator(st).Calculate(context.Background(), request("e1", "2025-01"))
	require.NoError(t, err)
	assert.True(t, rec.Idempotent)
	assert.Equal(t, "winner", rec.CreatedBy)
}

func TestCalculate_ConcurrentIdenticalRequests(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedEmployee(t, st, "e1", "2025-01-01", "")
	calc := newCalculator(st)

	const n = 20
	ids := make([]string, n)
	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := calc.Calculate(ctx, request("e1", "2025-01"))
			if err != nil {
				t.Errorf("calculate: %v", err)
				return
			}
			ids[i] = rec.ID
			if !rec.Idempotent {
				created.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	audit, err := st.QueryAudit(ctx, generic.AuditFilter{TenantID: "t1", EntityType: "calculation"})
	require.NoError(t, err)
	assert.Len(t, audit, 1)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestCalculate_ValidationBeforeStoreAccess(t *testing.T) {
	st := &countingStore{Store: memory.New()}
	calc := newCalculator(st)

	bad := []payroll.Request{
		{TenantID: "t1", EmployeeID: "e1", ActorID: "u1", Period: "2025-13"},
		{TenantID: "t1", EmployeeID: "e1", ActorID: "u1", Period: "25-01"},
		{TenantID: "t1", EmployeeID: "", ActorID: "u1", Period: "2025-01"},
		{TenantID: "", EmployeeID: "e1", ActorID: "u1", Period: "2025-01"},
	}
	for _, req := range bad {
		_, err := calc.Calculate(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, generic.CodeValidation, generic.ErrorCode(err), "request %+v", req)
	}
	assert.Equal(t, int32(0), st.employeeLookups.Load())
}

func TestCalculate_InvalidOverride(t *testing.T) {
	st := memory.New()
	seedEmployee(t, st, "e1", "2025-01-01", "")
	rate := -0.1
	req := request("e1", "2025-01")
	req.Override = &payroll.Override{FlatRate: &rate}

	_, err := newCalculator(st).Calculate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, generic.CodeValidation, generic.ErrorCode(err))
	assert.Contains(t, generic.ErrorFields(err), "override.flat_rate")
}

func TestCalculate_EmployeeNotFound(t *testing.T) {
	_, err := newCalculator(memory.New()).Calculate(context.Background(), request("ghost", "2025-01"))
	require.Error(t, err)
	assert.Equal(t, generic.CodeNotFound, generic.ErrorCode(err))
	assert.True(t, generic.IsNotFound(err))
}

func TestCalculate_EmployeeFromAnotherTenant(t *testing.T) {
	st := memory.New()
	seedEmployee(t, st, "e1", "2025-01-01", "")
	req := request("e1", "2025-01")
	req.TenantID = "t2"

	_, err := newCalculator(st).Calculate(context.Background(), req)
	assert.Equal(t, generic.CodeNotFound, generic.ErrorCode(err))
}

func TestCalculate_FutureAdmission(t *testing.T) {
	st := memory.New()
	seedEmployee(t, st, "e1", "2025-07-01", "")

	_, err := newCalculator(st).Calculate(context.Background(), request("e1", "2025-07"))
	require.Error(t, err)
	assert.Equal(t, generic.CodeValidation, generic.ErrorCode(err))
	assert.ErrorIs(t, err, generic.ErrInvalidSpan)
}

func TestCalculate_StoreFailureIsInternal(t *testing.T) {
	st := failingStore{Store: memory.New()}
	seedEmployee(t, st, "e1", "2025-01-01", "")

	_, err := newCalculator(st).Calculate(context.Background(), request("e1", "2025-01"))
	require.Error(t, err)
	assert.Equal(t, generic.CodeInternal, generic.ErrorCode(err))
	assert.NotContains(t, generic.ErrorMessage(err), "connection refused")
}

func TestCalculate_PublishFailureDoesNotFail(t *testing.T) {
	st := memory.New()
	seedEmployee(t, st, "e1", "2025-01-01", "")
	pub := &recordingPublisher{err: errors.New("nats down")}

	rec, err := newCalculator(st, payroll.WithPublisher(pub)).Calculate(context.Background(), request("e1", "2025-01"))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Len(t, pub.recs, 1)
}

func TestCalculate_TimezoneDecidesToday(t *testing.T) {
	st := memory.New()
	// 2025-06-01 01:00 UTC is still 2025-05-31 in Fortaleza (UTC-3)
	seedEmployee(t, st, "e1", "2025-06-01", "")
	loc := time.FixedZone("BRT", -3*60*60)
	calc := payroll.NewCalculator(st,
		payroll.WithClock(func() time.Time { return time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC) }),
		payroll.WithLocation(loc),
	)

	_, err := calc.Calculate(context.Background(), request("e1", "2025-06"))
	assert.ErrorIs(t, err, generic.ErrInvalidSpan, "admission is tomorrow in the configured zone")
	assert.Equal(t, "BRT", calc.Timezone())
}

package payroll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/warp/labor-engine/generic"
)

// =============================================================================
// CALCULATOR - The single entry point that computes and persists a record
// =============================================================================

// Publisher is told about every newly created record. Failures are logged
// and never fail the calculation.
type Publisher interface {
	PublishCalculated(ctx context.Context, rec CalculationRecord) error
}

// Metrics observes calculation outcomes.
type Metrics interface {
	ObserveCalculation(outcome string, elapsed time.Duration)
}

// Calculation outcomes reported to Metrics.
const (
	OutcomeCreated    = "created"
	OutcomeIdempotent = "idempotent"
	OutcomeInvalid    = "invalid"
	OutcomeNotFound   = "not_found"
	OutcomeError      = "error"
)

// Request asks for one employee's figures for one competence month.
type Request struct {
	TenantID   string    `json:"tenant_id"`
	EmployeeID string    `json:"employee_id"`
	ActorID    string    `json:"actor_id"`
	Period     string    `json:"period"` // YYYY-MM
	Override   *Override `json:"override,omitempty"`
}

// Validate checks the request shape. Returns a VALIDATION_FAILED error with
// one entry per bad field.
func (r Request) Validate() (generic.Month, error) {
	fields := map[string]string{}
	if strings.TrimSpace(r.TenantID) == "" {
		fields["tenant_id"] = "is required"
	}
	if strings.TrimSpace(r.EmployeeID) == "" {
		fields["employee_id"] = "is required"
	}
	if strings.TrimSpace(r.ActorID) == "" {
		fields["actor_id"] = "is required"
	}
	month, err := generic.ParseMonth(r.Period)
	if err != nil {
		fields["period"] = "must be YYYY-MM"
	}
	for k, v := range r.Override.Validate() {
		fields[k] = v
	}
	if len(fields) > 0 {
		return generic.Month{}, generic.Invalid("calculation.validate", "invalid calculation request", fields)
	}
	return month, nil
}

// Calculator orchestrates: validate, load, snapshot, fingerprint, compute,
// conditionally create. Safe for concurrent use.
type Calculator struct {
	store     Store
	tables    TaxParameterSnapshot
	location  *time.Location
	now       func() time.Time
	logger    zerolog.Logger
	publisher Publisher
	metrics   Metrics
}

// Option configures a Calculator.
type Option func(*Calculator)

func WithTables(t TaxParameterSnapshot) Option { return func(c *Calculator) { c.tables = t } }
func WithLogger(l zerolog.Logger) Option       { return func(c *Calculator) { c.logger = l } }
func WithPublisher(p Publisher) Option         { return func(c *Calculator) { c.publisher = p } }
func WithMetrics(m Metrics) Option             { return func(c *Calculator) { c.metrics = m } }

// WithClock replaces time.Now. Tests use it to pin "today".
func WithClock(now func() time.Time) Option { return func(c *Calculator) { c.now = now } }

// WithLocation sets the timezone used to decide "today". The name is
// recorded in every parameter snapshot.
func WithLocation(loc *time.Location) Option {
	return func(c *Calculator) {
		if loc != nil {
			c.location = loc
		}
	}
}

// NewCalculator returns a calculator over store with built-in tables, UTC,
// and no publisher or metrics.
func NewCalculator(store Store, opts ...Option) *Calculator {
	c := &Calculator{
		store:    store,
		tables:   DefaultTaxTables(),
		location: time.UTC,
		now:      time.Now,
		logger:   zerolog.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tables returns the built-in tax tables the calculator resolves against.
func (c *Calculator) Tables() TaxParameterSnapshot { return c.tables }

// Today is the current calendar day in the configured timezone.
func (c *Calculator) Today() generic.Date { return generic.DateOf(c.now().In(c.location)) }

// Timezone is the configured timezone name.
func (c *Calculator) Timezone() string { return c.location.String() }

// Calculate computes (or returns the existing) record for the request.
// The returned record has Idempotent set when it was already stored.
func (c *Calculator) Calculate(ctx context.Context, req Request) (*CalculationRecord, error) {
	started := c.now()
	rec, outcome, err := c.calculate(ctx, req)
	if c.metrics != nil {
		c.metrics.ObserveCalculation(outcome, c.now().Sub(started))
	}
	return rec, err
}

func (c *Calculator) calculate(ctx context.Context, req Request) (*CalculationRecord, string, error) {
	month, err := req.Validate()
	if err != nil {
		return nil, OutcomeInvalid, err
	}

	emp, err := c.store.GetEmployee(ctx, req.TenantID, req.EmployeeID)
	if err != nil {
		if errors.Is(err, generic.ErrEmployeeNotFound) {
			return nil, OutcomeNotFound, generic.NotFound(err, "calculation.load_employee", "employee not found")
		}
		return nil, OutcomeError, generic.Internal(err, "calculation.load_employee")
	}

	settings, err := c.store.GetSettings(ctx, req.TenantID)
	if err != nil {
		return nil, OutcomeError, generic.Internal(err, "calculation.load_settings")
	}

	span := emp.Span()
	if err := span.ValidateAsOf(c.Today()); err != nil {
		return nil, OutcomeInvalid, generic.InvalidErr(err, "calculation.validate", "employee")
	}

	params := BuildParameters(c.tables, settings, month.Year, c.Timezone(), req.Override)
	fp, err := ComputeFingerprint(req.TenantID, req.EmployeeID, month, params)
	if err != nil {
		return nil, OutcomeError, generic.Internal(err, "calculation.fingerprint")
	}

	existing, err := c.store.GetCalculation(ctx, req.TenantID, fp.Key)
	switch {
	case err == nil:
		existing.Idempotent = true
		return existing, OutcomeIdempotent, nil
	case !errors.Is(err, generic.ErrRecordNotFound):
		return nil, OutcomeError, generic.Internal(err, "calculation.lookup")
	}

	accrual, err := AccrueMonth(span, month, params)
	if err != nil {
		return nil, OutcomeInvalid, generic.InvalidErr(err, "calculation.compute", "employee")
	}

	rec := CalculationRecord{
		ID:         fp.Key,
		TenantID:   req.TenantID,
		EmployeeID: req.EmployeeID,
		Period:     month.String(),
		Parameters: params,
		Inputs: RecordInputs{
			MonthlySalary: emp.MonthlySalary,
			Admission:     emp.Admission,
			Termination:   emp.Termination,
		},
		Results:       RoundResults(accrual),
		Hashes:        RecordHashes{Fingerprint: fp.Full},
		CreatedBy:     req.ActorID,
		CreatedAt:     c.now().UTC(),
		SchemaVersion: SchemaVersion,
	}

	audit, err := CalculationAudit(rec)
	if err != nil {
		return nil, OutcomeError, generic.Internal(err, "calculation.audit")
	}

	err = c.store.CreateCalculation(ctx, rec, audit)
	if errors.Is(err, generic.ErrDuplicateFingerprint) {
		// lost a race with an identical request
		winner, gerr := c.store.GetCalculation(ctx, req.TenantID, fp.Key)
		if gerr != nil {
			return nil, OutcomeError, generic.Internal(gerr, "calculation.lookup")
		}
		winner.Idempotent = true
		return winner, OutcomeIdempotent, nil
	}
	if err != nil {
		return nil, OutcomeError, generic.Internal(err, "calculation.create")
	}

	c.logger.Info().
		Str("tenant_id", rec.TenantID).
		Str("employee_id", rec.EmployeeID).
		Str("period", rec.Period).
		Str("calculation_id", rec.ID).
		Msg("calculation created")

	if c.publisher != nil {
		if perr := c.publisher.PublishCalculated(ctx, rec); perr != nil {
			c.logger.Warn().Err(perr).Str("calculation_id", rec.ID).Msg("publish calculation event")
		}
	}
	return &rec, OutcomeCreated, nil
}

// CalculationAudit builds the audit entry written together with rec.
func CalculationAudit(rec CalculationRecord) (generic.AuditEntry, error) {
	rec.Idempotent = false
	doc, err := json.Marshal(rec)
	if err != nil {
		return generic.AuditEntry{}, fmt.Errorf("encode audit document: %w", err)
	}
	return generic.AuditEntry{
		ID:         "calculation:" + rec.ID + ":create",
		TenantID:   rec.TenantID,
		ActorID:    rec.CreatedBy,
		Action:     generic.AuditCreate,
		EntityType: "calculation",
		EntityID:   rec.ID,
		After:      doc,
		At:         rec.CreatedAt,
	}, nil
}

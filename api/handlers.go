/*
handlers.go - HTTP API handlers for the labor cost engine

PURPOSE:
  Exposes the payroll engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the payroll, burden and factory
  packages. Every route below /api except health is tenant scoped.

ENDPOINTS:
  Employees:
    GET    /api/employees                 List employees
    POST   /api/employees                 Create or update (dedupe id)
    GET    /api/employees/{id}            Get employee
    PUT    /api/employees/{id}            Update employee
    GET    /api/employees/{id}/accruals   Period engine over ?from=&to= (YYYY-MM)
    GET    /api/employees/{id}/burden     Employer burden over ?from=&to=

  Settings:
    GET    /api/settings                  Stored and effective tables
    PUT    /api/settings                  Replace tenant settings

  Calculations:
    POST   /api/calculations              Create (201) or replay (200, idempotent)
    GET    /api/calculations              List (?employee_id=&period=&limit=)
    GET    /api/calculations/{id}         Get by fingerprint
    POST   /api/calculations/batch        Every employee for one period

  Reports:
    GET    /api/burden                    Burden of all employees by pay item
    GET    /api/audit                     Audit trail (?entity_type=&entity_id=&actor_id=&limit=)

ERROR HANDLING:
  Errors are generic.Error values mapped to HTTP status by code:
  - 400: VALIDATION_FAILED, with per-field details
  - 401/403: missing identity headers
  - 402: inactive subscription
  - 404: NOT_FOUND
  - 500: everything else; details are logged, never returned

SEE ALSO:
  - dto.go: Request/response data structures
  - batch.go: Batch period run
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/warp/labor-engine/burden"
	"github.com/warp/labor-engine/factory"
	"github.com/warp/labor-engine/generic"
	"github.com/warp/labor-engine/payroll"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// DefaultBatchWorkers is used when Handler.BatchWorkers is not set.
const DefaultBatchWorkers = 4

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      payroll.Store
	Calculator *payroll.Calculator
	Factory    *factory.Factory

	// StoreName and StripeConfigured are reported by the health endpoint.
	StoreName        string
	StripeConfigured bool

	BatchWorkers int

	now func() time.Time
}

// NewHandler creates a handler over store and calc.
func NewHandler(store payroll.Store, calc *payroll.Calculator) *Handler {
	return &Handler{
		Store:        store,
		Calculator:   calc,
		Factory:      factory.New(),
		BatchWorkers: DefaultBatchWorkers,
		now:          time.Now,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees of the tenant.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context(), TenantFrom(r.Context()))
	if err != nil {
		writeErr(w, r, generic.Internal(err, "employee.list"))
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.loadEmployee(r, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// SaveEmployee creates or updates an employee. Without an id in the body or
// URL the id is derived from tenant, name and dates, so resubmitting the
// same form updates the same employee.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := TenantFrom(ctx)

	body, err := readBody(w, r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	emp, err := h.Factory.ParseEmployee(tenant, body, h.Calculator.Today())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if urlID := chi.URLParam(r, "id"); urlID != "" {
		emp.ID = urlID
	}

	now := h.now().UTC()
	emp.CreatedAt, emp.UpdatedAt = now, now
	existing, err := h.Store.GetEmployee(ctx, tenant, emp.ID)
	switch {
	case err == nil:
		emp.CreatedAt = existing.CreatedAt
	case !errors.Is(err, generic.ErrEmployeeNotFound):
		writeErr(w, r, generic.Internal(err, "employee.save"))
		return
	}

	created, err := h.Store.SaveEmployee(ctx, emp)
	if err != nil {
		writeErr(w, r, generic.Internal(err, "employee.save"))
		return
	}

	action := generic.AuditUpdate
	status := http.StatusOK
	if created {
		action = generic.AuditCreate
		status = http.StatusCreated
	}
	h.audit(r, action, "employee", emp.ID, emp)
	writeJSON(w, status, toEmployeeDTO(emp))
}

// GetAccruals runs the period engine for one employee.
func (h *Handler) GetAccruals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emp, err := h.loadEmployee(r, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	window, err := parseWindow(r, h.Calculator.Today())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	settings, err := h.Store.GetSettings(ctx, TenantFrom(ctx))
	if err != nil {
		writeErr(w, r, generic.Internal(err, "accruals.load_settings"))
		return
	}

	engine := payroll.NewEngine(h.Calculator.Tables())
	if settings != nil {
		engine.Tables = engine.Tables.WithYears(settings.Taxes)
		if settings.Proration != nil {
			engine.Rules = *settings.Proration
		}
	}
	result, err := engine.Run(emp.Span(), window)
	if err != nil {
		writeErr(w, r, generic.InvalidErr(err, "accruals.run", "employee"))
		return
	}

	resp := AccrualsResponse{
		EmployeeID: emp.ID,
		From:       window.Start.String(),
		To:         window.End.String(),
		Months:     make([]AccrualMonthDTO, len(result.Months)),
		Totals:     payroll.RoundTotals(result.Totals),
	}
	for i, m := range result.Months {
		resp.Months[i] = AccrualMonthDTO{
			Month:      m.Month.String(),
			DaysWorked: m.DaysWorked,
			Eligible:   m.Eligible,
			Results:    payroll.RoundResults(m),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetBurden returns the employer burden report for one employee.
func (h *Handler) GetBurden(w http.ResponseWriter, r *http.Request) {
	emp, err := h.loadEmployee(r, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	window, err := parseWindow(r, h.Calculator.Today())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	report, err := burdenFor(*emp, window)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// BurdenSummary aggregates the burden of every employee by pay item.
func (h *Handler) BurdenSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	window, err := parseWindow(r, h.Calculator.Today())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	employees, err := h.Store.ListEmployees(ctx, TenantFrom(ctx))
	if err != nil {
		writeErr(w, r, generic.Internal(err, "burden.list_employees"))
		return
	}

	reports := make([]burden.Report, 0, len(employees))
	for _, e := range employees {
		report, err := burdenFor(e, window)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		reports = append(reports, report)
	}

	resp := BurdenSummaryResponse{
		From:      window.Start.String(),
		To:        window.End.String(),
		Employees: len(reports),
		Items:     burden.AggregateByItem(reports),
	}
	for _, item := range resp.Items {
		resp.Total += item.Amount
	}
	writeJSON(w, http.StatusOK, resp)
}

func burdenFor(e payroll.Employee, window generic.Period) (burden.Report, error) {
	sector, err := burden.ParseSector(e.Sector)
	if err != nil {
		return burden.Report{}, generic.InvalidErr(err, "burden.compute", "sector")
	}
	report, err := burden.Compute(e.ID, e.Span(), sector, window)
	if err != nil {
		return burden.Report{}, generic.InvalidErr(err, "burden.compute", "employee")
	}
	return report, nil
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns the tenant settings and the effective tables.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := TenantFrom(ctx)
	settings, err := h.Store.GetSettings(ctx, tenant)
	if err != nil {
		writeErr(w, r, generic.Internal(err, "settings.get"))
		return
	}
	if settings == nil {
		settings = &payroll.Settings{TenantID: tenant}
	}
	writeJSON(w, http.StatusOK, h.settingsDTO(*settings))
}

// PutSettings replaces the tenant settings.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := readBody(w, r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	settings, err := h.Factory.ParseSettings(TenantFrom(ctx), body)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	settings.UpdatedAt = h.now().UTC()
	if err := h.Store.SaveSettings(ctx, settings); err != nil {
		writeErr(w, r, generic.Internal(err, "settings.save"))
		return
	}
	h.audit(r, generic.AuditUpdate, "settings", settings.TenantID, settings)
	writeJSON(w, http.StatusOK, h.settingsDTO(settings))
}

func (h *Handler) settingsDTO(s payroll.Settings) SettingsDTO {
	dto := SettingsDTO{
		TenantID:  s.TenantID,
		Taxes:     s.Taxes,
		Proration: payroll.DefaultProrationRules(),
		Effective: h.Calculator.Tables().WithYears(s.Taxes),
	}
	if dto.Taxes == nil {
		dto.Taxes = map[int]payroll.TaxYear{}
	}
	if s.Proration != nil {
		dto.Proration = *s.Proration
	}
	if !s.UpdatedAt.IsZero() {
		dto.UpdatedAt = s.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

// CreateCalculation computes one employee's month. A replay of identical
// inputs answers 200 with idempotent=true and the stored record.
func (h *Handler) CreateCalculation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CalculateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	override, err := h.Factory.ParseOverride(req.Override)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	rec, err := h.Calculator.Calculate(ctx, payroll.Request{
		TenantID:   TenantFrom(ctx),
		EmployeeID: req.EmployeeID,
		ActorID:    ActorFrom(ctx),
		Period:     req.Period,
		Override:   override,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}

	status := http.StatusCreated
	if rec.Idempotent {
		status = http.StatusOK
	}
	writeJSON(w, status, rec)
}

// GetCalculation returns a stored record by id.
func (h *Handler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.Store.GetCalculation(ctx, TenantFrom(ctx), chi.URLParam(r, "id"))
	if errors.Is(err, generic.ErrRecordNotFound) {
		writeErr(w, r, generic.NotFound(err, "calculation.get", "calculation not found"))
		return
	}
	if err != nil {
		writeErr(w, r, generic.Internal(err, "calculation.get"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListCalculations lists records, newest first.
func (h *Handler) ListCalculations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	period := q.Get("period")
	if period != "" {
		if _, err := generic.ParseMonth(period); err != nil {
			writeErr(w, r, generic.Invalid("calculation.list", "invalid query", map[string]string{"period": "must be YYYY-MM"}))
			return
		}
	}

	recs, err := h.Store.ListCalculations(ctx, payroll.CalculationFilter{
		TenantID:   TenantFrom(ctx),
		EmployeeID: q.Get("employee_id"),
		Period:     period,
		Limit:      limit,
	})
	if err != nil {
		writeErr(w, r, generic.Internal(err, "calculation.list"))
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// RunBatch calculates one period for every employee of the tenant.
func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req BatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if _, err := generic.ParseMonth(req.Period); err != nil {
		writeErr(w, r, generic.Invalid("batch.validate", "invalid batch request", map[string]string{"period": "must be YYYY-MM"}))
		return
	}
	override, err := h.Factory.ParseOverride(req.Override)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	resp, err := h.runBatch(ctx, TenantFrom(ctx), ActorFrom(ctx), req.Period, override)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	zerolog.Ctx(ctx).Info().
		Str("period", resp.Period).
		Int("created", resp.Created).
		Int("idempotent", resp.Idempotent).
		Int("failed", resp.Failed).
		Msg("batch run finished")
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// AUDIT / HEALTH
// =============================================================================

// ListAudit returns the tenant's audit trail, newest first.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	entries, err := h.Store.QueryAudit(ctx, generic.AuditFilter{
		TenantID:   TenantFrom(ctx),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		ActorID:    q.Get("actor_id"),
		Limit:      limit,
	})
	if err != nil {
		writeErr(w, r, generic.Internal(err, "audit.list"))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Health reports store reachability. 503 when the store is down.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dto := HealthDTO{
		Status:           "ok",
		Store:            "ok",
		StripeConfigured: h.StripeConfigured,
		Timezone:         h.Calculator.Timezone(),
	}
	status := http.StatusOK
	if err := h.Store.Ping(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("store", h.StoreName).Msg("health check failed")
		dto.Status, dto.Store = "degraded", "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) loadEmployee(r *http.Request, id string) (*payroll.Employee, error) {
	emp, err := h.Store.GetEmployee(r.Context(), TenantFrom(r.Context()), id)
	if errors.Is(err, generic.ErrEmployeeNotFound) {
		return nil, generic.NotFound(err, "employee.get", "employee not found")
	}
	if err != nil {
		return nil, generic.Internal(err, "employee.get")
	}
	return emp, nil
}

// audit appends an entry for a mutation that already succeeded. A failure
// is logged; the mutation is not rolled back.
func (h *Handler) audit(r *http.Request, action generic.AuditAction, entityType, entityID string, after any) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	doc, err := json.Marshal(after)
	if err != nil {
		logger.Error().Err(err).Str("entity_type", entityType).Msg("failed to encode audit entry")
		return
	}
	now := h.now().UTC()
	entry := generic.AuditEntry{
		ID:         fmt.Sprintf("%s:%s:%s:%s", entityType, entityID, action, randomSuffix()),
		TenantID:   TenantFrom(ctx),
		ActorID:    ActorFrom(ctx),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		After:      doc,
		At:         now,
	}
	if err := h.Store.AppendAudit(ctx, entry); err != nil {
		logger.Error().Err(err).Str("entity_type", entityType).Str("entity_id", entityID).Msg("failed to append audit entry")
	}
}

// randomSuffix makes audit ids for mutable entities unique; calculation
// audit ids are deterministic and built by payroll.CalculationAudit.
func randomSuffix() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b[:])
}

// parseWindow reads ?from=&to=. Each accepts YYYY-MM (expanded to the
// month's first or last day) or a full date. Defaults: January of today's
// year through the end of today's month.
func parseWindow(r *http.Request, today generic.Date) (generic.Period, error) {
	const op = "window.parse"
	q := r.URL.Query()
	fields := map[string]string{}

	window := generic.Period{
		Start: generic.NewDate(today.Year(), time.January, 1),
		End:   generic.LastOfMonth(today.Year(), today.Month()),
	}
	if s := q.Get("from"); s != "" {
		d, err := parseBound(s, false)
		if err != nil {
			fields["from"] = "must be YYYY-MM or a date"
		}
		window.Start = d
	}
	if s := q.Get("to"); s != "" {
		d, err := parseBound(s, true)
		if err != nil {
			fields["to"] = "must be YYYY-MM or a date"
		}
		window.End = d
	}
	if len(fields) == 0 && !window.Valid() {
		fields["to"] = "must not be before from"
	}
	if len(fields) > 0 {
		return generic.Period{}, generic.Invalid(op, "invalid window", fields)
	}
	return window, nil
}

func parseBound(s string, end bool) (generic.Date, error) {
	if m, err := generic.ParseMonth(s); err == nil {
		if end {
			return m.Last(), nil
		}
		return m.First(), nil
	}
	return generic.ParseDate(s, generic.FormatAuto)
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, generic.Invalid("query.parse", "invalid query", map[string]string{"limit": "must be a non-negative integer"})
	}
	return n, nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, generic.Invalid("body.read", "invalid request body", map[string]string{"body": err.Error()})
	}
	return body, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return generic.Invalid("body.decode", "invalid JSON", map[string]string{"body": err.Error()})
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// statusFor maps an error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case generic.CodeValidation:
		return http.StatusBadRequest
	case generic.CodeNotFound:
		return http.StatusNotFound
	case generic.CodePaymentRequired:
		return http.StatusPaymentRequired
	case generic.CodeUnauthorized:
		return http.StatusUnauthorized
	case generic.CodeForbidden:
		return http.StatusForbidden
	case generic.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeErr writes err as an ErrorResponse. Internal errors are logged with
// their cause; the client only sees a generic message.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code := generic.ErrorCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{
		Code:      code,
		Error:     generic.ErrorMessage(err),
		Fields:    generic.ErrorFields(err),
		RequestID: requestID(r),
	})
}

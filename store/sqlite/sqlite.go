/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements payroll.Store and billing.SubscriptionStore on SQLite. The
  Postgres store (store/postgres) follows the same layout with dialect
  differences only.

INTERFACES IMPLEMENTED:
  payroll.EmployeeStore:      employee upsert and lookup
  payroll.SettingsStore:      per-tenant settings document
  payroll.CalculationStore:   immutable calculation records
  generic.AuditLog:           append-only audit trail
  billing.SubscriptionStore:  synced subscription status

IMMUTABILITY:
  - No UPDATE or DELETE statements on the calculations table
  - CreateCalculation is INSERT ... ON CONFLICT DO NOTHING plus the audit
    insert, in one transaction; zero rows affected means the fingerprint
    already exists and nothing is written

KEY TABLES:
  employees:     one row per (tenant, employee)
  settings:      one JSON document per tenant
  calculations:  one JSON document per (tenant, fingerprint)
  audit_logs:    who did what when
  subscriptions: billing status per tenant

CONCURRENCY:
  The pool is capped at one connection, so SQLite serializes every
  statement and ":memory:" databases survive between calls.

MIGRATION:
  Versioned goose migrations embedded from migrations/, applied on New().

USAGE:
  store, err := sqlite.New("./data/labor.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - payroll/store.go: interface definitions
  - store/memory: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/warp/labor-engine/billing"
	"github.com/warp/labor-engine/generic"
	"github.com/warp/labor-engine/payroll"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// goose keeps its settings in package globals.
var gooseMu sync.Mutex

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and applies migrations.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.Up(db, "migrations")
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", generic.ErrStoreUnavailable, err)
	}
	return nil
}

// =============================================================================
// EMPLOYEES (payroll.EmployeeStore)
// =============================================================================

const employeeColumns = `id, tenant_id, name, monthly_salary_cents, admission, termination,
	sector, active, created_at, updated_at`

func (s *Store) GetEmployee(ctx context.Context, tenantID, employeeID string) (*payroll.Employee, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE tenant_id = ? AND id = ?`,
		tenantID, employeeID)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &e, nil
}

// SaveEmployee upserts the employee, keeping the original created_at.
func (s *Store) SaveEmployee(ctx context.Context, e payroll.Employee) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM employees WHERE tenant_id = ? AND id = ?`,
		e.TenantID, e.ID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check employee: %w", err)
	}

	now := time.Now().UTC()
	created := e.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := e.UpdatedAt
	if updated.IsZero() {
		updated = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = excluded.name,
			monthly_salary_cents = excluded.monthly_salary_cents,
			admission = excluded.admission,
			termination = excluded.termination,
			sector = excluded.sector,
			active = excluded.active,
			updated_at = excluded.updated_at
	`,
		e.ID, e.TenantID, e.Name, int64(e.MonthlySalary), e.Admission.String(), nullDate(e.Termination),
		e.Sector, e.Active, formatTime(created), formatTime(updated),
	)
	if err != nil {
		return false, fmt.Errorf("failed to save employee: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return n == 0, nil
}

func (s *Store) ListEmployees(ctx context.Context, tenantID string) ([]payroll.Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE tenant_id = ? ORDER BY name, id`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	out := []payroll.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (payroll.Employee, error) {
	var (
		e                    payroll.Employee
		salary               int64
		admission            string
		termination          sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&e.ID, &e.TenantID, &e.Name, &salary, &admission, &termination,
		&e.Sector, &e.Active, &createdAt, &updatedAt); err != nil {
		return payroll.Employee{}, err
	}
	e.MonthlySalary = generic.Cents(salary)

	var err error
	if e.Admission, err = generic.ParseDate(admission, generic.FormatISO); err != nil {
		return payroll.Employee{}, err
	}
	if termination.Valid && termination.String != "" {
		d, err := generic.ParseDate(termination.String, generic.FormatISO)
		if err != nil {
			return payroll.Employee{}, err
		}
		e.Termination = &d
	}
	e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	e.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return e, nil
}

// =============================================================================
// SETTINGS (payroll.SettingsStore)
// =============================================================================

func (s *Store) GetSettings(ctx context.Context, tenantID string) (*payroll.Settings, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM settings WHERE tenant_id = ?`, tenantID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	var st payroll.Settings
	if err := json.Unmarshal([]byte(doc), &st); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &st, nil
}

func (s *Store) SaveSettings(ctx context.Context, st payroll.Settings) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (tenant_id, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at
	`, st.TenantID, string(doc), formatTime(st.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// =============================================================================
// CALCULATIONS (payroll.CalculationStore)
// =============================================================================

func (s *Store) GetCalculation(ctx context.Context, tenantID, id string) (*payroll.CalculationRecord, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM calculations WHERE tenant_id = ? AND id = ?`, tenantID, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calculation: %w", err)
	}
	return decodeRecord(doc)
}

// CreateCalculation inserts the record if absent and writes its audit entry
// in the same transaction.
func (s *Store) CreateCalculation(ctx context.Context, rec payroll.CalculationRecord, audit generic.AuditEntry) error {
	rec.Idempotent = false
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode calculation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO calculations (tenant_id, id, employee_id, period, doc, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO NOTHING
	`, rec.TenantID, rec.ID, rec.EmployeeID, rec.Period, string(doc), formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert calculation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert calculation: %w", err)
	}
	if n == 0 {
		return generic.ErrDuplicateFingerprint
	}

	if err := insertAudit(ctx, tx, audit); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *Store) ListCalculations(ctx context.Context, f payroll.CalculationFilter) ([]payroll.CalculationRecord, error) {
	where := []string{"tenant_id = ?"}
	args := []any{f.TenantID}
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.Period != "" {
		where = append(where, "period = ?")
		args = append(args, f.Period)
	}
	query := `SELECT doc FROM calculations WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list calculations: %w", err)
	}
	defer rows.Close()

	out := []payroll.CalculationRecord{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan calculation: %w", err)
		}
		rec, err := decodeRecord(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func decodeRecord(doc string) (*payroll.CalculationRecord, error) {
	var rec payroll.CalculationRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode calculation: %w", err)
	}
	return &rec, nil
}

// =============================================================================
// AUDIT LOG (generic.AuditLog)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	return insertAudit(ctx, s.db, entry)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAudit(ctx context.Context, db execer, e generic.AuditEntry) error {
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO audit_logs (tenant_id, id, actor_id, action, entity_type, entity_id, after, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.TenantID, e.ID, e.ActorID, string(e.Action), e.EntityType, e.EntityID, nullJSON(e.After), formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// QueryAudit returns matching entries, newest first.
func (s *Store) QueryAudit(ctx context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	where := []string{"tenant_id = ?"}
	args := []any{f.TenantID}
	if f.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, f.EntityType)
	}
	if f.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	query := `SELECT tenant_id, id, actor_id, action, entity_type, entity_id, after, at
		FROM audit_logs WHERE ` + strings.Join(where, " AND ") + ` ORDER BY at DESC, rowid DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	out := []generic.AuditEntry{}
	for rows.Next() {
		var (
			e      generic.AuditEntry
			action string
			after  sql.NullString
			at     string
		)
		if err := rows.Scan(&e.TenantID, &e.ID, &e.ActorID, &action, &e.EntityType, &e.EntityID, &after, &at); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = generic.AuditAction(action)
		if after.Valid {
			e.After = []byte(after.String)
		}
		e.At, _ = time.Parse(timeLayout, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// SUBSCRIPTIONS (billing.SubscriptionStore)
// =============================================================================

func (s *Store) GetSubscription(ctx context.Context, tenantID string) (*billing.Subscription, error) {
	var (
		sub       billing.Subscription
		periodEnd sql.NullString
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, stripe_subscription_id, status, current_period_end, updated_at
		FROM subscriptions WHERE tenant_id = ?
	`, tenantID).Scan(&sub.TenantID, &sub.StripeSubscriptionID, &sub.Status, &periodEnd, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd, _ = time.Parse(timeLayout, periodEnd.String)
	}
	sub.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &sub, nil
}

func (s *Store) SaveSubscription(ctx context.Context, sub billing.Subscription) error {
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = time.Now().UTC()
	}
	var periodEnd any
	if !sub.CurrentPeriodEnd.IsZero() {
		periodEnd = formatTime(sub.CurrentPeriodEnd)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (tenant_id, stripe_subscription_id, status, current_period_end, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			stripe_subscription_id = excluded.stripe_subscription_id,
			status = excluded.status,
			current_period_end = excluded.current_period_end,
			updated_at = excluded.updated_at
	`, sub.TenantID, sub.StripeSubscriptionID, sub.Status, periodEnd, formatTime(sub.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func nullDate(d *generic.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

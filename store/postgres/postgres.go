/*
Package postgres provides a PostgreSQL implementation of the storage
interfaces on a jackc/pgx connection pool.

PURPOSE:
  Production backend. Same tables and semantics as store/sqlite; JSON
  documents are JSONB, dates are DATE, timestamps are TIMESTAMPTZ.

IMMUTABILITY:
  CreateCalculation is INSERT ... ON CONFLICT DO NOTHING plus the audit
  insert in one transaction. Zero rows affected means another writer
  already stored this fingerprint; the transaction is rolled back and
  ErrDuplicateFingerprint returned.

MIGRATION:
  goose migrations embedded from migrations/, run through the pgx stdlib
  driver on New().

SEE ALSO:
  - store/sqlite: the embedded equivalent
  - store/storetest: shared behavioral suite
*/
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/warp/labor-engine/billing"
	"github.com/warp/labor-engine/generic"
	"github.com/warp/labor-engine/payroll"
)

//go:embed migrations/*.sql
var migrations embed.FS

var gooseMu sync.Mutex

// Store implements all storage interfaces on Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and applies migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", generic.ErrStoreUnavailable, err)
	}
	if err := migrate(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return &Store{pool: pool}, nil
}

func migrate(pool *pgxpool.Pool) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.Up(db, "migrations")
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Truncate empties every table. Tests only.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`TRUNCATE employees, settings, calculations, audit_logs, subscriptions`)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", generic.ErrStoreUnavailable, err)
	}
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, tenant_id, name, monthly_salary_cents, admission, termination,
	sector, active, created_at, updated_at`

func (s *Store) GetEmployee(ctx context.Context, tenantID, employeeID string) (*payroll.Employee, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE tenant_id = $1 AND id = $2`,
		tenantID, employeeID)
	e, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, generic.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &e, nil
}

// SaveEmployee upserts the employee. xmax = 0 on the returned row means
// the row was inserted rather than updated.
func (s *Store) SaveEmployee(ctx context.Context, e payroll.Employee) (bool, error) {
	now := time.Now().UTC()
	created := e.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := e.UpdatedAt
	if updated.IsZero() {
		updated = now
	}

	var inserted bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			monthly_salary_cents = EXCLUDED.monthly_salary_cents,
			admission = EXCLUDED.admission,
			termination = EXCLUDED.termination,
			sector = EXCLUDED.sector,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)
	`,
		e.ID, e.TenantID, e.Name, int64(e.MonthlySalary), e.Admission.Time(), dateArg(e.Termination),
		e.Sector, e.Active, created, updated,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to save employee: %w", err)
	}
	return inserted, nil
}

func (s *Store) ListEmployees(ctx context.Context, tenantID string) ([]payroll.Employee, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE tenant_id = $1 ORDER BY name, id`, tenantID)
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

func scanEmployee(row pgx.Row) (payroll.Employee, error) {
	var (
		e           payroll.Employee
		salary      int64
		admission   time.Time
		termination *time.Time
	)
	if err := row.Scan(&e.ID, &e.TenantID, &e.Name, &salary, &admission, &termination,
		&e.Sector, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return payroll.Employee{}, err
	}
	e.MonthlySalary = generic.Cents(salary)
	e.Admission = generic.DateOf(admission)
	if termination != nil {
		d := generic.DateOf(*termination)
		e.Termination = &d
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *Store) GetSettings(ctx context.Context, tenantID string) (*payroll.Settings, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM settings WHERE tenant_id = $1`, tenantID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	var st payroll.Settings
	if err := json.Unmarshal(doc, &st); err != nil {
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO settings (tenant_id, doc, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`, st.TenantID, string(doc), st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// =============================================================================
// CALCULATIONS
// =============================================================================

func (s *Store) GetCalculation(ctx context.Context, tenantID, id string) (*payroll.CalculationRecord, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM calculations WHERE tenant_id = $1 AND id = $2`, tenantID, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, generic.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calculation: %w", err)
	}
	return decodeRecord(doc)
}

func (s *Store) CreateCalculation(ctx context.Context, rec payroll.CalculationRecord, audit generic.AuditEntry) error {
	rec.Idempotent = false
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode calculation: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO calculations (tenant_id, id, employee_id, period, doc, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, id) DO NOTHING
	`, rec.TenantID, rec.ID, rec.EmployeeID, rec.Period, string(doc), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert calculation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return generic.ErrDuplicateFingerprint
	}
	if err := insertAudit(ctx, tx, audit); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *Store) ListCalculations(ctx context.Context, f payroll.CalculationFilter) ([]payroll.CalculationRecord, error) {
	q := newQuery(f.TenantID)
	q.eq("employee_id", f.EmployeeID)
	q.eq("period", f.Period)
	sql := `SELECT doc FROM calculations WHERE ` + q.where() + ` ORDER BY created_at DESC, id` + q.limit(f.Limit)

	rows, err := s.pool.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list calculations: %w", err)
	}
	defer rows.Close()

	out := []payroll.CalculationRecord{}
	for rows.Next() {
		var doc []byte
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

func decodeRecord(doc []byte) (*payroll.CalculationRecord, error) {
	var rec payroll.CalculationRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode calculation: %w", err)
	}
	return &rec, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	return insertAudit(ctx, s.pool, entry)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertAudit(ctx context.Context, db execer, e generic.AuditEntry) error {
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := db.Exec(ctx, `
		INSERT INTO audit_logs (tenant_id, id, actor_id, action, entity_type, entity_id, after, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.TenantID, e.ID, e.ActorID, string(e.Action), e.EntityType, e.EntityID, nullJSON(e.After), at)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// QueryAudit returns matching entries, newest first.
func (s *Store) QueryAudit(ctx context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	q := newQuery(f.TenantID)
	q.eq("entity_type", f.EntityType)
	q.eq("entity_id", f.EntityID)
	q.eq("actor_id", f.ActorID)
	sql := `SELECT tenant_id, id, actor_id, action, entity_type, entity_id, after, at
		FROM audit_logs WHERE ` + q.where() + ` ORDER BY at DESC, seq DESC` + q.limit(f.Limit)

	rows, err := s.pool.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	out := []generic.AuditEntry{}
	for rows.Next() {
		var (
			e      generic.AuditEntry
			action string
			after  []byte
		)
		if err := rows.Scan(&e.TenantID, &e.ID, &e.ActorID, &action, &e.EntityType, &e.EntityID, &after, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = generic.AuditAction(action)
		if len(after) > 0 {
			e.After = after
		}
		e.At = e.At.UTC()
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
		periodEnd *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT tenant_id, stripe_subscription_id, status, current_period_end, updated_at
		FROM subscriptions WHERE tenant_id = $1
	`, tenantID).Scan(&sub.TenantID, &sub.StripeSubscriptionID, &sub.Status, &periodEnd, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, billing.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if periodEnd != nil {
		sub.CurrentPeriodEnd = periodEnd.UTC()
	}
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}

func (s *Store) SaveSubscription(ctx context.Context, sub billing.Subscription) error {
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = time.Now().UTC()
	}
	var periodEnd *time.Time
	if !sub.CurrentPeriodEnd.IsZero() {
		periodEnd = &sub.CurrentPeriodEnd
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (tenant_id, stripe_subscription_id, status, current_period_end, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id) DO UPDATE SET
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = EXCLUDED.updated_at
	`, sub.TenantID, sub.StripeSubscriptionID, sub.Status, periodEnd, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// query accumulates tenant-scoped equality filters with numbered placeholders.
type query struct {
	conds []string
	args  []any
}

func newQuery(tenantID string) *query {
	return &query{conds: []string{"tenant_id = $1"}, args: []any{tenantID}}
}

// eq adds column = value; empty values are no filter.
func (q *query) eq(column, value string) {
	if value == "" {
		return
	}
	q.args = append(q.args, value)
	q.conds = append(q.conds, column+" = $"+strconv.Itoa(len(q.args)))
}

func (q *query) where() string { return strings.Join(q.conds, " AND ") }

func (q *query) limit(n int) string {
	if n <= 0 {
		return ""
	}
	q.args = append(q.args, n)
	return " LIMIT $" + strconv.Itoa(len(q.args))
}

func dateArg(d *generic.Date) any {
	if d == nil {
		return nil
	}
	return d.Time()
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

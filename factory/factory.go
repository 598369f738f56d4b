/*
Package factory converts request and configuration documents into payroll
types.

PURPOSE:
  Every document that enters the system (employee forms, tenant settings,
  calculation overrides) is decoded here, validated with struct tags, and
  turned into the typed value the engine consumes. Validation failures
  come back as a single generic.Error with one entry per bad field, keyed
  by the JSON name the caller sent.

JSON SCHEMA (employee):
  {
    "id": "optional; derived from the other fields when absent",
    "name": "Ana Souza",
    "monthly_salary": 3000.00,
    "admission": "2025-01-15",      // or 15/01/2025
    "termination": "2025-06-30",    // optional
    "sector": "commerce"            // commerce | industry | services
  }

JSON SCHEMA (settings):
  {
    "taxes": { "2025": { "flat_rate": 0.08, "primary": {...}, "income_tax": {...} } },
    "proration": { "commercial_month_days": 30, "fifteen_day_rule": true }
  }

USAGE:
  f := factory.New()
  emp, err := f.ParseEmployee("tenant-1", body, today)
  settings, err := f.ParseSettings("tenant-1", body)
  override, err := f.ParseOverride(raw)

SEE ALSO:
  - payroll/types.go: Employee, Settings
  - payroll/override.go: Override
*/
package factory

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"

	"github.com/warp/labor-engine/burden"
	"github.com/warp/labor-engine/generic"
	"github.com/warp/labor-engine/payroll"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// EmployeeJSON is the JSON representation of an employee form.
type EmployeeJSON struct {
	ID            string  `json:"id,omitempty" validate:"omitempty,max=64"`
	Name          string  `json:"name" validate:"required,max=200"`
	MonthlySalary float64 `json:"monthly_salary" validate:"gt=0"`
	Admission     string  `json:"admission" validate:"required"`
	Termination   string  `json:"termination,omitempty"`
	Sector        string  `json:"sector,omitempty" validate:"omitempty,oneof=commerce industry services"`
}

// SettingsJSON is the JSON representation of tenant settings.
type SettingsJSON struct {
	Taxes     map[string]payroll.TaxYear `json:"taxes,omitempty"`
	Proration *ProrationJSON             `json:"proration,omitempty"`
}

// ProrationJSON mirrors payroll.ProrationRules with bounds.
type ProrationJSON struct {
	CommercialMonthDays  int  `json:"commercial_month_days" validate:"min=1,max=31"`
	FifteenDayRule       bool `json:"fifteen_day_rule"`
	EligibilityThreshold int  `json:"eligibility_threshold,omitempty" validate:"min=0,max=31"`
}

// =============================================================================
// FACTORY
// =============================================================================

// Factory decodes and validates documents. Safe for concurrent use.
type Factory struct {
	validate *validator.Validate
}

// New creates a factory whose validation errors use JSON field names.
func New() *Factory {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Factory{validate: v}
}

// ParseEmployee decodes an employee form. Dates accept DD/MM/YYYY or
// YYYY-MM-DD. Admission after today or termination before admission fail
// validation.
func (f *Factory) ParseEmployee(tenantID string, data []byte, today generic.Date) (payroll.Employee, error) {
	const op = "employee.parse"

	var in EmployeeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return payroll.Employee{}, generic.Invalid(op, "invalid JSON", map[string]string{"body": err.Error()})
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Sector = strings.ToLower(strings.TrimSpace(in.Sector))

	fields := f.fieldErrors(in)
	if fields == nil {
		fields = map[string]string{}
	}

	var admission generic.Date
	if in.Admission != "" {
		d, err := generic.ParseDate(in.Admission, generic.FormatAuto)
		if err != nil {
			fields["admission"] = "must be DD/MM/YYYY or YYYY-MM-DD"
		} else {
			admission = d
		}
	}
	var termination *generic.Date
	if strings.TrimSpace(in.Termination) != "" {
		d, err := generic.ParseDate(in.Termination, generic.FormatAuto)
		if err != nil {
			fields["termination"] = "must be DD/MM/YYYY or YYYY-MM-DD"
		} else {
			termination = &d
		}
	}

	if !admission.IsZero() {
		if admission.After(today) {
			fields["admission"] = "cannot be in the future"
		}
		if termination != nil && termination.Before(admission) {
			fields["termination"] = "cannot be before admission"
		}
	}
	if len(fields) > 0 {
		return payroll.Employee{}, generic.Invalid(op, "invalid employee", fields)
	}

	sector, err := burden.ParseSector(in.Sector)
	if err != nil {
		return payroll.Employee{}, generic.InvalidErr(err, op, "sector")
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = DedupeID(tenantID, in.Name, admission, termination)
	}

	return payroll.Employee{
		ID:            id,
		TenantID:      tenantID,
		Name:          in.Name,
		MonthlySalary: generic.ToCents(in.MonthlySalary),
		Admission:     admission,
		Termination:   termination,
		Sector:        string(sector),
		Active:        termination == nil,
	}, nil
}

// DedupeIDLength is the number of hex characters in a derived employee id.
const DedupeIDLength = 20

// DedupeID derives a stable employee id so submitting the same form twice
// updates one employee instead of creating two:
// sha256(tenant::lower(name)::admission::termination)[:20].
func DedupeID(tenantID, name string, admission generic.Date, termination *generic.Date) string {
	term := ""
	if termination != nil {
		term = termination.String()
	}
	key := strings.Join([]string{
		tenantID,
		strings.ToLower(strings.TrimSpace(name)),
		admission.String(),
		term,
	}, "::")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:DedupeIDLength]
}

// ParseSettings decodes a settings document. Year keys must be four-digit
// years; every year's tables must be well formed.
func (f *Factory) ParseSettings(tenantID string, data []byte) (payroll.Settings, error) {
	const op = "settings.parse"

	var in SettingsJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return payroll.Settings{}, generic.Invalid(op, "invalid JSON", map[string]string{"body": err.Error()})
	}

	fields := map[string]string{}
	taxes := make(map[int]payroll.TaxYear, len(in.Taxes))
	for key, year := range in.Taxes {
		y, err := strconv.Atoi(key)
		if err != nil || y < 1900 || y > 9999 {
			fields["taxes."+key] = "key must be a four-digit year"
			continue
		}
		if err := year.Validate(); err != nil {
			fields["taxes."+key] = err.Error()
			continue
		}
		taxes[y] = year
	}

	var rules *payroll.ProrationRules
	if in.Proration != nil {
		for k, v := range f.fieldErrors(in.Proration) {
			fields["proration."+k] = v
		}
		rules = &payroll.ProrationRules{
			CommercialMonthDays:  in.Proration.CommercialMonthDays,
			FifteenDayRule:       in.Proration.FifteenDayRule,
			EligibilityThreshold: in.Proration.EligibilityThreshold,
		}
	}
	if len(fields) > 0 {
		return payroll.Settings{}, generic.Invalid(op, "invalid settings", fields)
	}

	return payroll.Settings{
		TenantID:  tenantID,
		Taxes:     taxes,
		Proration: rules,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// ParseOverride decodes an override. Empty input means no override.
func (f *Factory) ParseOverride(data []byte) (*payroll.Override, error) {
	const op = "override.parse"
	if len(strings.TrimSpace(string(data))) == 0 || string(data) == "null" {
		return nil, nil
	}
	var o payroll.Override
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, generic.Invalid(op, "invalid JSON", map[string]string{"override": err.Error()})
	}
	if fields := o.Validate(); fields != nil {
		return nil, generic.Invalid(op, "invalid override", fields)
	}
	if o.Empty() {
		return nil, nil
	}
	return &o, nil
}

// fieldErrors runs struct validation and flattens the result. Returns nil
// when v is valid.
func (f *Factory) fieldErrors(v any) map[string]string {
	err := f.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return fields
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

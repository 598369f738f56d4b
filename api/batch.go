/*
batch.go - Period run over every employee of a tenant

PURPOSE:
  Month close: compute one period for the whole tenant in one call. Each
  employee goes through the same Calculator as the single endpoint, so a
  re-run after a partial failure only creates what is missing.

DESIGN:
  - Bounded worker pool (errgroup.SetLimit) sized by BatchWorkers
  - Per-employee failures are reported in the response, never abort the run
  - Only a cancelled request context stops the run early
  - Items are returned in employee list order

SEE ALSO:
  - handlers.go: RunBatch endpoint
  - payroll/calculator.go: Calculate
*/
package api

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/warp/labor-engine/generic"
	"github.com/warp/labor-engine/payroll"
)

func (h *Handler) runBatch(ctx context.Context, tenantID, actorID, period string, override *payroll.Override) (BatchResponse, error) {
	employees, err := h.Store.ListEmployees(ctx, tenantID)
	if err != nil {
		return BatchResponse{}, generic.Internal(err, "batch.list_employees")
	}

	workers := h.BatchWorkers
	if workers < 1 {
		workers = DefaultBatchWorkers
	}

	items := make([]BatchItem, len(employees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, emp := range employees {
		i, emp := i, emp
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item := BatchItem{EmployeeID: emp.ID}
			rec, err := h.Calculator.Calculate(gctx, payroll.Request{
				TenantID:   tenantID,
				EmployeeID: emp.ID,
				ActorID:    actorID,
				Period:     period,
				Override:   override,
			})
			if err != nil {
				item.Code = generic.ErrorCode(err)
				item.Error = generic.ErrorMessage(err)
				item.Fields = generic.ErrorFields(err)
			} else {
				item.CalculationID = rec.ID
				item.Idempotent = rec.Idempotent
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResponse{}, generic.Internal(err, "batch.run")
	}

	resp := BatchResponse{Period: period, Items: items}
	for _, it := range items {
		switch {
		case it.Error != "":
			resp.Failed++
		case it.Idempotent:
			resp.Idempotent++
		default:
			resp.Created++
		}
	}
	return resp, nil
}

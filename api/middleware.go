/*
middleware.go - Identity, subscription and logging middleware

PURPOSE:
  The upstream proxy authenticates callers and forwards their identity in
  headers. These middlewares turn those headers into request context and
  enforce the tenant subscription before any handler runs.

HEADERS:
  X-Tenant-ID   required, 403 when missing
  X-Actor-ID    required, 401 when missing

ORDER:
  RequestLogging -> TenantGate -> RequireSubscription -> handler

SEE ALSO:
  - billing/billing.go: Gate implementations
  - server.go: where the chain is assembled
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/warp/labor-engine/billing"
	"github.com/warp/labor-engine/generic"
)

const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderActorID  = "X-Actor-ID"

	HeaderRequestID = "X-Request-Id"
)

type contextKey string

const (
	tenantKey contextKey = "tenant_id"
	actorKey  contextKey = "actor_id"
)

// TenantFrom returns the tenant set by TenantGate.
func TenantFrom(ctx context.Context) string {
	s, _ := ctx.Value(tenantKey).(string)
	return s
}

// ActorFrom returns the actor set by TenantGate.
func ActorFrom(ctx context.Context) string {
	s, _ := ctx.Value(actorKey).(string)
	return s
}

// WithIdentity stores tenant and actor in ctx.
func WithIdentity(ctx context.Context, tenantID, actorID string) context.Context {
	ctx = context.WithValue(ctx, tenantKey, tenantID)
	return context.WithValue(ctx, actorKey, actorID)
}

// TenantGate rejects requests without tenant or actor headers.
func TenantGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := strings.TrimSpace(r.Header.Get(HeaderTenantID))
		if tenant == "" {
			writeErr(w, r, generic.Errorf(generic.CodeForbidden, "gate.tenant", "missing %s header", HeaderTenantID))
			return
		}
		actor := strings.TrimSpace(r.Header.Get(HeaderActorID))
		if actor == "" {
			writeErr(w, r, generic.Errorf(generic.CodeUnauthorized, "gate.actor", "missing %s header", HeaderActorID))
			return
		}

		ctx := WithIdentity(r.Context(), tenant, actor)
		zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("tenant_id", tenant).Str("actor_id", actor)
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSubscription answers 402 when the tenant has no active
// subscription. Gate failures are 500: an outage must not look like an
// expired plan.
func RequireSubscription(gate billing.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			active, err := gate.Active(r.Context(), TenantFrom(r.Context()))
			if err != nil {
				writeErr(w, r, generic.Internal(err, "gate.subscription"))
				return
			}
			if !active {
				writeErr(w, r, generic.Errorf(generic.CodePaymentRequired, "gate.subscription", "subscription inactive"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// REQUEST LOGGING
// =============================================================================

// RequestLogging is the hlog chain. Each request gets its own copy of base
// in the context (read it back with zerolog.Ctx or hlog.FromRequest) and
// one access line when it completes. The request id is echoed in
// X-Request-Id.
func RequestLogging(base zerolog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		hlog.NewHandler(base),
		hlog.MethodHandler("method"),
		hlog.URLHandler("url"),
		hlog.RequestIDHandler("request_id", HeaderRequestID),
		hlog.AccessHandler(accessLine),
	}
}

func accessLine(r *http.Request, status, size int, duration time.Duration) {
	if status == 0 {
		status = http.StatusOK
	}
	logger := hlog.FromRequest(r)
	event := logger.Info()
	if status >= http.StatusInternalServerError {
		event = logger.Warn()
	}
	event.Int("status", status).
		Int("bytes", size).
		Dur("duration", duration).
		Msg("request")
}

// requestID returns the id set by hlog.RequestIDHandler, or "".
func requestID(r *http.Request) string {
	if id, ok := hlog.IDFromRequest(r); ok {
		return id.String()
	}
	return ""
}

/*
Package billing decides whether a tenant may run calculations.

PURPOSE:
  Calculation endpoints are a paid feature. A Gate answers "is this
  tenant's subscription active?"; the API turns a false answer into
  402 Payment Required.

GATES:
  - StaticGate: fixed answer (SUBSCRIPTION_GATE=off, tests)
  - StoreGate:  reads the locally synced subscription document
  - StripeGate: asks Stripe for the tenant's subscription status,
                caching answers briefly

SEE ALSO:
  - api/middleware.go: RequireSubscription
  - store/*: SubscriptionStore implementations
*/
package billing

import (
	"context"
	"errors"
	"time"
)

// ErrSubscriptionNotFound is returned when a tenant has no subscription.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// Subscription statuses that allow calculations.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
)

// Subscription is the locally synced view of a tenant's subscription.
type Subscription struct {
	TenantID             string    `json:"tenant_id"`
	StripeSubscriptionID string    `json:"stripe_subscription_id,omitempty"`
	Status               string    `json:"status"`
	CurrentPeriodEnd     time.Time `json:"current_period_end"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Active reports whether the status allows calculations.
func (s Subscription) Active() bool {
	return s.Status == StatusActive || s.Status == StatusTrialing
}

// SubscriptionStore persists subscription documents.
type SubscriptionStore interface {
	// GetSubscription returns ErrSubscriptionNotFound when absent.
	GetSubscription(ctx context.Context, tenantID string) (*Subscription, error)
	SaveSubscription(ctx context.Context, sub Subscription) error
}

// Gate decides whether a tenant has an active subscription.
type Gate interface {
	Active(ctx context.Context, tenantID string) (bool, error)
}

// StaticGate always returns the same answer.
type StaticGate bool

func (g StaticGate) Active(context.Context, string) (bool, error) { return bool(g), nil }

// StoreGate reads the subscription document from the store. A missing
// document means inactive.
type StoreGate struct {
	Store SubscriptionStore
}

func (g StoreGate) Active(ctx context.Context, tenantID string) (bool, error) {
	sub, err := g.Store.GetSubscription(ctx, tenantID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sub.Active(), nil
}

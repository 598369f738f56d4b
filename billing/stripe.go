package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/subscription"
)

// DefaultStripeCacheTTL bounds how stale a cached Stripe answer may be.
const DefaultStripeCacheTTL = time.Minute

// FetchFunc loads a subscription from Stripe by id. ctx is the caller's
// request context; cancelling it cancels the Stripe call.
type FetchFunc func(ctx context.Context, id string) (*stripe.Subscription, error)

// StripeGate resolves the tenant's Stripe subscription id from the store,
// then asks Stripe for its live status. The status seen is written back to
// the store so StoreGate and the audit trail stay in sync.
type StripeGate struct {
	store SubscriptionStore
	fetch FetchFunc
	ttl   time.Duration
	now   func() time.Time

	mu    sync.Mutex
	cache map[string]cachedStatus
}

type cachedStatus struct {
	active  bool
	expires time.Time
}

// NewStripeGate sets the package-level Stripe key and returns a gate.
func NewStripeGate(secretKey string, store SubscriptionStore) *StripeGate {
	stripe.Key = secretKey
	return NewStripeGateWithFetch(store, func(ctx context.Context, id string) (*stripe.Subscription, error) {
		params := &stripe.SubscriptionParams{}
		params.Context = ctx
		return subscription.Get(id, params)
	})
}

// NewStripeGateWithFetch lets tests replace the Stripe call.
func NewStripeGateWithFetch(store SubscriptionStore, fetch FetchFunc) *StripeGate {
	return &StripeGate{
		store: store,
		fetch: fetch,
		ttl:   DefaultStripeCacheTTL,
		now:   time.Now,
		cache: make(map[string]cachedStatus),
	}
}

func (g *StripeGate) Active(ctx context.Context, tenantID string) (bool, error) {
	now := g.now()
	g.mu.Lock()
	if c, ok := g.cache[tenantID]; ok && now.Before(c.expires) {
		g.mu.Unlock()
		return c.active, nil
	}
	g.mu.Unlock()

	local, err := g.store.GetSubscription(ctx, tenantID)
	if errors.Is(err, ErrSubscriptionNotFound) || (err == nil && local.StripeSubscriptionID == "") {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	sub, err := g.fetch(ctx, local.StripeSubscriptionID)
	if err != nil {
		return false, fmt.Errorf("fetch stripe subscription: %w", err)
	}
	status := sub.Status
	active := status == stripe.SubscriptionStatusActive || status == stripe.SubscriptionStatusTrialing

	if string(status) != local.Status {
		local.Status = string(status)
		local.UpdatedAt = now.UTC()
		if err := g.store.SaveSubscription(ctx, *local); err != nil {
			return false, fmt.Errorf("sync subscription status: %w", err)
		}
	}

	g.mu.Lock()
	g.cache[tenantID] = cachedStatus{active: active, expires: now.Add(g.ttl)}
	g.mu.Unlock()
	return active, nil
}

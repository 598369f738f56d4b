package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/warp/labor-engine/billing"
	"github.com/warp/labor-engine/store/memory"
)

func TestStaticGate(t *testing.T) {
	ok, err := billing.StaticGate(true).Active(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = billing.StaticGate(false).Active(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreGate(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	gate := billing.StoreGate{Store: st}

	ok, err := gate.Active(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok, "no subscription means inactive")

	require.NoError(t, st.SaveSubscription(ctx, billing.Subscription{TenantID: "t1", Status: "trialing"}))
	ok, err = gate.Active(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, st.SaveSubscription(ctx, billing.Subscription{TenantID: "t1", Status: "past_due"}))
	ok, err = gate.Active(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStripeGate_SyncsStatusAndCaches(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.SaveSubscription(ctx, billing.Subscription{
		TenantID: "t1", StripeSubscriptionID: "sub_123", Status: "incomplete",
	}))

	calls := 0
	gate := billing.NewStripeGateWithFetch(st, func(_ context.Context, id string) (*stripe.Subscription, error) {
		calls++
		assert.Equal(t, "sub_123", id)
		return &stripe.Subscription{ID: id, Status: stripe.SubscriptionStatusActive}, nil
	})

	ok, err := gate.Active(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.Active(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls, "second call is served from cache")

	sub, err := st.GetSubscription(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "active", sub.Status)
}

func TestStripeGate_NoSubscription(t *testing.T) {
	gate := billing.NewStripeGateWithFetch(memory.New(), func(context.Context, string) (*stripe.Subscription, error) {
		t.Fatal("stripe must not be called without a subscription id")
		return nil, nil
	})
	ok, err := gate.Active(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStripeGate_FetchError(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.SaveSubscription(ctx, billing.Subscription{TenantID: "t1", StripeSubscriptionID: "sub_1"}))
	gate := billing.NewStripeGateWithFetch(st, func(context.Context, string) (*stripe.Subscription, error) {
		return nil, errors.New("boom")
	})
	_, err := gate.Active(ctx, "t1")
	require.Error(t, err)
}

type requestKey struct{}

func TestStripeGate_UsesRequestContext(t *testing.T) {
	st := memory.New()
	require.NoError(t, st.SaveSubscription(context.Background(), billing.Subscription{TenantID: "t1", StripeSubscriptionID: "sub_1"}))
	gate := billing.NewStripeGateWithFetch(st, func(ctx context.Context, id string) (*stripe.Subscription, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		assert.Equal(t, "req-7", ctx.Value(requestKey{}))
		return &stripe.Subscription{ID: id, Status: stripe.SubscriptionStatusTrialing}, nil
	})

	// GIVEN a live request context
	ctx := context.WithValue(context.Background(), requestKey{}, "req-7")
	ok, err := gate.Active(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)

	// WHEN the request is cancelled before Stripe answers (another tenant, no cache)
	require.NoError(t, st.SaveSubscription(context.Background(), billing.Subscription{TenantID: "t2", StripeSubscriptionID: "sub_2"}))
	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	// THEN the Stripe call sees the cancellation
	_, err = gate.Active(cancelled, "t2")
	assert.ErrorIs(t, err, context.Canceled)
}

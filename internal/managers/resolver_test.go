package managers

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

func TestDecodeOrderID(t *testing.T) {
	tests := []struct {
		name    string
		orderID string
		want    domain.OrderRef
	}{
		{"package order", "PKG-42", domain.OrderRef{Kind: domain.OrderRefPackage, ID: 42}},
		{"file order", "ORD-7", domain.OrderRef{Kind: domain.OrderRefFile, ID: 7}},
		{"file order with user suffix", "ORD-7-133", domain.OrderRef{Kind: domain.OrderRefFile, ID: 7}},
		{"unknown prefix", "INV-9", domain.OrderRef{}},
		{"garbage package id", "PKG-abc", domain.OrderRef{}},
		{"empty", "", domain.OrderRef{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeOrderID(tt.orderID))
		})
	}
}

func TestTrxNumberResolver(t *testing.T) {
	purchases := newMemPurchaseRepo()
	subscriptions := newMemSubscriptionRepo()

	require.NoError(t, purchases.Create(context.Background(), &domain.FilePurchase{
		UserEmail: "rahim@example.com",
		TrxNumber: "EPS-1-abc",
	}))

	resolver := &TrxNumberResolver{Purchases: purchases, Subscriptions: subscriptions}

	t.Run("matches purchase trx number", func(t *testing.T) {
		ref, err := resolver.TryResolve(context.Background(), &domain.PaymentTransaction{
			MerchantTransactionID: "EPS-1-abc",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.OrderRefFile, ref.Kind)
		assert.Equal(t, int64(1), ref.ID)
	})

	t.Run("matches subscription transaction id", func(t *testing.T) {
		sub := &domain.UserPackage{UserEmail: "karim@example.com", TransactionID: "EPS-2-def"}
		require.NoError(t, subscriptions.Create(context.Background(), sub))

		ref, err := resolver.TryResolve(context.Background(), &domain.PaymentTransaction{
			MerchantTransactionID: "EPS-2-def",
			Customer:              domain.Customer{Email: "karim@example.com"},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.OrderRefPackage, ref.Kind)
		assert.Equal(t, sub.ID, ref.ID)
	})

	t.Run("no match resolves to nothing", func(t *testing.T) {
		ref, err := resolver.TryResolve(context.Background(), &domain.PaymentTransaction{
			MerchantTransactionID: "EPS-9-zzz",
		})
		require.NoError(t, err)
		assert.False(t, ref.Resolved())
	})
}

func TestHeuristicResolver(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(300)

	newTxn := func() *domain.PaymentTransaction {
		return &domain.PaymentTransaction{
			MerchantTransactionID: "EPS-1-abc",
			Amount:                amount,
			Customer:              domain.Customer{Email: "rahim@example.com"},
			CreatedAt:             base,
		}
	}

	t.Run("matches pending purchase inside the window", func(t *testing.T) {
		purchases := newMemPurchaseRepo()
		require.NoError(t, purchases.Create(context.Background(), &domain.FilePurchase{
			UserEmail:     "rahim@example.com",
			Amount:        amount,
			PaymentStatus: domain.PaymentPending,
			CreatedAt:     base.Add(-10 * time.Minute),
		}))

		resolver := &HeuristicResolver{Purchases: purchases}
		ref, err := resolver.TryResolve(context.Background(), newTxn())
		require.NoError(t, err)
		assert.Equal(t, domain.OrderRefFile, ref.Kind)
	})

	t.Run("rejects purchases outside the window", func(t *testing.T) {
		purchases := newMemPurchaseRepo()
		require.NoError(t, purchases.Create(context.Background(), &domain.FilePurchase{
			UserEmail:     "rahim@example.com",
			Amount:        amount,
			PaymentStatus: domain.PaymentPending,
			CreatedAt:     base.Add(-2 * time.Hour),
		}))

		resolver := &HeuristicResolver{Purchases: purchases}
		ref, err := resolver.TryResolve(context.Background(), newTxn())
		require.NoError(t, err)
		assert.False(t, ref.Resolved())
	})

	t.Run("rejects amount mismatches", func(t *testing.T) {
		purchases := newMemPurchaseRepo()
		require.NoError(t, purchases.Create(context.Background(), &domain.FilePurchase{
			UserEmail:     "rahim@example.com",
			Amount:        decimal.NewFromInt(999),
			PaymentStatus: domain.PaymentPending,
			CreatedAt:     base,
		}))

		resolver := &HeuristicResolver{Purchases: purchases}
		ref, err := resolver.TryResolve(context.Background(), newTxn())
		require.NoError(t, err)
		assert.False(t, ref.Resolved())
	})

	t.Run("prefers the newest candidate", func(t *testing.T) {
		purchases := newMemPurchaseRepo()
		require.NoError(t, purchases.Create(context.Background(), &domain.FilePurchase{
			UserEmail:     "rahim@example.com",
			Amount:        amount,
			PaymentStatus: domain.PaymentPending,
			CreatedAt:     base.Add(-20 * time.Minute),
		}))
		newer := &domain.FilePurchase{
			UserEmail:     "rahim@example.com",
			Amount:        amount,
			PaymentStatus: domain.PaymentPending,
			CreatedAt:     base.Add(-5 * time.Minute),
		}
		require.NoError(t, purchases.Create(context.Background(), newer))

		resolver := &HeuristicResolver{Purchases: purchases}
		ref, err := resolver.TryResolve(context.Background(), newTxn())
		require.NoError(t, err)
		assert.Equal(t, newer.ID, ref.ID)
	})
}

func TestResolveOrder_ChainStopsAtFirstHit(t *testing.T) {
	purchases := newMemPurchaseRepo()
	require.NoError(t, purchases.Create(context.Background(), &domain.FilePurchase{
		TrxNumber: "EPS-1-abc",
	}))

	txn := &domain.PaymentTransaction{
		MerchantTransactionID: "EPS-1-abc",
		OrderID:               "PKG-99",
	}

	resolvers := []OrderResolver{
		&TrxNumberResolver{Purchases: purchases, Subscriptions: newMemSubscriptionRepo()},
		&OrderIDResolver{},
	}

	// The trx-number stage wins; the structural decode of PKG-99 never runs.
	ref := ResolveOrder(context.Background(), txn, resolvers)
	assert.Equal(t, domain.OrderRefFile, ref.Kind)
}

func TestResolveOrder_FallsThroughToDecode(t *testing.T) {
	txn := &domain.PaymentTransaction{
		MerchantTransactionID: "EPS-1-abc",
		OrderID:               "PKG-99",
	}

	resolvers := []OrderResolver{
		&TrxNumberResolver{Purchases: newMemPurchaseRepo(), Subscriptions: newMemSubscriptionRepo()},
		&OrderIDResolver{},
	}

	ref := ResolveOrder(context.Background(), txn, resolvers)
	assert.Equal(t, domain.OrderRefPackage, ref.Kind)
	assert.Equal(t, int64(99), ref.ID)
}

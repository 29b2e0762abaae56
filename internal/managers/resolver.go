package managers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

const heuristicMatchWindow = 30 * time.Minute

// OrderResolver maps a transaction back to the order it funds. Strategies
// are tried in order; the first hit wins and later strategies never run.
type OrderResolver interface {
	TryResolve(ctx context.Context, txn *domain.PaymentTransaction) (domain.OrderRef, error)
}

// ResolveOrder runs the strategy chain. Resolution failure is not an error:
// the zero OrderRef reports Kind == OrderRefUnresolved and callers log it
// for manual follow-up. Strategy errors are logged and skipped so one broken
// lookup never blocks a later strategy from matching.
func ResolveOrder(ctx context.Context, txn *domain.PaymentTransaction, resolvers []OrderResolver) domain.OrderRef {
	for _, r := range resolvers {
		ref, err := r.TryResolve(ctx, txn)
		if err != nil {
			log.Warn().
				Err(err).
				Str("merchant_transaction_id", txn.MerchantTransactionID).
				Msg("order resolution strategy failed")

			continue
		}

		if ref.Resolved() {
			return ref
		}
	}

	return domain.OrderRef{}
}

// TrxNumberResolver matches the merchant transaction id against stored
// references: a file purchase's trx number, or a subscription's recorded
// transaction id.
type TrxNumberResolver struct {
	Purchases     domain.PurchaseRepository
	Subscriptions domain.SubscriptionRepository
}

func (r *TrxNumberResolver) TryResolve(ctx context.Context, txn *domain.PaymentTransaction) (domain.OrderRef, error) {
	purchase, err := r.Purchases.GetByTrxNumber(ctx, txn.MerchantTransactionID)
	if err == nil {
		return domain.OrderRef{Kind: domain.OrderRefFile, ID: purchase.ID}, nil
	}
	if !errors.Is(err, domain.ErrNoRows) {
		return domain.OrderRef{}, err
	}

	subs, err := r.Subscriptions.ListByUser(ctx, txn.Customer.Email)
	if err != nil {
		return domain.OrderRef{}, err
	}

	for _, sub := range subs {
		if sub.TransactionID != "" && sub.TransactionID == txn.MerchantTransactionID {
			return domain.OrderRef{Kind: domain.OrderRefPackage, ID: sub.ID}, nil
		}
	}

	return domain.OrderRef{}, nil
}

// OrderIDResolver structurally decodes the merchant-supplied order id. The
// prefix tags the order variant, followed by the numeric id, optionally
// followed by a user id suffix.
type OrderIDResolver struct{}

func (r *OrderIDResolver) TryResolve(ctx context.Context, txn *domain.PaymentTransaction) (domain.OrderRef, error) {
	return DecodeOrderID(txn.OrderID), nil
}

// DecodeOrderID parses "PKG-<id>" and "ORD-<id>" / "ORD-<id>-<userid>"
// references. Anything else decodes to Unresolved.
func DecodeOrderID(orderID string) domain.OrderRef {
	switch {
	case strings.HasPrefix(orderID, "PKG-"):
		id, err := strconv.ParseInt(strings.TrimPrefix(orderID, "PKG-"), 10, 64)
		if err != nil {
			return domain.OrderRef{}
		}

		return domain.OrderRef{Kind: domain.OrderRefPackage, ID: id}

	case strings.HasPrefix(orderID, "ORD-"):
		rest := strings.TrimPrefix(orderID, "ORD-")
		if i := strings.IndexByte(rest, '-'); i >= 0 {
			rest = rest[:i]
		}

		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return domain.OrderRef{}
		}

		return domain.OrderRef{Kind: domain.OrderRefFile, ID: id}

	default:
		return domain.OrderRef{}
	}
}

// HeuristicResolver is the last resort: match a pending file purchase by
// customer email and amount within a time window around the transaction's
// creation. Concurrent purchases by the same user for the same amount inside
// the window can match the wrong order; this ambiguity is inherent to the
// strategy and resolved by taking the newest candidate.
type HeuristicResolver struct {
	Purchases domain.PurchaseRepository
}

func (r *HeuristicResolver) TryResolve(ctx context.Context, txn *domain.PaymentTransaction) (domain.OrderRef, error) {
	if txn.Customer.Email == "" {
		return domain.OrderRef{}, nil
	}

	candidates, err := r.Purchases.FindPendingByAmountWindow(ctx, txn.Customer.Email, txn.Amount, txn.CreatedAt, heuristicMatchWindow)
	if err != nil {
		return domain.OrderRef{}, err
	}

	if len(candidates) == 0 {
		return domain.OrderRef{}, nil
	}

	// Candidates come back newest first.
	return domain.OrderRef{Kind: domain.OrderRefFile, ID: candidates[0].ID}, nil
}

package managers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

// Reconciler consumes payment-gateway callbacks: it durably logs every
// delivery, independently verifies success claims, and transitions the
// transaction plus its order exactly once. It never returns processing
// errors to the webhook caller; the gateway only needs a redirect target.
type Reconciler struct {
	ledger        *Ledger
	transactions  domain.TransactionRepository
	purchases     domain.PurchaseRepository
	subscriptions domain.SubscriptionRepository
	webhookLogs   domain.WebhookLogRepository
	resolvers     []OrderResolver
	store         domain.DriveStore
	mailer        domain.Mailer

	frontendURL    string
	sharedFolderID string
	now            func() time.Time
}

type ReconcilerDependencies struct {
	Ledger        *Ledger
	Transactions  domain.TransactionRepository
	Purchases     domain.PurchaseRepository
	Subscriptions domain.SubscriptionRepository
	WebhookLogs   domain.WebhookLogRepository
	Resolvers     []OrderResolver
	Store         domain.DriveStore
	Mailer        domain.Mailer

	FrontendURL string
	// SharedFolderID is the store node holding the purchasable files;
	// confirmed purchasers get read access on it.
	SharedFolderID string
	Now            func() time.Time
}

func NewReconciler(deps ReconcilerDependencies) *Reconciler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Reconciler{
		ledger:         deps.Ledger,
		transactions:   deps.Transactions,
		purchases:      deps.Purchases,
		subscriptions:  deps.Subscriptions,
		webhookLogs:    deps.WebhookLogs,
		resolvers:      deps.Resolvers,
		store:          deps.Store,
		mailer:         deps.Mailer,
		frontendURL:    deps.FrontendURL,
		sharedFolderID: deps.SharedFolderID,
		now:            now,
	}
}

// Callback is the normalized shape of a gateway callback delivery. Gateways
// deliver the same fields with varying casing and via either JSON body or
// query string; the controller folds both into this struct.
type Callback struct {
	Status                string
	MerchantTransactionID string
	GatewayTransactionID  string
	Amount                string
	ErrorCode             string
	ErrorMessage          string

	Method      string
	URL         string
	Headers     map[string]string
	Body        string
	QueryParams map[string]string
	IPAddress   string
	UserAgent   string
}

// CallbackOutcome tells the controller where to send the customer.
type CallbackOutcome struct {
	Status                string
	MerchantTransactionID string
	OrderID               string
	RedirectURL           string
	ErrorCode             string
	ErrorMessage          string
}

// HandleCallback processes one callback delivery end to end. The webhook is
// logged before anything else so a crash mid-processing still leaves an
// audit trail. All internal failures are swallowed into the outcome; the
// caller always gets a redirect target.
func (r *Reconciler) HandleCallback(ctx context.Context, cb Callback) CallbackOutcome {
	webhookLog := &domain.WebhookLog{
		Method:      cb.Method,
		URL:         cb.URL,
		Headers:     cb.Headers,
		Body:        cb.Body,
		QueryParams: cb.QueryParams,
		IPAddress:   cb.IPAddress,
		UserAgent:   cb.UserAgent,
		CreatedAt:   r.now(),
	}

	if err := r.webhookLogs.Create(ctx, webhookLog); err != nil {
		log.Error().Err(err).Str("merchant_transaction_id", cb.MerchantTransactionID).Msg("failed to persist webhook log")
	}

	outcome := r.process(ctx, cb, webhookLog)

	webhookLog.Processed = true
	webhookLog.ResponseStatus = 200
	if err := r.webhookLogs.Update(ctx, webhookLog); err != nil {
		log.Error().Err(err).Msg("failed to finalize webhook log")
	}

	return outcome
}

func (r *Reconciler) process(ctx context.Context, cb Callback, webhookLog *domain.WebhookLog) CallbackOutcome {
	status := strings.ToLower(strings.TrimSpace(cb.Status))

	outcome := CallbackOutcome{
		Status:                status,
		MerchantTransactionID: cb.MerchantTransactionID,
		OrderID:               "unknown",
		ErrorCode:             cb.ErrorCode,
		ErrorMessage:          cb.ErrorMessage,
	}

	if cb.MerchantTransactionID == "" {
		webhookLog.ProcessingErrors = "callback without merchant transaction id"
		outcome.RedirectURL = r.redirectURL("failed", outcome)

		return outcome
	}

	txn, err := r.ledger.Get(ctx, cb.MerchantTransactionID)
	if err != nil {
		log.Warn().Err(err).Str("merchant_transaction_id", cb.MerchantTransactionID).Msg("callback for unknown transaction")

		webhookLog.ProcessingErrors = fmt.Sprintf("transaction not found: %s", cb.MerchantTransactionID)
		outcome.RedirectURL = r.redirectURL("failed", outcome)

		return outcome
	}

	webhookLog.TransactionID = txn.MerchantTransactionID

	if payload, err := json.Marshal(cb); err == nil {
		txn.CallbackPayload = payload
	}
	if cb.ErrorCode != "" || cb.ErrorMessage != "" {
		txn.ErrorCode = cb.ErrorCode
		txn.ErrorMessage = cb.ErrorMessage
	}

	// Terminal transactions are sinks: record the redelivery, leave the
	// order alone.
	if txn.Status.IsTerminal() {
		log.Info().
			Str("merchant_transaction_id", txn.MerchantTransactionID).
			Str("status", string(txn.Status)).
			Msg("callback replay for terminal transaction")

		txn.UpdatedAt = r.now()
		if err := r.transactions.Update(ctx, txn); err != nil {
			log.Error().Err(err).Msg("failed to store replayed callback payload")
		}

		outcome.RedirectURL = r.redirectURL(r.outcomeKind(txn.Status), outcome)
		outcome.OrderID = txn.OrderID

		return outcome
	}

	var verified bool
	switch {
	case status == "success" || status == "completed":
		verified = r.handleSuccessClaim(ctx, txn)

	case status == "cancel" || status == "cancelled":
		txn.Status = domain.TransactionCancelled
		txn.PaymentStatus = "cancelled"

	default:
		txn.Status = domain.TransactionFailed
		txn.PaymentStatus = "failed"
	}

	txn.UpdatedAt = r.now()
	if err := r.transactions.Update(ctx, txn); err != nil {
		log.Error().Err(err).Str("merchant_transaction_id", txn.MerchantTransactionID).Msg("failed to update transaction from callback")
		webhookLog.ProcessingErrors = err.Error()
	}

	ref := ResolveOrder(ctx, txn, r.resolvers)
	if !ref.Resolved() {
		log.Warn().
			Str("merchant_transaction_id", txn.MerchantTransactionID).
			Str("order_id", txn.OrderID).
			Msg("no order resolved for transaction, manual follow-up required")
	} else {
		r.transitionOrder(ctx, txn, ref, verified)
		outcome.OrderID = fmt.Sprintf("%d", ref.ID)
	}

	outcome.RedirectURL = r.redirectURL(r.outcomeKind(txn.Status), outcome)

	return outcome
}

// handleSuccessClaim independently verifies a success-claiming callback. The
// claim is never trusted: a failed or mismatched verification downgrades the
// transaction to failed. Returns whether verification confirmed success.
func (r *Reconciler) handleSuccessClaim(ctx context.Context, txn *domain.PaymentTransaction) bool {
	result, err := r.ledger.Verify(ctx, txn.MerchantTransactionID)
	if err != nil {
		log.Error().Err(err).Str("merchant_transaction_id", txn.MerchantTransactionID).Msg("verification call failed, downgrading transaction")

		attemptedAt := r.now()
		txn.VerificationAttempts++
		txn.LastVerificationAt = &attemptedAt
		txn.Status = domain.TransactionFailed
		txn.PaymentStatus = "failed"

		return false
	}

	verifiedAt := r.now()
	txn.VerificationAttempts = result.AttemptNumber
	txn.LastVerificationAt = &verifiedAt
	txn.Verified = true

	if result.Status != domain.TransactionCompleted {
		mismatch := &domain.VerificationMismatchError{
			MerchantTransactionID: txn.MerchantTransactionID,
			GatewayStatus:         result.RawStatus,
		}
		log.Warn().
			Err(mismatch).
			Str("merchant_transaction_id", txn.MerchantTransactionID).
			Msg("callback claimed success but gateway disagrees")

		txn.Status = domain.TransactionFailed
		txn.PaymentStatus = "failed"
		if result.Gateway.ErrorCode != "" {
			txn.ErrorCode = result.Gateway.ErrorCode
			txn.ErrorMessage = result.Gateway.ErrorMessage
		} else {
			txn.ErrorMessage = mismatch.Error()
		}

		return false
	}

	txn.Status = domain.TransactionCompleted
	txn.PaymentStatus = "success"
	if result.Gateway.GatewayTransactionID != "" {
		txn.GatewayTransactionID = result.Gateway.GatewayTransactionID
	}
	completedAt := r.now()
	txn.CompletedAt = &completedAt

	return true
}

func (r *Reconciler) transitionOrder(ctx context.Context, txn *domain.PaymentTransaction, ref domain.OrderRef, verified bool) {
	switch ref.Kind {
	case domain.OrderRefPackage:
		r.transitionSubscription(ctx, txn, ref.ID, verified)
	case domain.OrderRefFile:
		r.transitionPurchase(ctx, txn, ref.ID, verified)
	}
}

func (r *Reconciler) transitionSubscription(ctx context.Context, txn *domain.PaymentTransaction, id int64, verified bool) {
	sub, err := r.subscriptions.GetByID(ctx, id)
	if err != nil {
		log.Error().Err(err).Int64("user_package_id", id).Msg("failed to load subscription for transition")

		return
	}

	// Already-settled subscriptions are not revisited by replays.
	if sub.Status != domain.SubscriptionPending {
		return
	}

	switch txn.Status {
	case domain.TransactionCompleted:
		if !verified {
			sub.Status = domain.SubscriptionFailed
			break
		}

		sub.Activate(r.now())
		sub.GatewayResponse = txn.CallbackPayload

	case domain.TransactionCancelled:
		sub.Status = domain.SubscriptionCancelled

	default:
		sub.Status = domain.SubscriptionFailed
	}

	sub.UpdatedAt = r.now()
	if err := r.subscriptions.Update(ctx, sub); err != nil {
		log.Error().Err(err).Int64("user_package_id", id).Msg("failed to persist subscription transition")

		return
	}

	if sub.Status == domain.SubscriptionActive {
		// Seed the day-0 usage row so daily quota reads start from an
		// existing record. Activation already succeeded, so a failure
		// here is logged and the row is created lazily on first order.
		if _, err := r.subscriptions.IncrementUsage(ctx, sub.ID, r.now(), 0); err != nil {
			log.Warn().Err(err).Int64("user_package_id", sub.ID).Msg("failed to seed activation-day usage row")
		}

		log.Info().
			Int64("user_package_id", sub.ID).
			Str("package", sub.Package.Name).
			Str("user", sub.UserEmail).
			Msg("package activated")
	}
}

func (r *Reconciler) transitionPurchase(ctx context.Context, txn *domain.PaymentTransaction, id int64, verified bool) {
	purchase, err := r.purchases.GetByID(ctx, id)
	if err != nil {
		log.Error().Err(err).Int64("purchase_id", id).Msg("failed to load purchase for transition")

		return
	}

	if purchase.PaymentStatus != domain.PaymentPending {
		return
	}

	switch txn.Status {
	case domain.TransactionCompleted:
		if !verified {
			purchase.PaymentStatus = domain.PaymentFailed
			break
		}

		purchase.PaymentStatus = domain.PaymentCompleted
		purchase.Active = true

	case domain.TransactionCancelled:
		purchase.PaymentStatus = domain.PaymentCancelled

	default:
		purchase.PaymentStatus = domain.PaymentFailed
	}

	purchase.UpdatedAt = r.now()
	if err := r.purchases.Update(ctx, purchase); err != nil {
		log.Error().Err(err).Int64("purchase_id", id).Msg("failed to persist purchase transition")

		return
	}

	if purchase.PaymentStatus == domain.PaymentCompleted {
		r.confirmPurchaseSideEffects(ctx, purchase)
	}
}

// confirmPurchaseSideEffects runs the best-effort extras after a confirmed
// file purchase: read access on the shared folder and a receipt mail.
// Failures are logged and never affect the transaction outcome.
func (r *Reconciler) confirmPurchaseSideEffects(ctx context.Context, purchase *domain.FilePurchase) {
	if r.store != nil && r.sharedFolderID != "" {
		if err := r.store.Share(ctx, r.sharedFolderID, purchase.UserEmail); err != nil {
			log.Error().Err(err).Str("user", purchase.UserEmail).Msg("failed to grant shared folder access to purchaser")
		}
	}

	if r.mailer != nil {
		subject := "Your BD Mouza purchase is confirmed"
		body := fmt.Sprintf("<p>Dear %s,</p><p>Your purchase of %d file(s) is confirmed. The files are now available in your account.</p>",
			purchase.UserName, len(purchase.FileNames))

		if err := r.mailer.SendReceipt(ctx, purchase.UserEmail, subject, body); err != nil {
			log.Error().Err(err).Str("user", purchase.UserEmail).Msg("failed to send receipt email")
		}
	}
}

func (r *Reconciler) outcomeKind(status domain.TransactionStatus) string {
	switch status {
	case domain.TransactionCompleted:
		return "success"
	case domain.TransactionCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

func (r *Reconciler) redirectURL(kind string, outcome CallbackOutcome) string {
	base := strings.TrimRight(r.frontendURL, "/")

	switch kind {
	case "success":
		return fmt.Sprintf("%s/purchase/success?orderId=%s&gateway=eps&transaction=%s", base, outcome.OrderID, outcome.MerchantTransactionID)
	case "cancelled":
		return fmt.Sprintf("%s/purchase/cancelled?orderId=%s&gateway=eps&transaction=%s", base, outcome.OrderID, outcome.MerchantTransactionID)
	default:
		return fmt.Sprintf("%s/purchase/failed?orderId=%s&gateway=eps&transaction=%s&error=%s", base, outcome.OrderID, outcome.MerchantTransactionID, outcome.ErrorCode)
	}
}

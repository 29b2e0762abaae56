package controllers

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bdmouza/mouzadrive/internal/domain"
	"github.com/bdmouza/mouzadrive/internal/managers"
)

// PaymentController exposes payment initialization, status checks and the
// gateway callback endpoint.
type PaymentController struct {
	checkout   *managers.Checkout
	ledger     *managers.Ledger
	reconciler *managers.Reconciler
}

type PaymentControllerDependencies struct {
	Checkout   *managers.Checkout
	Ledger     *managers.Ledger
	Reconciler *managers.Reconciler
}

func NewPaymentController(deps PaymentControllerDependencies) *PaymentController {
	return &PaymentController{
		checkout:   deps.Checkout,
		ledger:     deps.Ledger,
		reconciler: deps.Reconciler,
	}
}

type initializePaymentRequest struct {
	FileNames    []string `json:"file_names"`
	Amount       string   `json:"amount"`
	Method       string   `json:"method"`
	MobileNumber string   `json:"mobile_number"`
}

// Initialize opens a gateway checkout session for a file purchase.
func (c *PaymentController) Initialize(ctx fiber.Ctx) error {
	customer, err := customerFromRequest(ctx)
	if err != nil {
		return err
	}

	var req initializePaymentRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid amount")
	}

	if req.MobileNumber != "" {
		customer.Phone = req.MobileNumber
	}

	method := domain.PaymentMethod(req.Method)
	if method == "" {
		method = domain.PaymentMethodEPS
	}

	session, err := c.checkout.InitializeFilePayment(ctx.RequestCtx(), managers.InitializeFilePaymentParams{
		Customer:  customer,
		FileNames: req.FileNames,
		Amount:    amount,
		Method:    method,
		IPAddress: ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"payment_url":             session.PaymentURL,
		"merchant_transaction_id": session.MerchantTransactionID,
		"purchase_id":             session.PurchaseID,
	})
}

// Verify re-checks a transaction's status against the gateway.
func (c *PaymentController) Verify(ctx fiber.Ctx) error {
	id := ctx.Params("id")
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Transaction id is required")
	}

	result, err := c.ledger.Verify(ctx.RequestCtx(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"merchant_transaction_id": id,
		"status":                  result.Status,
		"raw_status":              result.RawStatus,
		"changed":                 result.Changed,
		"attempt":                 result.AttemptNumber,
	})
}

// Status returns the stored transaction state without calling the gateway.
func (c *PaymentController) Status(ctx fiber.Ctx) error {
	id := ctx.Params("id")
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Transaction id is required")
	}

	txn, err := c.ledger.Get(ctx.RequestCtx(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"merchant_transaction_id": txn.MerchantTransactionID,
		"order_id":                txn.OrderID,
		"order_type":              txn.OrderType,
		"status":                  txn.Status,
		"amount":                  txn.Amount,
		"currency":                txn.Currency,
		"verified":                txn.Verified,
		"created_at":              txn.CreatedAt,
		"completed_at":            txn.CompletedAt,
	})
}

// Callback receives gateway callback deliveries. The gateway calls it both
// as a server-to-server POST and as the customer's browser redirect, with
// fields split across JSON body and query string in either casing.
func (c *PaymentController) Callback(ctx fiber.Ctx) error {
	cb := c.parseCallback(ctx)

	outcome := c.reconciler.HandleCallback(ctx.RequestCtx(), cb)

	if ctx.Method() == fiber.MethodGet || !strings.Contains(ctx.Get(fiber.HeaderContentType), "json") {
		return ctx.Redirect().To(outcome.RedirectURL)
	}

	return ctx.JSON(fiber.Map{
		"status":                  outcome.Status,
		"merchant_transaction_id": outcome.MerchantTransactionID,
		"order_id":                outcome.OrderID,
		"redirect_url":            outcome.RedirectURL,
	})
}

func (c *PaymentController) parseCallback(ctx fiber.Ctx) managers.Callback {
	fields := map[string]string{}

	queryParams := map[string]string{}
	ctx.RequestCtx().QueryArgs().VisitAll(func(key, value []byte) {
		queryParams[string(key)] = string(value)
		fields[strings.ToLower(string(key))] = string(value)
	})

	body := ctx.Body()
	if len(body) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			log.Warn().Err(err).Msg("Callback body is not valid JSON")
		} else {
			for key, value := range payload {
				if s, ok := value.(string); ok {
					fields[strings.ToLower(key)] = s
				}
			}
		}
	}

	headers := map[string]string{}
	ctx.RequestCtx().Request.Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = string(value)
	})

	return managers.Callback{
		Status:                firstOf(fields, "status", "transactionstatus"),
		MerchantTransactionID: firstOf(fields, "merchanttransactionid", "merchant_transaction_id", "transactionid"),
		GatewayTransactionID:  firstOf(fields, "epstransactionid", "gateway_transaction_id"),
		Amount:                firstOf(fields, "totalamount", "amount"),
		ErrorCode:             firstOf(fields, "errorcode", "error_code"),
		ErrorMessage:          firstOf(fields, "errormessage", "error_message"),

		Method:      ctx.Method(),
		URL:         ctx.OriginalURL(),
		Headers:     headers,
		Body:        string(body),
		QueryParams: queryParams,
		IPAddress:   ctx.IP(),
		UserAgent:   ctx.Get(fiber.HeaderUserAgent),
	}
}

// Purchases lists the user's file purchases.
func (c *PaymentController) Purchases(ctx fiber.Ctx) error {
	email, err := requireUserEmail(ctx)
	if err != nil {
		return err
	}

	purchases, err := c.checkout.UserPurchases(ctx.RequestCtx(), email)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{"purchases": purchases})
}

func firstOf(fields map[string]string, keys ...string) string {
	for _, key := range keys {
		if value := fields[key]; value != "" {
			return value
		}
	}
	return ""
}

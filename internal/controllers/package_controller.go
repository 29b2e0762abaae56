package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/bdmouza/mouzadrive/internal/domain"
	"github.com/bdmouza/mouzadrive/internal/managers"
)

// PackageController exposes subscription packages, purchases and the daily
// order quota endpoints.
type PackageController struct {
	packages *managers.PackageManager
}

type PackageControllerDependencies struct {
	Packages *managers.PackageManager
}

func NewPackageController(deps PackageControllerDependencies) *PackageController {
	return &PackageController{packages: deps.Packages}
}

// List returns all purchasable packages.
func (c *PackageController) List(ctx fiber.Ctx) error {
	packages, err := c.packages.ListPackages(ctx.RequestCtx())
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{"packages": packages})
}

// Get returns one package by id.
func (c *PackageController) Get(ctx fiber.Ctx) error {
	id, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid package id")
	}

	pkg, err := c.packages.GetPackage(ctx.RequestCtx(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(pkg)
}

type purchasePackageRequest struct {
	PackageID int64  `json:"package_id"`
	Method    string `json:"method"`
}

// Purchase opens a gateway checkout for a package subscription.
func (c *PackageController) Purchase(ctx fiber.Ctx) error {
	customer, err := customerFromRequest(ctx)
	if err != nil {
		return err
	}

	var req purchasePackageRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	method := domain.PaymentMethod(req.Method)
	if method == "" {
		method = domain.PaymentMethodEPS
	}

	result, err := c.packages.Purchase(ctx.RequestCtx(), customer, req.PackageID, method)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"payment_url":             result.PaymentURL,
		"merchant_transaction_id": result.MerchantTransactionID,
		"user_package_id":         result.UserPackageID,
		"package":                 result.Package,
	})
}

// Subscriptions lists the user's package subscriptions, newest first.
func (c *PackageController) Subscriptions(ctx fiber.Ctx) error {
	email, err := requireUserEmail(ctx)
	if err != nil {
		return err
	}

	subs, err := c.packages.Subscriptions(ctx.RequestCtx(), email)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{"subscriptions": subs})
}

// DailyStatus returns the user's quota snapshot for today.
func (c *PackageController) DailyStatus(ctx fiber.Ctx) error {
	email, err := requireUserEmail(ctx)
	if err != nil {
		return err
	}

	status, err := c.packages.DailyStatus(ctx.RequestCtx(), email)
	if err != nil {
		return err
	}

	return ctx.JSON(status)
}

type validateOrderRequest struct {
	FileCount int `json:"file_count"`
}

// ValidateOrder checks the daily quota for an order and reserves the slots
// when it fits.
func (c *PackageController) ValidateOrder(ctx fiber.Ctx) error {
	email, err := requireUserEmail(ctx)
	if err != nil {
		return err
	}

	var req validateOrderRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	result, err := c.packages.ValidateOrder(ctx.RequestCtx(), email, req.FileCount)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"can_order":     result.CanOrder,
		"is_free_order": result.IsFreeOrder,
		"file_count":    result.FileCount,
		"daily_status":  result.Status,
	})
}

type freeOrderRequest struct {
	FileNames []string `json:"file_names"`
}

// FreeOrder places a zero-amount order covered by an active subscription.
func (c *PackageController) FreeOrder(ctx fiber.Ctx) error {
	customer, err := customerFromRequest(ctx)
	if err != nil {
		return err
	}

	var req freeOrderRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	purchase, status, err := c.packages.ProcessFreeOrder(ctx.RequestCtx(), customer, req.FileNames)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"order":        purchase,
		"daily_status": status,
	})
}

// UsageHistory returns the user's recent daily quota consumption.
func (c *PackageController) UsageHistory(ctx fiber.Ctx) error {
	email, err := requireUserEmail(ctx)
	if err != nil {
		return err
	}

	days := 30
	if raw := ctx.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid days parameter")
		}
		days = parsed
	}

	usage, sub, err := c.packages.UsageHistory(ctx.RequestCtx(), email, days)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"usage":        usage,
		"package_name": sub.Package.Name,
		"package_type": sub.Package.PackageType,
	})
}

// CleanupPending removes stale pending subscriptions. Meant for a scheduler
// or operator, not end users.
func (c *PackageController) CleanupPending(ctx fiber.Ctx) error {
	deleted, err := c.packages.CleanupPending(ctx.RequestCtx())
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{"deleted": deleted})
}

package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

// Authentication happens at the edge; the proxy forwards the verified
// identity in headers.
const (
	headerUserEmail = "X-User-Email"
	headerUserName  = "X-User-Name"
	headerUserPhone = "X-User-Phone"
)

func requireUserEmail(ctx fiber.Ctx) (string, error) {
	email := strings.TrimSpace(ctx.Get(headerUserEmail))
	if email == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "User identity is required")
	}
	return email, nil
}

func customerFromRequest(ctx fiber.Ctx) (domain.Customer, error) {
	email, err := requireUserEmail(ctx)
	if err != nil {
		return domain.Customer{}, err
	}

	return domain.Customer{
		Name:  strings.TrimSpace(ctx.Get(headerUserName)),
		Email: email,
		Phone: strings.TrimSpace(ctx.Get(headerUserPhone)),
	}, nil
}

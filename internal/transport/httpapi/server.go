// Package httpapi is the local JSON bridge the kiosk UI drives.
package httpapi

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jjatencia/exorawebipad/internal/calendar"
	"github.com/jjatencia/exorawebipad/internal/client"
	"github.com/jjatencia/exorawebipad/internal/clock"
	"github.com/jjatencia/exorawebipad/internal/service"
)

type Handler struct {
	Session      *service.SessionService
	Appointments *service.AppointmentStore
	Settlement   *service.SettlementService
	NoShow       *service.NoShowService
	Feed         *service.NotificationFeed
	Clock        *clock.Clock
	Location     *time.Location
	Logger       *log.Logger

	// FetchTimeout bounds the fetch triggered by a date change.
	FetchTimeout time.Duration

	validate *validator.Validate
}

// NewApp builds the fiber app and registers the date observer that reloads
// appointments whenever the active day changes.
func NewApp(h *Handler) *fiber.App {
	h.validate = validator.New()
	if h.Location == nil {
		h.Location = time.Local
	}
	if h.FetchTimeout <= 0 {
		h.FetchTimeout = 30 * time.Second
	}
	h.Appointments.OnDateChange(func(day time.Time) {
		ctx, cancel := context.WithTimeout(context.Background(), h.FetchTimeout)
		defer cancel()
		if err := h.Appointments.FetchAppointments(ctx, day); err != nil && h.Logger != nil {
			h.Logger.Printf("[httpapi] date change fetch: %v", err)
		}
	})

	app := fiber.New(fiber.Config{
		AppName:      "frontdesk",
		ErrorHandler: errorHandler,
		// route params end up in checkout and no-show state
		Immutable: true,
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[http] ${time} ${status} ${method} ${path} ${latency}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	api.Post("/session/login", h.login)
	api.Get("/clock", h.clock)

	protected := api.Group("/", h.requireSession)

	protected.Post("/session/logout", h.logout)
	protected.Get("/session", h.currentSession)

	protected.Get("/appointments", h.listAppointments)
	protected.Post("/appointments/refresh", h.refreshAppointments)
	protected.Put("/appointments/cursor", h.moveCursor)
	protected.Get("/appointments/recovery", h.recovery)
	protected.Post("/appointments/:id/no-show", h.requestNoShow)
	protected.Post("/appointments/:id/no-show/confirm", h.confirmNoShow)
	protected.Delete("/appointments/:id/no-show", h.cancelNoShow)

	protected.Get("/checkout", h.viewCheckout)
	protected.Delete("/checkout", h.closeCheckout)
	protected.Post("/checkout/edit", h.beginEdit)
	protected.Post("/checkout/edit/cancel", h.cancelEdit)
	protected.Post("/checkout/edit/confirm", h.confirmEdit)
	protected.Put("/checkout/service", h.selectService)
	protected.Post("/checkout/variants/:variantId", h.toggleVariant)
	protected.Post("/checkout/promotions/:promotionId", h.togglePromotion)
	protected.Post("/checkout/pay", h.paySingle)
	protected.Put("/checkout/allocation", h.allocate)
	protected.Post("/checkout/pay-split", h.paySplit)
	protected.Post("/checkout/:id", h.openCheckout)

	protected.Get("/notifications", h.notifications)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "route not found",
			"path":    c.Path(),
		})
	})

	return app
}

func (h *Handler) requireSession(c *fiber.Ctx) error {
	if !h.Session.Authenticated() {
		return respondError(c, service.ErrNotAuthenticated)
	}
	return c.Next()
}

func (h *Handler) parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": true, "message": fe.Message})
	}
	return respondError(c, err)
}

func respondError(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error":   true,
		"message": service.UserMessage(err),
	})
}

func statusFor(err error) int {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, service.ErrNotAuthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidMethod),
		errors.Is(err, service.ErrUnknownCatalogItem),
		errors.Is(err, calendar.ErrInvalidDay):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrAppointmentNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrInsufficientBalance), errors.Is(err, service.ErrSplitUnbalanced):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrNoCheckout),
		errors.Is(err, service.ErrNotEditing),
		errors.Is(err, service.ErrEditInProgress),
		errors.Is(err, service.ErrPaymentInProgress),
		errors.Is(err, service.ErrPartiallySettled),
		errors.Is(err, service.ErrNoShowNotRequested):
		return fiber.StatusConflict
	case errors.Is(err, client.ErrTransport), errors.As(err, &apiErr):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jjatencia/exorawebipad/internal/calendar"
	"github.com/jjatencia/exorawebipad/internal/model"
	"github.com/jjatencia/exorawebipad/internal/service"
)

// ===== Session =====

func (h *Handler) login(c *fiber.Ctx) error {
	var creds service.Credentials
	if err := c.BodyParser(&creds); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.Session.Login(c.UserContext(), creds)
	if err != nil {
		return respondError(c, err)
	}

	// Load today right away so the first screen has data.
	h.Appointments.SetCurrentDate(time.Now().In(h.Location))

	return c.JSON(fiber.Map{"user": user})
}

func (h *Handler) logout(c *fiber.Ctx) error {
	if err := h.Session.Logout(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) currentSession(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"user": h.Session.Current()})
}

// ===== Appointments =====

type appointmentsResponse struct {
	Date         string                           `json:"date"`
	Loading      bool                             `json:"loading"`
	Error        string                           `json:"error,omitempty"`
	CurrentIndex int                              `json:"currentIndex"`
	Current      *model.Appointment               `json:"current,omitempty"`
	Page         calendar.Page[model.Appointment] `json:"page"`
	Total        int                              `json:"total"`
	Comments     map[string][]string              `json:"comments,omitempty"`
}

func (h *Handler) appointmentsView(c *fiber.Ctx) appointmentsResponse {
	store := h.Appointments
	date := store.CurrentDate()

	pageSize := c.QueryInt("size", 10)
	page := c.QueryInt("page", 0)
	if page <= 0 {
		page = calendar.PageOf(store.CurrentIndex(), pageSize)
	}

	resp := appointmentsResponse{
		Date:         calendar.DayKey(date, h.Location),
		Loading:      store.Loading(date),
		CurrentIndex: store.CurrentIndex(),
		Page:         store.Page(page, pageSize),
		Total:        len(store.Appointments()),
	}
	if err := store.Err(); err != nil {
		resp.Error = service.UserMessage(err)
	}
	if cur, ok := store.Current(); ok {
		resp.Current = &cur
	}
	for _, a := range resp.Page.Items {
		if lines := a.Comments.Normalize(); len(lines) > 0 {
			if resp.Comments == nil {
				resp.Comments = make(map[string][]string)
			}
			resp.Comments[a.ID] = lines
		}
	}
	return resp
}

func (h *Handler) listAppointments(c *fiber.Ctx) error {
	if raw := c.Query("date"); raw != "" {
		day, err := calendar.ParseDay(raw, h.Location, time.Now())
		if err != nil {
			return respondError(c, err)
		}
		if !day.Equal(h.Appointments.CurrentDate()) {
			h.Appointments.SetCurrentDate(day)
		}
	}
	return c.JSON(h.appointmentsView(c))
}

func (h *Handler) refreshAppointments(c *fiber.Ctx) error {
	if err := h.Appointments.Refresh(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.appointmentsView(c))
}

type cursorRequest struct {
	Index *int `json:"index" validate:"required"`
}

func (h *Handler) moveCursor(c *fiber.Ctx) error {
	var req cursorRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	applied := h.Appointments.SetCurrentIndex(*req.Index)
	return c.JSON(fiber.Map{
		"applied":      applied,
		"currentIndex": h.Appointments.CurrentIndex(),
	})
}

func (h *Handler) recovery(c *fiber.Ctx) error {
	snap, err := h.Appointments.RecoverySnapshot(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	if snap == nil {
		return fiber.NewError(fiber.StatusNotFound, "no saved appointments")
	}
	return c.JSON(snap)
}

// ===== Checkout =====

func (h *Handler) openCheckout(c *fiber.Ctx) error {
	view, err := h.Settlement.Open(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

func (h *Handler) viewCheckout(c *fiber.Ctx) error {
	return checkoutResult(c)(h.Settlement.View())
}

func (h *Handler) closeCheckout(c *fiber.Ctx) error {
	if err := h.Settlement.Close(); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) beginEdit(c *fiber.Ctx) error {
	return checkoutResult(c)(h.Settlement.BeginEdit())
}

func (h *Handler) cancelEdit(c *fiber.Ctx) error {
	return checkoutResult(c)(h.Settlement.CancelEdit())
}

func (h *Handler) confirmEdit(c *fiber.Ctx) error {
	return checkoutResult(c)(h.Settlement.ConfirmEdit())
}

type selectServiceRequest struct {
	ServiceID string `json:"serviceId" validate:"required"`
}

func (h *Handler) selectService(c *fiber.Ctx) error {
	var req selectServiceRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	return checkoutResult(c)(h.Settlement.SelectService(req.ServiceID))
}

func (h *Handler) toggleVariant(c *fiber.Ctx) error {
	return checkoutResult(c)(h.Settlement.ToggleVariant(c.Params("variantId")))
}

func (h *Handler) togglePromotion(c *fiber.Ctx) error {
	return checkoutResult(c)(h.Settlement.TogglePromotion(c.Params("promotionId")))
}

type payRequest struct {
	Method string `json:"method" validate:"required,oneof=efectivo tarjeta monedero"`
}

func (h *Handler) paySingle(c *fiber.Ctx) error {
	var req payRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	if err := h.Settlement.PaySingle(c.UserContext(), model.PaymentMethod(req.Method)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"settled": true})
}

type allocationRequest struct {
	Method string          `json:"method" validate:"required,oneof=efectivo tarjeta monedero"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) allocate(c *fiber.Ctx) error {
	var req allocationRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	if req.Amount.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "amount must not be negative")
	}
	return checkoutResult(c)(h.Settlement.Allocate(model.PaymentMethod(req.Method), req.Amount))
}

func (h *Handler) paySplit(c *fiber.Ctx) error {
	if err := h.Settlement.PaySplit(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"settled": true})
}

func checkoutResult(c *fiber.Ctx) func(*service.CheckoutView, error) error {
	return func(view *service.CheckoutView, err error) error {
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	}
}

// ===== No-show =====

func (h *Handler) requestNoShow(c *fiber.Ctx) error {
	req, err := h.NoShow.Request(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

type confirmNoShowRequest struct {
	Token string `json:"token" validate:"required,uuid"`
}

func (h *Handler) confirmNoShow(c *fiber.Ctx) error {
	var req confirmNoShowRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	if err := h.NoShow.Confirm(c.UserContext(), c.Params("id"), req.Token); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"state": model.AppointmentStateNoShow})
}

func (h *Handler) cancelNoShow(c *fiber.Ctx) error {
	if !h.NoShow.Cancel(c.Params("id")) {
		return respondError(c, service.ErrNoShowNotRequested)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ===== Notifications / clock =====

func (h *Handler) notifications(c *fiber.Ctx) error {
	since := c.QueryInt("since", 0)
	if since < 0 {
		since = 0
	}
	return c.JSON(fiber.Map{"items": h.Feed.Since(uint64(since))})
}

func (h *Handler) clock(c *fiber.Ctx) error {
	return c.JSON(h.Clock.Now())
}

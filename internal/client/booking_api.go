package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jjatencia/exorawebipad/internal/model"
)

// Authenticate exchanges staff credentials for a session.
func (c *Client) Authenticate(ctx context.Context, email, password string) (*model.Session, error) {
	var resp struct {
		Token   string      `json:"token"`
		User    *model.User `json:"user"`
		Usuario *model.User `json:"usuario"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body: map[string]string{
			"email":    email,
			"password": password,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, errors.New("login response without token")
	}

	s := &model.Session{Token: resp.Token}
	switch {
	case resp.User != nil:
		s.User = *resp.User
	case resp.Usuario != nil:
		s.User = *resp.Usuario
	}
	return s, nil
}

// FetchAppointmentsForDay lists a company's appointments for one calendar day.
func (c *Client) FetchAppointmentsForDay(ctx context.Context, company string, date time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	err := c.do(ctx, request{
		method:        http.MethodGet,
		path:          fmt.Sprintf("/citas/empresa/%s/fecha/%s", url.PathEscape(company), date.Format("2006-01-02")),
		authenticated: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaleRequest settles (part of) an appointment with cash or card.
type SaleRequest struct {
	Appointment    model.Appointment   `json:"cita"`
	Method         model.PaymentMethod `json:"metodoPago"`
	Amount         decimal.Decimal     `json:"importe"`
	Company        string              `json:"empresa"`
	IdempotencyKey string              `json:"-"`
}

func (c *Client) CreateSale(ctx context.Context, req SaleRequest) (*model.Sale, error) {
	var out model.Sale
	err := c.do(ctx, request{
		method:         http.MethodPost,
		path:           "/ventas",
		body:           req,
		authenticated:  true,
		idempotencyKey: req.IdempotencyKey,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// WalletDebitRequest charges a customer's wallet against an appointment.
type WalletDebitRequest struct {
	CustomerID     string          `json:"usuario"`
	CompanyID      string          `json:"empresa"`
	AppointmentID  string          `json:"cita"`
	Amount         decimal.Decimal `json:"importe"`
	Kind           string          `json:"tipo"`
	IdempotencyKey string          `json:"-"`
}

type WalletDebitResult struct {
	Movement model.WalletMovement `json:"movimiento"`
	SaleID   string               `json:"ventaId"`
}

func (c *Client) DebitWallet(ctx context.Context, req WalletDebitRequest) (*WalletDebitResult, error) {
	if req.Kind == "" {
		req.Kind = "cargo"
	}
	var out WalletDebitResult
	err := c.do(ctx, request{
		method:         http.MethodPost,
		path:           "/monedero/movimientos",
		body:           req,
		authenticated:  true,
		idempotencyKey: req.IdempotencyKey,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchSale(ctx context.Context, saleID string) (*model.Sale, error) {
	var out model.Sale
	err := c.do(ctx, request{
		method:        http.MethodGet,
		path:          "/ventas/" + url.PathEscape(saleID),
		authenticated: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAppointmentState moves an appointment to a new lifecycle state.
func (c *Client) UpdateAppointmentState(ctx context.Context, appointmentID, company string, state model.AppointmentState) (*model.Appointment, error) {
	var out model.Appointment
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/citas/" + url.PathEscape(appointmentID) + "/estado",
		body: map[string]any{
			"empresa": company,
			"estado":  state,
		},
		authenticated: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchPromotionsForCompany(ctx context.Context, company string) ([]model.Promotion, error) {
	var out []model.Promotion
	if err := c.getCompanyList(ctx, "/promociones/empresa/", company, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchServicesForCompany(ctx context.Context, company string) ([]model.Service, error) {
	var out []model.Service
	if err := c.getCompanyList(ctx, "/servicios/empresa/", company, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchVariantsForCompany(ctx context.Context, company string) ([]model.Variant, error) {
	var out []model.Variant
	if err := c.getCompanyList(ctx, "/variantes/empresa/", company, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getCompanyList(ctx context.Context, prefix, company string, out any) error {
	return c.do(ctx, request{
		method:        http.MethodGet,
		path:          prefix + url.PathEscape(company),
		authenticated: true,
	}, out)
}

package service

import (
	"errors"

	"github.com/jjatencia/exorawebipad/internal/calendar"
	"github.com/jjatencia/exorawebipad/internal/client"
)

var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrAlreadyPaid         = errors.New("appointment already paid")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrInvalidMethod       = errors.New("invalid payment method")
	ErrSplitUnbalanced     = errors.New("split allocations do not match the amount due")
	ErrNoCheckout          = errors.New("no checkout open")
	ErrNotEditing          = errors.New("checkout is not in edit mode")
	ErrEditInProgress      = errors.New("checkout has unconfirmed edits")
	ErrPaymentInProgress   = errors.New("a payment for this checkout is already running")
	ErrPartiallySettled    = errors.New("checkout is partially settled")
	ErrUnknownCatalogItem  = errors.New("unknown service, variant or promotion")
	ErrNoShowNotRequested  = errors.New("no-show was not requested for this appointment")
)

const genericMessage = "Something went wrong. Please try again."

// UserMessage turns a workflow error into the text shown to staff. Structured
// messages from the booking API win; everything else maps by kind.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg, ok := client.RemoteMessage(err); ok {
		return msg
	}

	switch {
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, ErrNotAuthenticated):
		return "Your session has expired. Please log in again."
	case errors.Is(err, client.ErrTransport):
		return "Could not reach the booking service. Check the connection and try again."
	case errors.Is(err, ErrInvalidCredentials):
		return "Enter a valid email and password."
	case errors.Is(err, ErrInsufficientBalance):
		return "The customer's wallet balance does not cover this amount."
	case errors.Is(err, ErrAppointmentNotFound):
		return "That appointment is no longer in the list. Refresh and try again."
	case errors.Is(err, ErrAlreadyPaid):
		return "This appointment is already paid."
	case errors.Is(err, ErrSplitUnbalanced):
		return "The split amounts must add up to the total."
	case errors.Is(err, ErrInvalidMethod):
		return "Choose cash, card or wallet."
	case errors.Is(err, ErrNoCheckout):
		return "Open the payment for an appointment first."
	case errors.Is(err, ErrEditInProgress):
		return "Confirm or cancel the changes before charging."
	case errors.Is(err, ErrPaymentInProgress):
		return "A payment is already being processed."
	case errors.Is(err, ErrPartiallySettled):
		return "Part of this payment is already charged. Finish the remaining amounts."
	case errors.Is(err, ErrNotEditing):
		return "Start editing the appointment first."
	case errors.Is(err, ErrUnknownCatalogItem):
		return "That option is not available for this company."
	case errors.Is(err, ErrNoShowNotRequested):
		return "Confirm the no-show from the appointment first."
	case errors.Is(err, calendar.ErrMissingCompany), errors.Is(err, calendar.ErrUserInactive), errors.Is(err, calendar.ErrUserNotFound):
		return "This account cannot use the front desk."
	}
	return genericMessage
}

package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/jjatencia/exorawebipad/internal/model"
	"github.com/jjatencia/exorawebipad/internal/repository"
)

type AppointmentStateUpdater interface {
	UpdateAppointmentState(ctx context.Context, appointmentID, company string, state model.AppointmentState) (*model.Appointment, error)
}

// NoShowRequest is a pending no-show awaiting confirmation.
type NoShowRequest struct {
	Token       string            `json:"token"`
	Appointment model.Appointment `json:"appointment"`
}

// NoShowService marks appointments as no-show in two steps: Request records
// the intent locally, Confirm sends it.
type NoShowService struct {
	api          AppointmentStateUpdater
	appointments AppointmentLookup
	session      SessionInfo
	events       repository.EventRepository
	notifier     Notifier
	logger       *log.Logger

	mu      sync.Mutex
	pending map[string]NoShowRequest
}

func NewNoShowService(
	api AppointmentStateUpdater,
	appointments AppointmentLookup,
	session SessionInfo,
	events repository.EventRepository,
	notifier Notifier,
	lg *log.Logger,
) *NoShowService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &NoShowService{
		api:          api,
		appointments: appointments,
		session:      session,
		events:       events,
		notifier:     notifier,
		logger:       discardLogger(lg),
		pending:      make(map[string]NoShowRequest),
	}
}

// Request resolves the appointment (the one under the cursor first, then the
// visible list) and returns the token Confirm expects.
func (s *NoShowService) Request(appointmentID string) (*NoShowRequest, error) {
	appt, ok := s.appointments.Current()
	if !ok || appt.ID != appointmentID {
		appt, ok = s.appointments.Find(appointmentID)
	}
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	req := NoShowRequest{Token: uuid.NewString(), Appointment: appt}

	s.mu.Lock()
	s.pending[appointmentID] = req
	s.mu.Unlock()
	return &req, nil
}

// Confirm sends the no-show to the booking API and reloads the day. token
// must match the one Request returned. On failure the pending request stays
// so it can be retried.
func (s *NoShowService) Confirm(ctx context.Context, appointmentID, token string) error {
	s.mu.Lock()
	req, ok := s.pending[appointmentID]
	s.mu.Unlock()
	if !ok || token != req.Token {
		return ErrNoShowNotRequested
	}

	company := req.Appointment.Company
	if company == "" {
		company = s.session.Company()
	}

	if _, err := s.api.UpdateAppointmentState(ctx, appointmentID, company, model.AppointmentStateNoShow); err != nil {
		s.logger.Printf("[noshow] appointment %s: %v", appointmentID, err)
		s.notifier.Notify(LevelError, UserMessage(err))
		return fmt.Errorf("mark no-show %s: %w", appointmentID, err)
	}

	s.mu.Lock()
	delete(s.pending, appointmentID)
	s.mu.Unlock()

	audit(ctx, s.events, s.logger, model.Event{
		EventType:     model.EventTypeNoShowMarked,
		UserID:        s.session.UserID(),
		AppointmentID: appointmentID,
	}, map[string]any{"customer": req.Appointment.Customer.Name})
	s.notifier.Notify(LevelSuccess, "Appointment marked as no-show")

	_ = s.appointments.Refresh(ctx)
	return nil
}

// Cancel drops a pending request. It reports whether one existed.
func (s *NoShowService) Cancel(appointmentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[appointmentID]
	delete(s.pending, appointmentID)
	return ok
}

// Pending returns the pending request of an appointment.
func (s *NoShowService) Pending(appointmentID string) (NoShowRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.pending[appointmentID]
	return req, ok
}

// Reset drops every pending request on logout.
func (s *NoShowService) Reset() {
	s.mu.Lock()
	s.pending = make(map[string]NoShowRequest)
	s.mu.Unlock()
}

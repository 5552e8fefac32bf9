package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/jjatencia/exorawebipad/internal/calendar"
	"github.com/jjatencia/exorawebipad/internal/model"
	"github.com/jjatencia/exorawebipad/internal/repository"
)

type AppointmentSource interface {
	FetchAppointmentsForDay(ctx context.Context, company string, date time.Time) ([]model.Appointment, error)
}

// CompanyProvider resolves the company of the logged-in user.
type CompanyProvider interface {
	Company() string
}

// VisibleAppointments drops paid appointments past their grace window and
// orders the rest by start time. Equal start times keep their input order.
func VisibleAppointments(list []model.Appointment, now time.Time) []model.Appointment {
	out := make([]model.Appointment, 0, len(list))
	for _, a := range list {
		if a.HiddenAt(now) {
			continue
		}
		out = append(out, a)
	}
	slices.SortStableFunc(out, func(a, b model.Appointment) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// AppointmentStore holds the selected day's appointments, the visible subset
// and the cursor into it.
type AppointmentStore struct {
	api      AppointmentSource
	session  CompanyProvider
	kv       repository.KVRepository
	notifier Notifier
	logger   *log.Logger
	loc      *time.Location
	now      func() time.Time

	mu           sync.RWMutex
	appointments []model.Appointment
	filtered     []model.Appointment
	current      int
	date         time.Time
	err          error
	inFlight     map[string]bool
	onDateChange func(time.Time)
}

func NewAppointmentStore(
	api AppointmentSource,
	session CompanyProvider,
	kv repository.KVRepository,
	notifier Notifier,
	loc *time.Location,
	lg *log.Logger,
) *AppointmentStore {
	if loc == nil {
		loc = time.Local
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	s := &AppointmentStore{
		api:      api,
		session:  session,
		kv:       kv,
		notifier: notifier,
		logger:   discardLogger(lg),
		loc:      loc,
		now:      time.Now,
		inFlight: make(map[string]bool),
	}
	s.date = calendar.StartOfDay(s.now(), loc)
	return s
}

// OnDateChange registers the observer told about every SetCurrentDate.
func (s *AppointmentStore) OnDateChange(fn func(time.Time)) {
	s.mu.Lock()
	s.onDateChange = fn
	s.mu.Unlock()
}

// FetchAppointments loads the appointments of date. While a fetch for the
// same day is pending, further calls return nil without fetching. A failed
// fetch leaves the store empty.
func (s *AppointmentStore) FetchAppointments(ctx context.Context, date time.Time) error {
	day := calendar.StartOfDay(date, s.loc)
	key := day.Format(calendar.DayLayout)

	s.mu.Lock()
	if s.inFlight[key] {
		s.mu.Unlock()
		return nil
	}
	s.inFlight[key] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}()

	var (
		list []model.Appointment
		err  error
	)
	company := s.session.Company()
	if company == "" {
		err = ErrNotAuthenticated
	} else {
		list, err = s.api.FetchAppointmentsForDay(ctx, company, day)
	}

	if err != nil {
		s.mu.Lock()
		s.appointments = nil
		s.filtered = nil
		s.current = 0
		s.err = err
		s.mu.Unlock()

		s.logger.Printf("[appointments] fetch %s: %v", key, err)
		s.notifier.Notify(LevelError, UserMessage(err))
		return fmt.Errorf("fetch appointments %s: %w", key, err)
	}

	filtered := VisibleAppointments(list, s.now())

	s.mu.Lock()
	s.appointments = list
	s.filtered = filtered
	s.current = 0
	s.err = nil
	s.mu.Unlock()

	s.saveSnapshot(ctx, key, list)

	hidden := len(list) - len(filtered)
	switch {
	case len(list) == 0:
		s.notifier.Notify(LevelInfo, fmt.Sprintf("No appointments for %s", key))
	case hidden == 1:
		s.notifier.Notify(LevelInfo, "1 appointment hidden because it is completed")
	case hidden > 1:
		s.notifier.Notify(LevelInfo, fmt.Sprintf("%d appointments hidden because they are completed", hidden))
	}
	return nil
}

// Refresh re-fetches the active date.
func (s *AppointmentStore) Refresh(ctx context.Context) error {
	return s.FetchAppointments(ctx, s.CurrentDate())
}

func (s *AppointmentStore) saveSnapshot(ctx context.Context, key string, list []model.Appointment) {
	if s.kv == nil {
		return
	}
	snap := model.AppointmentSnapshot{Date: key, SavedAt: s.now().UTC(), Appointments: list}
	if err := repository.SetJSON(ctx, s.kv, model.KeyLastAppointments, snap); err != nil {
		s.logger.Printf("[appointments] save snapshot: %v", err)
	}
}

// RecoverySnapshot returns the last successfully fetched list, for display
// while the booking API is unreachable.
func (s *AppointmentStore) RecoverySnapshot(ctx context.Context) (*model.AppointmentSnapshot, error) {
	var snap model.AppointmentSnapshot
	if err := repository.GetJSON(ctx, s.kv, model.KeyLastAppointments, &snap); err != nil {
		if errors.Is(err, repository.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

// SetCurrentIndex moves the cursor; out-of-range values are ignored.
func (s *AppointmentStore) SetCurrentIndex(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.filtered) {
		return false
	}
	s.current = i
	return true
}

// SetCurrentDate changes the active day. It does not fetch; the registered
// observer decides.
func (s *AppointmentStore) SetCurrentDate(date time.Time) {
	day := calendar.StartOfDay(date, s.loc)

	s.mu.Lock()
	s.date = day
	fn := s.onDateChange
	s.mu.Unlock()

	if fn != nil {
		fn(day)
	}
}

func (s *AppointmentStore) Appointments() []model.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.appointments)
}

func (s *AppointmentStore) Filtered() []model.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.filtered)
}

// Current is the appointment under the cursor.
func (s *AppointmentStore) Current() (model.Appointment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current < 0 || s.current >= len(s.filtered) {
		return model.Appointment{}, false
	}
	return s.filtered[s.current], true
}

func (s *AppointmentStore) CurrentIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *AppointmentStore) CurrentDate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.date
}

// Err is the error of the last fetch, nil after a success.
func (s *AppointmentStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Loading reports whether a fetch for the day of date is pending.
func (s *AppointmentStore) Loading(date time.Time) bool {
	key := calendar.DayKey(date, s.loc)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight[key]
}

// Find looks id up in the visible list.
func (s *AppointmentStore) Find(id string) (model.Appointment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.filtered {
		if a.ID == id {
			return a, true
		}
	}
	return model.Appointment{}, false
}

// Page returns one page of the visible list.
func (s *AppointmentStore) Page(page, pageSize int) calendar.Page[model.Appointment] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return calendar.Paginate(s.filtered, page, pageSize)
}

// Reset empties the store on logout.
func (s *AppointmentStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments = nil
	s.filtered = nil
	s.current = 0
	s.err = nil
	s.date = calendar.StartOfDay(s.now(), s.loc)
}

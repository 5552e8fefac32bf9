package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jjatencia/exorawebipad/internal/client"
	"github.com/jjatencia/exorawebipad/internal/config"
	"github.com/jjatencia/exorawebipad/internal/db"
	"github.com/jjatencia/exorawebipad/internal/model"
	"github.com/jjatencia/exorawebipad/internal/repository"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.NewGormDB(&config.DBConfig{
		Driver:       config.DriverSQLite,
		SQLitePath:   ":memory:",
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func minor(v int64) *int64 { return &v }

// fakeAPI stands in for the booking API client.
type fakeAPI struct {
	mu sync.Mutex

	session  *model.Session
	loginErr error

	appointments map[string][]model.Appointment // by day
	fetchErr     error
	fetchCalls   int
	fetchGate    chan struct{}

	promotions []model.Promotion
	services   []model.Service
	variants   []model.Variant

	// saleStarted receives one value per CreateSale call before it waits on saleGate.
	saleStarted  chan struct{}
	saleGate     chan struct{}
	sales        []client.SaleRequest
	saleErrFor   map[model.PaymentMethod]error
	debits       []client.WalletDebitRequest
	debitErr     error
	fetchedSales []string

	stateUpdates []string
	stateErr     error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		appointments: make(map[string][]model.Appointment),
		saleErrFor:   make(map[model.PaymentMethod]error),
	}
}

func (f *fakeAPI) Authenticate(ctx context.Context, email, password string) (*model.Session, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	s := *f.session
	return &s, nil
}

func (f *fakeAPI) FetchAppointmentsForDay(ctx context.Context, company string, date time.Time) ([]model.Appointment, error) {
	f.mu.Lock()
	f.fetchCalls++
	gate := f.fetchGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]model.Appointment(nil), f.appointments[date.Format("2006-01-02")]...), nil
}

func (f *fakeAPI) CreateSale(ctx context.Context, req client.SaleRequest) (*model.Sale, error) {
	f.mu.Lock()
	started, gate := f.saleStarted, f.saleGate
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sales = append(f.sales, req)
	if err := f.saleErrFor[req.Method]; err != nil {
		return nil, err
	}
	return &model.Sale{ID: "sale-" + string(req.Method), AppointmentID: req.Appointment.ID, Method: req.Method, Amount: req.Amount}, nil
}

func (f *fakeAPI) DebitWallet(ctx context.Context, req client.WalletDebitRequest) (*client.WalletDebitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.debits = append(f.debits, req)
	if f.debitErr != nil {
		return nil, f.debitErr
	}
	return &client.WalletDebitResult{
		Movement: model.WalletMovement{ID: "mov-1", CustomerID: req.CustomerID, Amount: req.Amount},
		SaleID:   "sale-wallet",
	}, nil
}

func (f *fakeAPI) FetchSale(ctx context.Context, saleID string) (*model.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchedSales = append(f.fetchedSales, saleID)
	return &model.Sale{ID: saleID, Method: model.PaymentMethodWallet}, nil
}

func (f *fakeAPI) FetchPromotionsForCompany(ctx context.Context, company string) ([]model.Promotion, error) {
	return f.promotions, nil
}

func (f *fakeAPI) FetchServicesForCompany(ctx context.Context, company string) ([]model.Service, error) {
	return f.services, nil
}

func (f *fakeAPI) FetchVariantsForCompany(ctx context.Context, company string) ([]model.Variant, error) {
	return f.variants, nil
}

func (f *fakeAPI) UpdateAppointmentState(ctx context.Context, appointmentID, company string, state model.AppointmentState) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	f.stateUpdates = append(f.stateUpdates, appointmentID+":"+company+":"+string(state))
	return &model.Appointment{ID: appointmentID, State: state}, nil
}

type staticSession struct {
	company string
	userID  string
}

func (s staticSession) Company() string { return s.company }
func (s staticSession) UserID() string  { return s.userID }

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	levels   []NotificationLevel
}

func (n *recordingNotifier) Notify(level NotificationLevel, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.levels = append(n.levels, level)
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) last() (NotificationLevel, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return "", ""
	}
	return n.levels[len(n.levels)-1], n.messages[len(n.messages)-1]
}

var testDay = time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

type fixture struct {
	api      *fakeAPI
	kv       repository.KVRepository
	events   *repository.GormEventRepository
	notifier *recordingNotifier
	store    *AppointmentStore
	session  staticSession
}

// newFixture builds an appointment store over the fake API with the clock
// fixed at now.
func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	gdb := openTestDB(t)
	f := &fixture{
		api:      newFakeAPI(),
		kv:       repository.NewGormKVRepository(gdb),
		events:   repository.NewGormEventRepository(gdb),
		notifier: &recordingNotifier{},
		session:  staticSession{company: "emp-1", userID: "u-1"},
	}
	f.store = NewAppointmentStore(f.api, f.session, f.kv, f.notifier, time.UTC, nil)
	f.store.now = func() time.Time { return now }
	f.store.date = testDay
	return f
}

func (f *fixture) load(t *testing.T, list ...model.Appointment) {
	t.Helper()
	f.api.appointments[testDay.Format("2006-01-02")] = list
	if err := f.store.FetchAppointments(context.Background(), testDay); err != nil {
		t.Fatalf("fetch: %v", err)
	}
}

func appointmentAt(id string, hour, min int) model.Appointment {
	return model.Appointment{
		ID:      id,
		Date:    testDay.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute),
		Amount:  dec("20"),
		State:   model.AppointmentStateActive,
		Company: "emp-1",
		Customer: model.Customer{
			ID:            "cust-" + id,
			Name:          "Customer " + id,
			WalletBalance: dec("0"),
		},
	}
}

package service

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/shopspring/decimal"

	"github.com/jjatencia/exorawebipad/internal/client"
	"github.com/jjatencia/exorawebipad/internal/model"
	"github.com/jjatencia/exorawebipad/internal/pricing"
	"github.com/jjatencia/exorawebipad/internal/repository"
)

type SettlementAPI interface {
	CreateSale(ctx context.Context, req client.SaleRequest) (*model.Sale, error)
	DebitWallet(ctx context.Context, req client.WalletDebitRequest) (*client.WalletDebitResult, error)
	FetchSale(ctx context.Context, saleID string) (*model.Sale, error)
	FetchPromotionsForCompany(ctx context.Context, company string) ([]model.Promotion, error)
	FetchServicesForCompany(ctx context.Context, company string) ([]model.Service, error)
	FetchVariantsForCompany(ctx context.Context, company string) ([]model.Variant, error)
}

// AppointmentLookup is the part of the appointment store the payment and
// no-show workflows depend on.
type AppointmentLookup interface {
	Find(id string) (model.Appointment, bool)
	Current() (model.Appointment, bool)
	Refresh(ctx context.Context) error
}

type SessionInfo interface {
	Company() string
	UserID() string
}

// Catalog is a company's promotions, services and variants.
type Catalog struct {
	Promotions []model.Promotion `json:"promotions"`
	Services   []model.Service   `json:"services"`
	Variants   []model.Variant   `json:"variants"`
}

func (c *Catalog) service(id string) (model.Service, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return model.Service{}, false
}

func (c *Catalog) variant(id string) (model.Variant, bool) {
	for _, v := range c.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return model.Variant{}, false
}

func (c *Catalog) promotion(id string) (model.Promotion, bool) {
	for _, p := range c.Promotions {
		if p.ID == id {
			return p, true
		}
	}
	return model.Promotion{}, false
}

// SelectionIDs identifies what is being charged: one service, any variants
// and promotions, by catalog id.
type SelectionIDs struct {
	ServiceID    string   `json:"serviceId"`
	VariantIDs   []string `json:"variantIds"`
	PromotionIDs []string `json:"promotionIds"`
}

func (s SelectionIDs) equal(o SelectionIDs) bool {
	return s.ServiceID == o.ServiceID &&
		sameSet(s.VariantIDs, o.VariantIDs) &&
		sameSet(s.PromotionIDs, o.PromotionIDs)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

func toggle(ids []string, id string) []string {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return append(ids, id)
}

// Checkout is the open payment of one appointment.
type Checkout struct {
	appointment model.Appointment
	catalog     *Catalog

	original  SelectionIDs
	confirmed SelectionIDs
	draft     SelectionIDs
	editing   bool

	allocation *pricing.Allocation
	legKeys    map[model.PaymentMethod]string
	legAmounts map[model.PaymentMethod]decimal.Decimal
	done       map[model.PaymentMethod]bool
	paying     bool
}

func (c *Checkout) selection() SelectionIDs {
	if c.editing {
		return c.draft
	}
	return c.confirmed
}

func (c *Checkout) quote() pricing.Quote {
	sel := c.selection()
	if sel.equal(c.original) {
		return pricing.QuoteStored(c.appointment.Amount, c.resolvePromotions(sel.PromotionIDs))
	}

	var ps pricing.Selection
	if svc, ok := c.catalog.service(sel.ServiceID); ok {
		ps.Service = &svc
	}
	for _, id := range sel.VariantIDs {
		if v, ok := c.catalog.variant(id); ok {
			ps.Variants = append(ps.Variants, v)
		}
	}
	ps.Promotions = c.resolvePromotions(sel.PromotionIDs)
	return pricing.QuoteEdited(ps)
}

func (c *Checkout) resolvePromotions(ids []string) []model.Promotion {
	out := make([]model.Promotion, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.catalog.promotion(id); ok {
			out = append(out, p)
		}
	}
	return out
}

func (c *Checkout) settledAny() bool {
	return len(c.done) > 0
}

// keyFor returns the idempotency key of the leg, minting a new one when the
// leg's amount changed since it was planned.
func (c *Checkout) keyFor(leg pricing.Leg) string {
	if k, ok := c.legKeys[leg.Method]; ok && c.legAmounts[leg.Method].Equal(leg.Amount) {
		return k
	}
	k := uuid.NewString()
	c.legKeys[leg.Method] = k
	c.legAmounts[leg.Method] = leg.Amount
	return k
}

func (c *Checkout) resetAllocation() {
	c.allocation = pricing.NewAllocation(c.quote().Final)
}

// CheckoutView is the read model of the open checkout.
type CheckoutView struct {
	Appointment        model.Appointment                       `json:"appointment"`
	Quote              pricing.Quote                           `json:"quote"`
	StoredQuote        pricing.Quote                           `json:"storedQuote"`
	Editing            bool                                    `json:"editing"`
	Selection          SelectionIDs                            `json:"selection"`
	Allocation         map[model.PaymentMethod]decimal.Decimal `json:"allocation"`
	Remaining          decimal.Decimal                         `json:"remaining"`
	CanSettleSplit     bool                                    `json:"canSettleSplit"`
	AvailableMethods   []model.PaymentMethod                   `json:"availableMethods"`
	CompletedLegs      []model.PaymentMethod                   `json:"completedLegs"`
	EligiblePromotions []model.Promotion                       `json:"eligiblePromotions"`
	Services           []model.Service                         `json:"services"`
	Variants           []model.Variant                         `json:"variants"`
}

// SettlementService runs the payment workflow of the front desk. One
// checkout is open at a time.
type SettlementService struct {
	api          SettlementAPI
	appointments AppointmentLookup
	session      SessionInfo
	events       repository.EventRepository
	notifier     Notifier
	logger       *log.Logger

	mu       sync.Mutex
	checkout *Checkout
	catalogs map[string]*Catalog
}

func NewSettlementService(
	api SettlementAPI,
	appointments AppointmentLookup,
	session SessionInfo,
	events repository.EventRepository,
	notifier Notifier,
	lg *log.Logger,
) *SettlementService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &SettlementService{
		api:          api,
		appointments: appointments,
		session:      session,
		events:       events,
		notifier:     notifier,
		logger:       discardLogger(lg),
		catalogs:     make(map[string]*Catalog),
	}
}

// Open starts the payment of an appointment from the visible list.
func (s *SettlementService) Open(ctx context.Context, appointmentID string) (*CheckoutView, error) {
	if s.paymentRunning() {
		return nil, ErrPaymentInProgress
	}
	appt, ok := s.appointments.Find(appointmentID)
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if appt.Paid {
		return nil, ErrAlreadyPaid
	}

	company := appt.Company
	if company == "" {
		company = s.session.Company()
	}
	if company == "" {
		return nil, ErrNotAuthenticated
	}
	appt.Company = company

	cat, err := s.catalog(ctx, company, false)
	if err != nil {
		return nil, err
	}

	original := SelectionIDs{
		VariantIDs:   make([]string, 0, len(appt.Variants)),
		PromotionIDs: slices.Clone(appt.PromotionIDs),
	}
	if svc := appt.PrimaryService(); svc != nil {
		original.ServiceID = svc.ID
	}
	for _, v := range appt.Variants {
		original.VariantIDs = append(original.VariantIDs, v.ID)
	}
	if original.PromotionIDs == nil {
		original.PromotionIDs = []string{}
	}

	co := &Checkout{
		appointment: appt,
		catalog:     cat,
		original:    original,
		legKeys:     make(map[model.PaymentMethod]string),
		legAmounts:  make(map[model.PaymentMethod]decimal.Decimal),
		done:        make(map[model.PaymentMethod]bool),
	}
	if err := copier.CopyWithOption(&co.confirmed, &original, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("capture selection: %w", err)
	}
	co.resetAllocation()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkout != nil && s.checkout.paying {
		return nil, ErrPaymentInProgress
	}
	s.checkout = co
	return s.viewLocked(), nil
}

// Close drops the open checkout. A checkout with a payment in flight stays.
func (s *SettlementService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkout != nil && s.checkout.paying {
		return ErrPaymentInProgress
	}
	s.checkout = nil
	return nil
}

func (s *SettlementService) View() (*CheckoutView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkout == nil {
		return nil, ErrNoCheckout
	}
	return s.viewLocked(), nil
}

func (s *SettlementService) viewLocked() *CheckoutView {
	co := s.checkout
	sel := co.selection()
	q := co.quote()

	v := &CheckoutView{
		Appointment:        co.appointment,
		Quote:              q,
		StoredQuote:        pricing.QuoteStored(co.appointment.Amount, co.resolvePromotions(co.original.PromotionIDs)),
		Editing:            co.editing,
		Selection:          SelectionIDs{ServiceID: sel.ServiceID, VariantIDs: slices.Clone(sel.VariantIDs), PromotionIDs: slices.Clone(sel.PromotionIDs)},
		Allocation:         co.allocation.Amounts(),
		Remaining:          co.allocation.Remaining(),
		CanSettleSplit:     co.allocation.Balanced(),
		AvailableMethods:   availableMethods(co.appointment, q.Final),
		EligiblePromotions: pricing.Eligible(co.catalog.Promotions),
		Services:           co.catalog.Services,
		Variants:           co.catalog.Variants,
	}
	for _, m := range model.PaymentMethods {
		if co.done[m] {
			v.CompletedLegs = append(v.CompletedLegs, m)
		}
	}
	return v
}

func (s *SettlementService) catalog(ctx context.Context, company string, refresh bool) (*Catalog, error) {
	if !refresh {
		s.mu.Lock()
		cat, ok := s.catalogs[company]
		s.mu.Unlock()
		if ok {
			return cat, nil
		}
	}

	promotions, err := s.api.FetchPromotionsForCompany(ctx, company)
	if err != nil {
		return nil, fmt.Errorf("load promotions: %w", err)
	}
	services, err := s.api.FetchServicesForCompany(ctx, company)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	variants, err := s.api.FetchVariantsForCompany(ctx, company)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}

	cat := &Catalog{Promotions: promotions, Services: services, Variants: variants}
	s.mu.Lock()
	s.catalogs[company] = cat
	s.mu.Unlock()
	return cat, nil
}

// RefreshCatalog reloads the catalog of the logged-in company.
func (s *SettlementService) RefreshCatalog(ctx context.Context) (*Catalog, error) {
	company := s.session.Company()
	if company == "" {
		return nil, ErrNotAuthenticated
	}
	return s.catalog(ctx, company, true)
}

// Reset forgets the open checkout and every cached catalog.
func (s *SettlementService) Reset() {
	s.mu.Lock()
	s.checkout = nil
	s.catalogs = make(map[string]*Catalog)
	s.mu.Unlock()
}

func (s *SettlementService) paymentRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkout != nil && s.checkout.paying
}

// withCheckout runs fn on the open checkout under the lock.
func (s *SettlementService) withCheckout(fn func(co *Checkout) error) (*CheckoutView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkout == nil {
		return nil, ErrNoCheckout
	}
	if s.checkout.paying {
		return nil, ErrPaymentInProgress
	}
	if err := fn(s.checkout); err != nil {
		return nil, err
	}
	return s.viewLocked(), nil
}

// BeginEdit captures the current selection so CancelEdit can restore it.
func (s *SettlementService) BeginEdit() (*CheckoutView, error) {
	return s.withCheckout(func(co *Checkout) error {
		if co.settledAny() {
			return ErrPartiallySettled
		}
		if co.editing {
			return nil
		}
		co.draft = SelectionIDs{}
		if err := copier.CopyWithOption(&co.draft, &co.confirmed, copier.Option{DeepCopy: true}); err != nil {
			return fmt.Errorf("capture selection: %w", err)
		}
		co.editing = true
		return nil
	})
}

func (s *SettlementService) SelectService(serviceID string) (*CheckoutView, error) {
	return s.withCheckout(func(co *Checkout) error {
		if !co.editing {
			return ErrNotEditing
		}
		if _, ok := co.catalog.service(serviceID); !ok {
			return fmt.Errorf("service %s: %w", serviceID, ErrUnknownCatalogItem)
		}
		co.draft.ServiceID = serviceID
		return nil
	})
}

func (s *SettlementService) ToggleVariant(variantID string) (*CheckoutView, error) {
	return s.withCheckout(func(co *Checkout) error {
		if !co.editing {
			return ErrNotEditing
		}
		if _, ok := co.catalog.variant(variantID); !ok {
			return fmt.Errorf("variant %s: %w", variantID, ErrUnknownCatalogItem)
		}
		co.draft.VariantIDs = toggle(co.draft.VariantIDs, variantID)
		return nil
	})
}

// TogglePromotion only accepts promotions that discount the service total.
func (s *SettlementService) TogglePromotion(promotionID string) (*CheckoutView, error) {
	return s.withCheckout(func(co *Checkout) error {
		if !co.editing {
			return ErrNotEditing
		}
		p, ok := co.catalog.promotion(promotionID)
		if !ok || !p.DiscountsService() {
			return fmt.Errorf("promotion %s: %w", promotionID, ErrUnknownCatalogItem)
		}
		co.draft.PromotionIDs = toggle(co.draft.PromotionIDs, promotionID)
		return nil
	})
}

// CancelEdit discards the draft; the selection captured by BeginEdit stays.
func (s *SettlementService) CancelEdit() (*CheckoutView, error) {
	return s.withCheckout(func(co *Checkout) error {
		if !co.editing {
			return ErrNotEditing
		}
		co.editing = false
		co.draft = SelectionIDs{}
		return nil
	})
}

// ConfirmEdit freezes the draft as the selection to charge. Nothing is sent
// to the booking API.
func (s *SettlementService) ConfirmEdit() (*CheckoutView, error) {
	return s.withCheckout(func(co *Checkout) error {
		if !co.editing {
			return ErrNotEditing
		}
		co.confirmed = co.draft
		co.draft = SelectionIDs{}
		co.editing = false
		co.resetAllocation()
		return nil
	})
}

func (s *SettlementService) Quote() (pricing.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkout == nil {
		return pricing.Quote{}, ErrNoCheckout
	}
	return s.checkout.quote(), nil
}

// AvailableMethods lists the methods that can pay the whole amount due.
func (s *SettlementService) AvailableMethods() ([]model.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkout == nil {
		return nil, ErrNoCheckout
	}
	return availableMethods(s.checkout.appointment, s.checkout.quote().Final), nil
}

func availableMethods(appt model.Appointment, amount decimal.Decimal) []model.PaymentMethod {
	out := []model.PaymentMethod{model.PaymentMethodCash, model.PaymentMethodCard}
	if pricing.WalletCovers(appt.Customer.WalletBalance, amount) {
		out = append(out, model.PaymentMethodWallet)
	}
	return out
}

// Allocate sets a split amount for method, clamped to what is left.
func (s *SettlementService) Allocate(method model.PaymentMethod, amount decimal.Decimal) (*CheckoutView, error) {
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}
	return s.withCheckout(func(co *Checkout) error {
		if co.editing {
			return ErrEditInProgress
		}
		if co.done[method] {
			return fmt.Errorf("%s leg: %w", method, ErrPartiallySettled)
		}
		co.allocation.Set(method, amount)
		return nil
	})
}

func (s *SettlementService) Allocation() (map[model.PaymentMethod]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkout == nil {
		return nil, ErrNoCheckout
	}
	return s.checkout.allocation.Amounts(), nil
}

// CanSettleSplit reports whether the allocations add up to the amount due.
func (s *SettlementService) CanSettleSplit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkout != nil && !s.checkout.editing && s.checkout.allocation.Balanced()
}

// PaySingle charges the whole amount due with one method.
func (s *SettlementService) PaySingle(ctx context.Context, method model.PaymentMethod) error {
	if !method.Valid() {
		return ErrInvalidMethod
	}

	var (
		paid *Checkout
		appt model.Appointment
		leg  pricing.Leg
		key  string
	)
	_, err := s.withCheckout(func(co *Checkout) error {
		if co.editing {
			return ErrEditInProgress
		}
		if co.settledAny() {
			return ErrPartiallySettled
		}
		appt = co.appointment
		leg = pricing.Leg{Method: method, Amount: co.quote().Final}
		if method == model.PaymentMethodWallet && !pricing.WalletCovers(appt.Customer.WalletBalance, leg.Amount) {
			return ErrInsufficientBalance
		}
		key = co.keyFor(leg)
		co.paying = true
		paid = co
		return nil
	})
	if err != nil {
		return err
	}

	err = s.settleLeg(ctx, appt, leg, key)
	s.finishLeg(paid, leg.Method, err == nil)
	if err != nil {
		return s.failed(ctx, appt, leg, key, err)
	}
	return s.completed(ctx, paid)
}

// PaySplit issues every allocated leg in method order and stops at the first
// failure. Legs already charged by an earlier attempt are skipped.
func (s *SettlementService) PaySplit(ctx context.Context) error {
	type plannedLeg struct {
		leg pricing.Leg
		key string
	}

	var (
		paid *Checkout
		appt model.Appointment
		plan []plannedLeg
	)
	_, err := s.withCheckout(func(co *Checkout) error {
		if co.editing {
			return ErrEditInProgress
		}
		if !co.allocation.Balanced() {
			return ErrSplitUnbalanced
		}
		appt = co.appointment
		for _, leg := range co.allocation.Legs() {
			if co.done[leg.Method] {
				continue
			}
			if leg.Method == model.PaymentMethodWallet && !pricing.WalletCovers(appt.Customer.WalletBalance, leg.Amount) {
				return ErrInsufficientBalance
			}
			plan = append(plan, plannedLeg{leg: leg, key: co.keyFor(leg)})
		}
		// nothing is due: one zero sale still records the payment remotely
		if len(plan) == 0 && !co.settledAny() {
			leg := pricing.Leg{Method: model.PaymentMethodCash, Amount: decimal.Zero}
			plan = append(plan, plannedLeg{leg: leg, key: co.keyFor(leg)})
		}
		co.paying = true
		paid = co
		return nil
	})
	if err != nil {
		return err
	}

	for _, p := range plan {
		if err := s.settleLeg(ctx, appt, p.leg, p.key); err != nil {
			s.finishLeg(paid, p.leg.Method, false)
			return s.failed(ctx, appt, p.leg, p.key, fmt.Errorf("%s leg: %w", p.leg.Method, err))
		}
		s.markLeg(paid, p.leg.Method)
	}
	s.finishLeg(paid, "", false)
	return s.completed(ctx, paid)
}

// markLeg and finishLeg only touch the checkout the payment started on.
func (s *SettlementService) markLeg(co *Checkout, method model.PaymentMethod) {
	s.mu.Lock()
	co.done[method] = true
	s.mu.Unlock()
}

func (s *SettlementService) finishLeg(co *Checkout, method model.PaymentMethod, ok bool) {
	s.mu.Lock()
	if ok {
		co.done[method] = true
	}
	co.paying = false
	s.mu.Unlock()
}

// settleLeg sends one charge to the booking API. The appointment snapshot
// carries the leg amount as its importe.
func (s *SettlementService) settleLeg(ctx context.Context, appt model.Appointment, leg pricing.Leg, key string) error {
	snapshot := appt
	snapshot.Amount = leg.Amount

	switch leg.Method {
	case model.PaymentMethodCash, model.PaymentMethodCard:
		sale, err := s.api.CreateSale(ctx, client.SaleRequest{
			Appointment:    snapshot,
			Method:         leg.Method,
			Amount:         leg.Amount,
			Company:        appt.Company,
			IdempotencyKey: key,
		})
		if err != nil {
			return err
		}
		audit(ctx, s.events, s.logger, model.Event{
			EventType:      model.EventTypeSaleCreated,
			UserID:         s.session.UserID(),
			AppointmentID:  appt.ID,
			IdempotencyKey: key,
		}, map[string]any{"saleId": sale.ID, "method": leg.Method, "amount": leg.Amount})
		return nil

	case model.PaymentMethodWallet:
		if !pricing.WalletCovers(appt.Customer.WalletBalance, leg.Amount) {
			return ErrInsufficientBalance
		}
		res, err := s.api.DebitWallet(ctx, client.WalletDebitRequest{
			CustomerID:     appt.Customer.ID,
			CompanyID:      appt.Company,
			AppointmentID:  appt.ID,
			Amount:         leg.Amount,
			IdempotencyKey: key,
		})
		if err != nil {
			return err
		}
		details := map[string]any{"movementId": res.Movement.ID, "amount": leg.Amount, "balance": res.Movement.Balance}
		if res.SaleID != "" {
			sale, err := s.api.FetchSale(ctx, res.SaleID)
			if err != nil {
				return fmt.Errorf("fetch sale %s: %w", res.SaleID, err)
			}
			details["saleId"] = sale.ID
		}
		audit(ctx, s.events, s.logger, model.Event{
			EventType:      model.EventTypeWalletDebited,
			UserID:         s.session.UserID(),
			AppointmentID:  appt.ID,
			IdempotencyKey: key,
		}, details)
		return nil
	}
	return ErrInvalidMethod
}

func (s *SettlementService) failed(ctx context.Context, appt model.Appointment, leg pricing.Leg, key string, err error) error {
	s.logger.Printf("[settlement] appointment %s %s %s: %v", appt.ID, leg.Method, leg.Amount, err)
	audit(ctx, s.events, s.logger, model.Event{
		EventType:      model.EventTypeSettlementFailed,
		UserID:         s.session.UserID(),
		AppointmentID:  appt.ID,
		IdempotencyKey: key,
	}, map[string]any{"method": leg.Method, "amount": leg.Amount, "error": err.Error()})
	s.notifier.Notify(LevelError, UserMessage(err))
	return err
}

func (s *SettlementService) completed(ctx context.Context, co *Checkout) error {
	appt := co.appointment
	s.mu.Lock()
	if s.checkout == co {
		s.checkout = nil
	}
	s.mu.Unlock()

	s.logger.Printf("[settlement] appointment %s settled", appt.ID)
	s.notifier.Notify(LevelSuccess, "Payment completed")

	// The charge went through; a failed refresh is reported by the store itself.
	_ = s.appointments.Refresh(ctx)
	return nil
}

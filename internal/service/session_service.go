package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jjatencia/exorawebipad/internal/calendar"
	"github.com/jjatencia/exorawebipad/internal/model"
	"github.com/jjatencia/exorawebipad/internal/repository"
)

var validate = validator.New()

// Credentials are what staff type on the login screen.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=4"`
}

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*model.Session, error)
}

// SessionService owns the authenticated token and user. Both are persisted
// under fixed keys so a restart restores the session.
type SessionService struct {
	api    Authenticator
	kv     repository.KVRepository
	events repository.EventRepository
	logger *log.Logger
	now    func() time.Time

	mu       sync.RWMutex
	token    string
	user     *model.User
	teardown []func()
}

func NewSessionService(
	api Authenticator,
	kv repository.KVRepository,
	events repository.EventRepository,
	lg *log.Logger,
) *SessionService {
	return &SessionService{
		api:    api,
		kv:     kv,
		events: events,
		logger: discardLogger(lg),
		now:    time.Now,
	}
}

// OnTeardown registers a hook run on every logout, explicit or forced.
func (s *SessionService) OnTeardown(fn func()) {
	s.mu.Lock()
	s.teardown = append(s.teardown, fn)
	s.mu.Unlock()
}

func (s *SessionService) Login(ctx context.Context, creds Credentials) (*model.User, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validate.Struct(creds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	sess, err := s.api.Authenticate(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sess.Token) == "" {
		return nil, fmt.Errorf("login: %w", ErrNotAuthenticated)
	}
	user, err := calendar.ValidateStaffUser(&sess.User)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := repository.SetJSON(ctx, s.kv, model.KeySessionToken, sess.Token); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	if err := repository.SetJSON(ctx, s.kv, model.KeySessionUser, user); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.token = sess.Token
	s.user = user
	s.mu.Unlock()

	s.logger.Printf("[session] %s logged in (company %s)", user.Email, user.Company)
	audit(ctx, s.events, s.logger, model.Event{EventType: model.EventTypeLogin, UserID: user.ID}, nil)

	out := *user
	return &out, nil
}

// CheckAuth restores the session from storage when memory is empty. It
// returns ErrNotAuthenticated when nothing usable is stored; an expired JWT is
// cleared from storage.
func (s *SessionService) CheckAuth(ctx context.Context) (*model.User, error) {
	if u := s.Current(); u != nil {
		return u, nil
	}

	var token string
	if err := repository.GetJSON(ctx, s.kv, model.KeySessionToken, &token); err != nil {
		if errors.Is(err, repository.ErrKeyNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("restore session: %w", err)
	}

	var stored model.User
	if err := repository.GetJSON(ctx, s.kv, model.KeySessionUser, &stored); err != nil {
		if errors.Is(err, repository.ErrKeyNotFound) {
			s.clearStored(ctx)
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("restore session: %w", err)
	}

	if strings.TrimSpace(token) == "" || tokenExpired(token, s.now()) {
		s.clearStored(ctx)
		return nil, ErrNotAuthenticated
	}
	user, err := calendar.ValidateStaffUser(&stored)
	if err != nil {
		s.clearStored(ctx)
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	out := *user
	return &out, nil
}

// Logout drops the session everywhere and runs the teardown hooks.
func (s *SessionService) Logout(ctx context.Context) error {
	s.mu.Lock()
	var userID string
	if s.user != nil {
		userID = s.user.ID
	}
	s.token = ""
	s.user = nil
	hooks := append([]func(){}, s.teardown...)
	s.mu.Unlock()

	err := s.kv.Delete(ctx, model.KeySessionToken, model.KeySessionUser)

	for _, fn := range hooks {
		fn()
	}

	if userID != "" {
		audit(ctx, s.events, s.logger, model.Event{EventType: model.EventTypeLogout, UserID: userID}, nil)
	}
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// HandleUnauthorized is wired as the API client's hook for rejected tokens.
func (s *SessionService) HandleUnauthorized() {
	if !s.Authenticated() {
		return
	}
	s.logger.Printf("[session] token rejected by the booking API, logging out")
	if err := s.Logout(context.Background()); err != nil {
		s.logger.Printf("[session] forced logout: %v", err)
	}
}

// Token implements client.TokenSource.
func (s *SessionService) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *SessionService) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

// Current returns a copy of the logged-in user, nil when logged out.
func (s *SessionService) Current() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil || s.token == "" {
		return nil
	}
	out := *s.user
	return &out
}

func (s *SessionService) UserID() string {
	if u := s.Current(); u != nil {
		return u.ID
	}
	return ""
}

// Company scopes every appointment and catalog query.
func (s *SessionService) Company() string {
	if u := s.Current(); u != nil {
		return u.Company
	}
	return ""
}

func (s *SessionService) clearStored(ctx context.Context) {
	if err := s.kv.Delete(ctx, model.KeySessionToken, model.KeySessionUser); err != nil {
		s.logger.Printf("[session] clear stored session: %v", err)
	}
}

// tokenExpired reports whether token is a JWT whose exp is not after now.
// Opaque tokens never expire locally.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

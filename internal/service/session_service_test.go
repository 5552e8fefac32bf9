package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jjatencia/exorawebipad/internal/calendar"
	"github.com/jjatencia/exorawebipad/internal/client"
	"github.com/jjatencia/exorawebipad/internal/model"
	"github.com/jjatencia/exorawebipad/internal/repository"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-1",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func newTestSession(t *testing.T, api *fakeAPI) (*SessionService, repository.KVRepository, *repository.GormEventRepository) {
	t.Helper()
	gdb := openTestDB(t)
	kv := repository.NewGormKVRepository(gdb)
	events := repository.NewGormEventRepository(gdb)
	return NewSessionService(api, kv, events, nil), kv, events
}

func staffSession(token string) *model.Session {
	return &model.Session{
		Token: token,
		User:  model.User{ID: "u-1", Name: "Ana", Email: " Ana@Exora.App ", Company: "emp-1", Role: "staff"},
	}
}

func TestSessionService_LoginPersistsTokenAndUser(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.session = staffSession("opaque-token")
	svc, kv, events := newTestSession(t, api)

	u, err := svc.Login(ctx, Credentials{Email: "ana@exora.app", Password: "secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Email != "ana@exora.app" || u.Company != "emp-1" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if svc.Token() != "opaque-token" || !svc.Authenticated() {
		t.Fatalf("expected session in memory")
	}

	var token string
	if err := repository.GetJSON(ctx, kv, model.KeySessionToken, &token); err != nil || token != "opaque-token" {
		t.Fatalf("expected persisted token, got %q, %v", token, err)
	}
	var stored model.User
	if err := repository.GetJSON(ctx, kv, model.KeySessionUser, &stored); err != nil || stored.ID != "u-1" {
		t.Fatalf("expected persisted user, got %+v, %v", stored, err)
	}

	list, total, err := events.ListByRange(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour), 0, 0)
	if err != nil || total != 1 || list[0].EventType != model.EventTypeLogin {
		t.Fatalf("expected one login event, got %d (%v)", total, err)
	}
}

func TestSessionService_LoginValidatesCredentials(t *testing.T) {
	api := newFakeAPI()
	api.session = staffSession("tok")
	svc, _, _ := newTestSession(t, api)

	cases := []Credentials{
		{Email: "", Password: "secret"},
		{Email: "not-an-email", Password: "secret"},
		{Email: "ana@exora.app", Password: "123"},
	}
	for _, c := range cases {
		if _, err := svc.Login(context.Background(), c); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("credentials %+v: expected ErrInvalidCredentials, got %v", c, err)
		}
	}
	if svc.Authenticated() {
		t.Fatalf("no session expected")
	}
}

func TestSessionService_LoginRejectsUserWithoutCompany(t *testing.T) {
	api := newFakeAPI()
	api.session = staffSession("tok")
	api.session.User.Company = ""
	svc, kv, _ := newTestSession(t, api)

	_, err := svc.Login(context.Background(), Credentials{Email: "ana@exora.app", Password: "secret"})
	if !errors.Is(err, calendar.ErrMissingCompany) {
		t.Fatalf("expected ErrMissingCompany, got %v", err)
	}
	if _, err := kv.Get(context.Background(), model.KeySessionToken); !errors.Is(err, repository.ErrKeyNotFound) {
		t.Fatalf("nothing should be persisted, got %v", err)
	}
}

func TestSessionService_LoginPropagatesRemoteError(t *testing.T) {
	api := newFakeAPI()
	api.loginErr = &client.APIError{Status: 400, Message: "Credenciales incorrectas"}
	svc, _, _ := newTestSession(t, api)

	_, err := svc.Login(context.Background(), Credentials{Email: "ana@exora.app", Password: "secret"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if msg := UserMessage(err); msg != "Credenciales incorrectas" {
		t.Fatalf("expected remote message, got %q", msg)
	}
}

func TestSessionService_CheckAuthRestoresFromStorage(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	token := signedToken(t, time.Now().Add(time.Hour))
	api.session = staffSession(token)

	gdb := openTestDB(t)
	kv := repository.NewGormKVRepository(gdb)

	first := NewSessionService(api, kv, nil, nil)
	if _, err := first.Login(ctx, Credentials{Email: "ana@exora.app", Password: "secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	// a fresh process sees only storage
	second := NewSessionService(api, kv, nil, nil)
	u, err := second.CheckAuth(ctx)
	if err != nil {
		t.Fatalf("check auth: %v", err)
	}
	if u.ID != "u-1" || second.Token() != token || second.Company() != "emp-1" {
		t.Fatalf("session not restored: %+v", u)
	}
}

func TestSessionService_CheckAuthRejectsExpiredJWT(t *testing.T) {
	ctx := context.Background()
	svc, kv, _ := newTestSession(t, newFakeAPI())

	expired := signedToken(t, time.Now().Add(-time.Minute))
	if err := repository.SetJSON(ctx, kv, model.KeySessionToken, expired); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	if err := repository.SetJSON(ctx, kv, model.KeySessionUser, staffSession("").User); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if _, err := svc.CheckAuth(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := kv.Get(ctx, model.KeySessionToken); !errors.Is(err, repository.ErrKeyNotFound) {
		t.Fatalf("expected expired token cleared, got %v", err)
	}
}

func TestSessionService_CheckAuthWithEmptyStorage(t *testing.T) {
	svc, _, _ := newTestSession(t, newFakeAPI())
	if _, err := svc.CheckAuth(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestSessionService_LogoutClearsAndRunsTeardown(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.session = staffSession("tok")
	svc, kv, _ := newTestSession(t, api)

	torn := 0
	svc.OnTeardown(func() { torn++ })

	if _, err := svc.Login(ctx, Credentials{Email: "ana@exora.app", Password: "secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if svc.Authenticated() || svc.Token() != "" || svc.Current() != nil {
		t.Fatalf("expected memory cleared")
	}
	if _, err := kv.Get(ctx, model.KeySessionUser); !errors.Is(err, repository.ErrKeyNotFound) {
		t.Fatalf("expected user cleared, got %v", err)
	}
	if torn != 1 {
		t.Fatalf("expected teardown once, got %d", torn)
	}
}

func TestSessionService_HandleUnauthorizedForcesLogoutOnce(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.session = staffSession("tok")
	svc, _, _ := newTestSession(t, api)

	torn := 0
	svc.OnTeardown(func() { torn++ })
	if _, err := svc.Login(ctx, Credentials{Email: "ana@exora.app", Password: "secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.HandleUnauthorized()
	svc.HandleUnauthorized()

	if svc.Authenticated() {
		t.Fatalf("expected forced logout")
	}
	if torn != 1 {
		t.Fatalf("expected one teardown, got %d", torn)
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	if tokenExpired("opaque", now) {
		t.Fatalf("opaque tokens never expire locally")
	}
	if tokenExpired(signedToken(t, now.Add(time.Hour)), now) {
		t.Fatalf("future exp is valid")
	}
	if !tokenExpired(signedToken(t, now.Add(-time.Hour)), now) {
		t.Fatalf("past exp must be expired")
	}
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/steva-school/parent-portal/internal/apiclient"
	"github.com/steva-school/parent-portal/internal/flow"
	"github.com/steva-school/parent-portal/pkg/errs"
	"github.com/steva-school/parent-portal/pkg/logger"
)

const (
	pathLogin   = "/api/v1/auth/login/"
	pathLogout  = "/api/v1/auth/logout/"
	pathRefresh = "/api/v1/auth/token/refresh/"

	loginFailed = "login failed"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Type     string `json:"type"`
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type loginResponse struct {
	tokenPair
	Tokens *tokenPair `json:"tokens"`
}

func (r loginResponse) pair() tokenPair {
	if r.Access == "" && r.Tokens != nil {
		return *r.Tokens
	}
	return r.tokenPair
}

// Manager is the only writer of the session store.
type Manager struct {
	mu    sync.Mutex
	api   apiclient.Client
	store Store
	nav   flow.Navigator
	now   func() time.Time
}

func NewManager(api apiclient.Client, store Store, nav flow.Navigator) *Manager {
	return &Manager{api: api, store: store, nav: flow.Or(nav), now: time.Now}
}

// Login exchanges credentials for a token pair and persists it before
// returning. Every failure is an *errs.AuthError.
func (m *Manager) Login(ctx context.Context, in Credentials) (Session, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return Session{}, &errs.AuthError{Reason: "Email and password are required", Err: errs.ErrInvalidInput}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out loginResponse
	err := m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   pathLogin,
		Body:   loginRequest{Email: email, Password: in.Password, Type: "email"},
	}, &out)
	if err != nil {
		reason := loginFailed
		var se *errs.ServerError
		if errors.As(err, &se) && se.Message != "" {
			reason = se.Message
		}
		logger.From(ctx).Warn("session.login failed", slog.String("reason", reason), slog.Any("err", err))
		return Session{}, &errs.AuthError{Reason: reason, Err: err}
	}

	s, err := m.persist(ctx, out.pair())
	if err != nil {
		return Session{}, &errs.AuthError{Reason: loginFailed, Err: err}
	}

	logger.From(ctx).Info("session.login ok")
	return s, nil
}

// Adopt stores a token pair issued outside of Login, e.g. by registration.
func (m *Manager) Adopt(ctx context.Context, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.persist(ctx, tokenPair{Access: access, Refresh: refresh}); err != nil {
		logger.From(ctx).Warn("session.adopt failed", slog.Any("err", err))
		return err
	}
	logger.From(ctx).Info("session.adopt ok")
	return nil
}

// persist requires m.mu.
func (m *Manager) persist(ctx context.Context, p tokenPair) (Session, error) {
	s := Session{AccessToken: p.Access, RefreshToken: p.Refresh}
	if !s.Valid() {
		return Session{}, fmt.Errorf("%w: response without token pair", errs.ErrUpstream)
	}
	if err := m.store.Set(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// SignIn runs Login and navigates home on success.
func (m *Manager) SignIn(ctx context.Context, in Credentials) flow.Outcome {
	o := flow.Success(flow.ScreenHome, "")
	if _, err := m.Login(ctx, in); err != nil {
		o = flow.Failure(flow.ScreenLogin, err, loginFailed)
	}
	m.nav.Navigate(ctx, o)
	return o
}

// Logout clears the store unconditionally, then asks the backend to revoke
// the refresh token. Revocation failures are only logged.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	prev, getErr := m.store.Get(ctx)
	if err := m.store.Clear(ctx); err != nil {
		logger.From(ctx).Error("session.logout clear failed", slog.Any("err", err))
	}
	m.mu.Unlock()

	if getErr != nil || prev.RefreshToken == "" {
		return
	}
	err := m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   pathLogout,
		Body:   map[string]string{"refresh": prev.RefreshToken},
		Auth:   true,
		Token:  prev.AccessToken,
	}, nil)
	if err != nil {
		logger.From(ctx).Warn("session.logout revoke failed", slog.Any("err", err))
	}
}

func (m *Manager) SignOut(ctx context.Context) flow.Outcome {
	m.Logout(ctx)
	o := flow.Success(flow.ScreenLogin, "")
	m.nav.Navigate(ctx, o)
	return o
}

func (m *Manager) Current(ctx context.Context) (Session, bool) {
	s, err := m.store.Get(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			logger.From(ctx).Error("session.current read failed", slog.Any("err", err))
		}
		return Session{}, false
	}
	return s, true
}

// Refresh obtains a new access token. The pair is replaced with one Set or
// left as it was.
func (m *Manager) Refresh(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.store.Get(ctx)
	if errors.Is(err, ErrNoSession) {
		return Session{}, errs.ErrUnauthenticated
	}
	if err != nil {
		return Session{}, err
	}

	var out tokenPair
	err = m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   pathRefresh,
		Body:   map[string]string{"refresh": cur.RefreshToken},
	}, &out)
	if err != nil {
		logger.From(ctx).Warn("session.refresh failed", slog.Any("err", err))
		return Session{}, err
	}
	if out.Access == "" {
		return Session{}, fmt.Errorf("%w: refresh response without access token", errs.ErrUpstream)
	}

	next := Session{AccessToken: out.Access, RefreshToken: cur.RefreshToken}
	if out.Refresh != "" {
		next.RefreshToken = out.Refresh
	}
	if err := m.store.Set(ctx, next); err != nil {
		return Session{}, err
	}
	return next, nil
}

// Claims decodes the current access token.
func (m *Manager) Claims(ctx context.Context) (TokenClaims, bool) {
	s, ok := m.Current(ctx)
	if !ok {
		return TokenClaims{}, false
	}
	c, err := ParseClaims(s.AccessToken)
	if err != nil {
		logger.From(ctx).Debug("session.claims unreadable", slog.Any("err", err))
		return TokenClaims{}, false
	}
	return c, true
}

// ParentID is the user_id claim of the current access token.
func (m *Manager) ParentID(ctx context.Context) (string, error) {
	c, ok := m.Claims(ctx)
	if !ok {
		return "", errs.ErrUnauthenticated
	}
	return c.UserID, nil
}

// EnsureFresh refreshes when the access token has expired.
func (m *Manager) EnsureFresh(ctx context.Context) error {
	c, ok := m.Claims(ctx)
	if !ok || !c.Expired(m.now()) {
		return nil
	}
	_, err := m.Refresh(ctx)
	return err
}

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/steva-school/parent-portal/pkg/errs"
)

// Fixed keys under which the two tokens are persisted.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

var (
	ErrNoSession      = errors.New("no session stored")
	ErrPartialSession = errors.New("session requires both tokens")
)

// Session is either complete or absent; stores never hold one token alone.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s Session) Valid() bool { return s.AccessToken != "" && s.RefreshToken != "" }

// Store persists the current session. Set replaces both tokens at once.
type Store interface {
	Get(ctx context.Context) (Session, error)
	Set(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

func checkComplete(s Session) error {
	if !s.Valid() {
		return ErrPartialSession
	}
	return nil
}

// TokenSource adapts a Store for apiclient's authenticated calls.
type TokenSource struct {
	Store Store
}

func (t TokenSource) AccessToken(ctx context.Context) (string, error) {
	s, err := t.Store.Get(ctx)
	switch {
	case errors.Is(err, ErrNoSession):
		return "", errs.ErrUnauthenticated
	case err != nil:
		return "", fmt.Errorf("read session: %w", err)
	}
	return s.AccessToken, nil
}

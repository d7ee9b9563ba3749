package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the access-token claims the portal reads. The signature is
// not checked: the backend owns the key and verifies every call.
type TokenClaims struct {
	UserID    string
	ExpiresAt time.Time
}

func (c TokenClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

func ParseClaims(token string) (TokenClaims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return TokenClaims{}, fmt.Errorf("parse access token: %w", err)
	}

	var out TokenClaims
	switch v := mc["user_id"].(type) {
	case string:
		out.UserID = v
	case float64:
		out.UserID = strconv.FormatInt(int64(v), 10)
	case nil:
		return TokenClaims{}, errors.New("access token has no user_id claim")
	default:
		return TokenClaims{}, fmt.Errorf("access token user_id has type %T", v)
	}

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return TokenClaims{}, fmt.Errorf("access token exp: %w", err)
	}
	if exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

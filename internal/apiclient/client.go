package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steva-school/parent-portal/pkg/errs"
	"github.com/steva-school/parent-portal/pkg/httputil"
	"github.com/steva-school/parent-portal/pkg/logger"
)

// TokenSource yields the bearer for authenticated calls. It returns
// errs.ErrUnauthenticated when there is no session.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Request struct {
	Method string
	Path   string
	Body   any
	// Auth attaches the current access token.
	Auth bool
	// Token overrides the stored access token for this call.
	Token string
}

type Client interface {
	Do(ctx context.Context, in Request, out any) error
}

type client struct {
	baseURL string
	timeout time.Duration
	tokens  TokenSource
	http    Doer
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenSource
	HTTP    Doer
}

func New(opts Options) (Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("api client: empty base url")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{}
	}

	return &client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		tokens:  opts.Tokens,
		http:    opts.HTTP,
	}, nil
}

func (c *client) Do(ctx context.Context, in Request, out any) error {
	bearer := in.Token
	if in.Auth && bearer == "" {
		if c.tokens == nil {
			return errs.ErrUnauthenticated
		}
		tok, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return err
		}
		bearer = tok
	}

	var body io.Reader
	if in.Body != nil {
		raw, err := json.Marshal(in.Body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, in.Method, c.baseURL+in.Path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rid, ok := httputil.FromContext(ctx)
	if !ok {
		rid = uuid.NewString()
	}
	req.Header.Set(httputil.HeaderRequestID, rid)

	op := in.Method + " " + in.Path
	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		logger.From(ctx).Warn("apiclient.request failed", slog.String("op", op), slog.Any("err", err))
		return &errs.NetworkError{Op: op, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return &errs.NetworkError{Op: op, Err: err}
	}
	logger.From(ctx).Debug("apiclient.request",
		slog.String("op", op),
		slog.Int("status", res.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeServerError(res.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", errs.ErrUpstream, op, err)
	}

	return nil
}

var messageKeys = []string{"detail", "message", "error"}

// decodeServerError maps a non-2xx body into errs.ServerError. Field errors
// come from an "errors" object or list, or from a top-level field map.
func decodeServerError(status int, raw []byte) error {
	se := &errs.ServerError{Status: status}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return se
	}

	for _, k := range messageKeys {
		var s string
		if v, ok := body[k]; ok && json.Unmarshal(v, &s) == nil && s != "" {
			se.Message = s
			break
		}
	}

	if v, ok := body["errors"]; ok {
		se.Fields = decodeFields(v)
	} else {
		fields := make(map[string][]string)
		for k, v := range body {
			if isMessageKey(k) {
				continue
			}
			if msgs := decodeMessages(v); len(msgs) > 0 {
				fields[k] = msgs
			}
		}
		if len(fields) > 0 {
			se.Fields = fields
		}
	}

	if se.Message == "" {
		if nfe := se.Fields["non_field_errors"]; len(nfe) > 0 {
			se.Message = nfe[0]
		}
	}

	return se
}

func decodeFields(raw json.RawMessage) map[string][]string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		out := make(map[string][]string, len(obj))
		for k, v := range obj {
			if msgs := decodeMessages(v); len(msgs) > 0 {
				out[k] = msgs
			}
		}
		return out
	}
	if msgs := decodeMessages(raw); len(msgs) > 0 {
		return map[string][]string{"non_field_errors": msgs}
	}
	return nil
}

// decodeMessages accepts a string or a list of strings.
func decodeMessages(raw json.RawMessage) []string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if str, ok := item.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

func isMessageKey(k string) bool {
	for _, m := range messageKeys {
		if k == m {
			return true
		}
	}
	return false
}

// IsStatus reports whether err is a server error with the given status.
func IsStatus(err error, status int) bool {
	var se *errs.ServerError
	return errors.As(err, &se) && se.Status == status
}

package recovery

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/steva-school/parent-portal/internal/apiclient"
	"github.com/steva-school/parent-portal/internal/flow"
	"github.com/steva-school/parent-portal/pkg/errs"
	"github.com/steva-school/parent-portal/pkg/logger"
	"github.com/steva-school/parent-portal/pkg/validator"
)

const (
	pathRequest = "/api/v1/auth/password-reset/"
	pathConfirm = "/api/v1/auth/password-reset-confirm/"

	msgSendFailed   = "Failed to send reset email. Please try again"
	msgSent         = "If this email exists, a reset link has been sent"
	msgResetFailed  = "Failed to reset password"
	msgResetSuccess = "Password reset successful"
)

type Stage int

const (
	StageRequest Stage = iota
	StageReset
	StageConfirmation
)

func (s Stage) String() string {
	switch s {
	case StageReset:
		return "reset"
	case StageConfirmation:
		return "confirmation"
	default:
		return "request"
	}
}

// Binding holds the identifiers delivered in a reset link. Both are opaque.
type Binding struct {
	UserID string `json:"uid"`
	Token  string `json:"token"`
}

func (b Binding) valid() bool {
	return b.UserID != "" && b.Token != "" &&
		!strings.ContainsAny(b.UserID, "/ ") && !strings.ContainsAny(b.Token, "/ ")
}

type Options struct {
	// SingleUseToken consumes the binding after a successful reset.
	SingleUseToken bool
}

// Flow drives request, link receipt, reset and confirmation. A failed reset
// keeps the binding so the user can retry without a new email.
type Flow struct {
	mu        sync.Mutex
	api       apiclient.Client
	nav       flow.Navigator
	singleUse bool

	stage    Stage
	binding  *Binding
	consumed bool
}

func New(api apiclient.Client, nav flow.Navigator, opts Options) *Flow {
	return &Flow{api: api, nav: flow.Or(nav), singleUse: opts.SingleUseToken}
}

func (f *Flow) Stage() Stage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stage
}

func (f *Flow) Binding() (Binding, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.binding == nil {
		return Binding{}, false
	}
	return *f.binding, true
}

type emailInput struct {
	Email string `json:"email" validate:"required,email"`
}

// RequestReset asks the backend to email a reset link.
func (f *Flow) RequestReset(ctx context.Context, email string) (flow.Outcome, error) {
	in := emailInput{Email: strings.TrimSpace(email)}

	var (
		o   flow.Outcome
		err error
	)
	if fields, verr := validator.ValidateStruct(in); verr != nil {
		err = &errs.ValidationError{Code: "invalid_fields", Fields: fields}
		o = flow.Failure(flow.ScreenForgotPassword, err, "")
	} else if err = f.api.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: pathRequest, Body: in}, nil); err != nil {
		logger.From(ctx).Warn("recovery.request failed", slog.Any("err", err))
		o = flow.Outcome{Next: flow.ScreenForgotPassword, Err: err, Message: msgSendFailed}
	} else {
		f.mu.Lock()
		f.stage = StageRequest
		f.mu.Unlock()
		o = flow.Success(flow.ScreenCheckEmail, msgSent)
	}

	f.nav.Navigate(ctx, o)
	return o, err
}

// BindLink parses a delivered reset link and binds its identifiers.
func (f *Flow) BindLink(ctx context.Context, rawURL string) flow.Outcome {
	b, ok := ParseLink(rawURL)
	if !ok {
		return f.rejectLink(ctx)
	}
	return f.Bind(ctx, b.UserID, b.Token)
}

func (f *Flow) Bind(ctx context.Context, userID, token string) flow.Outcome {
	b := Binding{UserID: strings.TrimSpace(userID), Token: strings.TrimSpace(token)}
	if !b.valid() {
		return f.rejectLink(ctx)
	}

	f.mu.Lock()
	f.binding = &b
	f.consumed = false
	f.stage = StageReset
	f.mu.Unlock()

	o := flow.Success(flow.ScreenResetPassword, "")
	f.nav.Navigate(ctx, o)
	return o
}

func (f *Flow) rejectLink(ctx context.Context) flow.Outcome {
	o := flow.Failure(flow.ScreenResetLinkError, &errs.ValidationError{Code: "invalid_reset_link"}, "")
	f.nav.Navigate(ctx, o)
	return o
}

// ConfirmReset submits the new password with the bound identifiers.
func (f *Flow) ConfirmReset(ctx context.Context, newPassword string) (flow.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, err := f.confirm(ctx, newPassword)
	f.nav.Navigate(ctx, o)
	return o, err
}

func (f *Flow) confirm(ctx context.Context, newPassword string) (flow.Outcome, error) {
	if f.consumed {
		return flow.Failure(flow.ScreenForgotPassword, errs.ErrTokenConsumed, ""), errs.ErrTokenConsumed
	}
	if f.binding == nil {
		return flow.Failure(flow.ScreenResetLinkError, errs.ErrNoResetBinding, ""), errs.ErrNoResetBinding
	}
	if strings.TrimSpace(newPassword) == "" {
		err := &errs.ValidationError{Code: "invalid_fields", Fields: map[string]string{"password": "field is required"}}
		return flow.Failure(flow.ScreenResetPassword, err, ""), err
	}

	b := *f.binding
	err := f.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   pathConfirm + url.PathEscape(b.UserID) + "/" + url.PathEscape(b.Token) + "/",
		Body:   map[string]string{"password": newPassword},
	}, nil)
	if err != nil {
		logger.From(ctx).Warn("recovery.confirm failed", slog.Any("err", err))
		return flow.Failure(flow.ScreenResetPassword, err, msgResetFailed), err
	}

	f.stage = StageConfirmation
	if f.singleUse {
		f.binding = nil
		f.consumed = true
	}
	logger.From(ctx).Info("recovery.confirm ok")
	return flow.Success(flow.ScreenLogin, msgResetSuccess), nil
}

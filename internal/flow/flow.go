package flow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/steva-school/parent-portal/pkg/errs"
	"github.com/steva-school/parent-portal/pkg/logger"
)

// Screen is a named destination in the portal UI.
type Screen string

const (
	ScreenLogin          Screen = "/"
	ScreenHome           Screen = "/Homepage"
	ScreenRegister       Screen = "/Register"
	ScreenVerify         Screen = "/Verifypage"
	ScreenVerifySuccess  Screen = "/VerifySuccess"
	ScreenVerifyError    Screen = "/VeriError"
	ScreenForgotPassword Screen = "/Resetpassword"
	ScreenCheckEmail     Screen = "/Coderequest"
	ScreenResetPassword  Screen = "/Confirmresetpassword"
	ScreenResetLinkError Screen = "/ResetLinkError"
	ScreenProfile        Screen = "/Profileview"
	ScreenProfileUpdate  Screen = "/ProfileUpdate"
)

// Outcome is the tagged result of one flow operation. Err is nil on success;
// Message is the user-facing text for either branch.
type Outcome struct {
	Next    Screen
	Err     error
	Message string
}

func (o Outcome) OK() bool { return o.Err == nil }

func Success(next Screen, msg string) Outcome {
	return Outcome{Next: next, Message: msg}
}

// Failure renders err for display, falling back to fallback when err
// carries no presentable text.
func Failure(stay Screen, err error, fallback string) Outcome {
	return Outcome{Next: stay, Err: err, Message: errs.UserMessage(err, fallback)}
}

// Navigator performs the screen transition an Outcome names.
type Navigator interface {
	Navigate(ctx context.Context, o Outcome)
}

type NavigatorFunc func(ctx context.Context, o Outcome)

func (f NavigatorFunc) Navigate(ctx context.Context, o Outcome) { f(ctx, o) }

type discard struct{}

func (discard) Navigate(context.Context, Outcome) {}

var Discard Navigator = discard{}

// LogNavigator records transitions in the request log.
type LogNavigator struct{}

func (LogNavigator) Navigate(ctx context.Context, o Outcome) {
	attrs := []any{slog.String("next", string(o.Next))}
	if o.Err != nil {
		attrs = append(attrs, slog.String("kind", string(errs.KindOf(o.Err))))
	}
	logger.From(ctx).Debug("flow.navigate", attrs...)
}

// Recorder keeps every transition in order.
type Recorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *Recorder) Navigate(_ context.Context, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *Recorder) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

// Last returns the most recent transition.
func (r *Recorder) Last() (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.outcomes) == 0 {
		return Outcome{}, false
	}
	return r.outcomes[len(r.outcomes)-1], true
}

// Or returns nav, or Discard when nav is nil.
func Or(nav Navigator) Navigator {
	if nav == nil {
		return Discard
	}
	return nav
}

package verification

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/steva-school/parent-portal/internal/apiclient"
	"github.com/steva-school/parent-portal/internal/flow"
	"github.com/steva-school/parent-portal/pkg/errs"
	"github.com/steva-school/parent-portal/pkg/logger"
)

type State int

const (
	AwaitingInput State = iota
	Verified
	Invalid
)

func (s State) String() string {
	switch s {
	case Verified:
		return "verified"
	case Invalid:
		return "invalid"
	default:
		return "awaiting_input"
	}
}

var studentIDRe = regexp.MustCompile(`^[A-Za-z0-9-]{1,32}$`)

const signInToVerify = "Please sign in to verify your child's Student ID"

// Result of one submission. Reason is set when State is Invalid.
type Result struct {
	State   State
	Reason  string
	Outcome flow.Outcome
}

// Flow links a student to the signed-in parent. Invalid is retryable; each
// submission is independent.
type Flow struct {
	mu    sync.Mutex
	api   apiclient.Client
	nav   flow.Navigator
	state State
}

func New(api apiclient.Client, nav flow.Navigator) *Flow {
	return &Flow{api: api, nav: flow.Or(nav)}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) SubmitStudentID(ctx context.Context, studentID string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	res, err := f.submit(ctx, strings.TrimSpace(studentID))
	f.nav.Navigate(ctx, res.Outcome)
	return res, err
}

func (f *Flow) submit(ctx context.Context, id string) (Result, error) {
	if !studentIDRe.MatchString(id) {
		return f.invalid(&errs.ValidationError{Code: "invalid_student_id"}), nil
	}

	err := f.api.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/students/" + url.PathEscape(id) + "/",
		Auth:   true,
	}, nil)
	switch {
	case err == nil:
		f.state = Verified
		logger.From(ctx).Info("verification.submit linked")
		return Result{State: Verified, Outcome: flow.Success(flow.ScreenVerifySuccess, "Student verified")}, nil
	case apiclient.IsStatus(err, http.StatusNotFound):
		return f.invalid(err), nil
	case errors.Is(err, errs.ErrUnauthenticated):
		logger.From(ctx).Info("verification.submit without session")
		o := flow.Failure(flow.ScreenLogin, err, "")
		o.Message = signInToVerify
		return Result{State: f.state, Outcome: o}, err
	default:
		logger.From(ctx).Warn("verification.submit failed", slog.Any("err", err))
		return Result{State: f.state, Outcome: flow.Failure(flow.ScreenVerify, err, "Verification failed. Please try again")}, err
	}
}

func (f *Flow) invalid(cause error) Result {
	f.state = Invalid
	o := flow.Failure(flow.ScreenVerifyError, cause, "")
	o.Message = errs.UserMessage(&errs.ValidationError{Code: "invalid_student_id"}, "")
	return Result{State: Invalid, Reason: o.Message, Outcome: o}
}

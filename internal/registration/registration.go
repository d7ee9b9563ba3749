package registration

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/steva-school/parent-portal/internal/apiclient"
	"github.com/steva-school/parent-portal/internal/flow"
	"github.com/steva-school/parent-portal/pkg/errs"
	"github.com/steva-school/parent-portal/pkg/logger"
	"github.com/steva-school/parent-portal/pkg/validator"
)

const (
	pathRegister = "/api/v1/auth/register/"

	RoleParent = "parent"

	signInToVerify = "Account created. Sign in to verify your child's Student ID"
)

type Request struct {
	Email           string `json:"email" validate:"required,email"`
	FirstName       string `json:"first_name" validate:"required,max=150"`
	LastName        string `json:"last_name" validate:"required,max=150"`
	PhoneNumber     string `json:"phone_number" validate:"omitempty,phone"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password"`
	Role            string `json:"role" validate:"omitempty,oneof=parent"`
}

// wireRequest is what the backend receives; the confirmation never leaves
// the client.
type wireRequest struct {
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type registerResponse struct {
	Tokens *tokenPair `json:"tokens"`
}

// SessionWriter stores the token pair the backend issues on sign-up.
type SessionWriter interface {
	Adopt(ctx context.Context, access, refresh string) error
}

type Flow struct {
	api      apiclient.Client
	sessions SessionWriter
	nav      flow.Navigator
}

func New(api apiclient.Client, sessions SessionWriter, nav flow.Navigator) *Flow {
	return &Flow{api: api, sessions: sessions, nav: flow.Or(nav)}
}

// Register validates locally, then submits. A new account with a stored
// session goes on to verification; without one the user has to sign in first.
func (f *Flow) Register(ctx context.Context, in Request) (flow.Outcome, error) {
	o, err := f.register(ctx, in)
	f.nav.Navigate(ctx, o)
	return o, err
}

func (f *Flow) register(ctx context.Context, in Request) (flow.Outcome, error) {
	in = normalize(in)

	if in.Password != in.ConfirmPassword {
		err := &errs.ValidationError{Code: "password_mismatch"}
		return flow.Failure(flow.ScreenRegister, err, ""), err
	}
	if fields, verr := validator.ValidateStruct(in); verr != nil {
		err := &errs.ValidationError{Code: "invalid_fields", Fields: fields}
		return flow.Failure(flow.ScreenRegister, err, ""), err
	}

	var out registerResponse
	err := f.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   pathRegister,
		Body: wireRequest{
			Email:       in.Email,
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			PhoneNumber: in.PhoneNumber,
			Password:    in.Password,
			Role:        in.Role,
		},
	}, &out)
	if err != nil {
		logger.From(ctx).Warn("registration.register failed", slog.Any("err", err))
		return flow.Failure(flow.ScreenRegister, err, "Registration failed"), err
	}

	if out.Tokens == nil || f.sessions == nil {
		logger.From(ctx).Info("registration.register ok", slog.Bool("session", false))
		return flow.Success(flow.ScreenLogin, signInToVerify), nil
	}
	if err := f.sessions.Adopt(ctx, out.Tokens.Access, out.Tokens.Refresh); err != nil {
		logger.From(ctx).Warn("registration.register session not stored", slog.Any("err", err))
		return flow.Success(flow.ScreenLogin, signInToVerify), nil
	}

	logger.From(ctx).Info("registration.register ok", slog.Bool("session", true))
	return flow.Success(flow.ScreenVerify, "Account created. Verify your child's Student ID to continue"), nil
}

var phoneSeparators = strings.NewReplacer(" ", "", "-", "")

func normalize(in Request) Request {
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.PhoneNumber = phoneSeparators.Replace(strings.TrimSpace(in.PhoneNumber))
	if in.Role == "" {
		in.Role = RoleParent
	}
	return in
}

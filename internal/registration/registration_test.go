package registration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/steva-school/parent-portal/internal/apiclient"
	"github.com/steva-school/parent-portal/internal/flow"
	"github.com/steva-school/parent-portal/pkg/errs"
)

func validRequest() Request {
	return Request{
		Email:           "parent@school.ke",
		FirstName:       "Amina",
		LastName:        "Otieno",
		PhoneNumber:     "+254 712345678",
		Password:        "s3cretpass",
		ConfirmPassword: "s3cretpass",
	}
}

type adoptedPair struct {
	access, refresh string
	err             error
	calls           int
}

func (a *adoptedPair) Adopt(_ context.Context, access, refresh string) error {
	a.calls++
	a.access, a.refresh = access, refresh
	return a.err
}

func newFlow(t *testing.T, h http.HandlerFunc) (*Flow, *int32, *flow.Recorder) {
	f, calls, rec, _ := newFlowWithSessions(t, h)
	return f, calls, rec
}

func newFlowWithSessions(t *testing.T, h http.HandlerFunc) (*Flow, *int32, *flow.Recorder, *adoptedPair) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	api, err := apiclient.New(apiclient.Options{BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("api client: %v", err)
	}
	rec := &flow.Recorder{}
	sessions := &adoptedPair{}
	return New(api, sessions, rec), &calls, rec, sessions
}

func TestRegister_PasswordMismatchNoNetwork(t *testing.T) {
	f, calls, rec := newFlow(t, func(w http.ResponseWriter, r *http.Request) {})

	in := validRequest()
	in.ConfirmPassword = "different"
	o, err := f.Register(context.Background(), in)

	var ve *errs.ValidationError
	if !errors.As(err, &ve) || ve.Code != "password_mismatch" {
		t.Fatalf("expected password_mismatch, got %v", err)
	}
	if *calls != 0 {
		t.Fatalf("expected zero network calls, got %d", *calls)
	}
	if o.Next != flow.ScreenRegister || o.Message != "Passwords don't match" {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if _, ok := rec.Last(); !ok {
		t.Fatalf("navigator not called")
	}
}

func TestRegister_FieldValidationNoNetwork(t *testing.T) {
	f, calls, _ := newFlow(t, func(w http.ResponseWriter, r *http.Request) {})

	in := validRequest()
	in.Email = "not-an-email"
	in.PhoneNumber = "123"
	_, err := f.Register(context.Background(), in)

	fields := errs.FieldsOf(err)
	if len(fields["email"]) != 1 || len(fields["phone_number"]) != 1 {
		t.Fatalf("expected email and phone field errors, got %v", fields)
	}
	if *calls != 0 {
		t.Fatalf("expected zero network calls")
	}
}

func TestRegister_SuccessExcludesConfirmation(t *testing.T) {
	var body map[string]any
	f, _, rec, sessions := newFlowWithSessions(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathRegister {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"message":"User registered successfully","tokens":{"access":"a1","refresh":"r1"}}`))
	})

	o, err := f.Register(context.Background(), validRequest())
	if err != nil || o.Next != flow.ScreenVerify {
		t.Fatalf("unexpected result %+v %v", o, err)
	}
	if sessions.calls != 1 || sessions.access != "a1" || sessions.refresh != "r1" {
		t.Fatalf("issued tokens not stored: %+v", sessions)
	}
	if _, ok := body["confirm_password"]; ok {
		t.Fatalf("confirm_password sent on the wire: %v", body)
	}
	if body["role"] != RoleParent || body["phone_number"] != "+254712345678" {
		t.Fatalf("unexpected payload %v", body)
	}
	if last, _ := rec.Last(); last.Next != flow.ScreenVerify {
		t.Fatalf("navigator: %+v", last)
	}
}

func TestRegister_ServerFieldErrorsVerbatim(t *testing.T) {
	f, _, _ := newFlow(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"Invalid data","errors":{"email":["user with this email already exists."],"password":["This password is too common.","This password is entirely numeric."]}}`))
	})

	o, err := f.Register(context.Background(), validRequest())
	var se *errs.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if got := se.Fields["password"]; len(got) != 2 || got[1] != "This password is entirely numeric." {
		t.Fatalf("password messages not verbatim: %v", got)
	}
	if se.Fields["email"][0] != "user with this email already exists." {
		t.Fatalf("email message: %v", se.Fields["email"])
	}
	if o.Next != flow.ScreenRegister || o.Message != "Invalid data" {
		t.Fatalf("unexpected outcome %+v", o)
	}
}

func TestRegister_WithoutSessionGoesToSignIn(t *testing.T) {
	f, _, rec, sessions := newFlowWithSessions(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"message":"User registered successfully"}`))
	})

	o, err := f.Register(context.Background(), validRequest())
	if err != nil || !o.OK() || o.Next != flow.ScreenLogin || o.Message != signInToVerify {
		t.Fatalf("unexpected result %+v %v", o, err)
	}
	if sessions.calls != 0 {
		t.Fatalf("nothing to adopt, got %d calls", sessions.calls)
	}
	if last, _ := rec.Last(); last.Next != flow.ScreenLogin {
		t.Fatalf("navigator: %+v", last)
	}
}

func TestRegister_SessionStoreFailureGoesToSignIn(t *testing.T) {
	f, _, _, sessions := newFlowWithSessions(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"tokens":{"access":"a1","refresh":"r1"}}`))
	})
	sessions.err = errs.ErrUpstream

	o, err := f.Register(context.Background(), validRequest())
	if err != nil || o.Next != flow.ScreenLogin {
		t.Fatalf("unexpected result %+v %v", o, err)
	}
}

func TestRegister_PhoneOptionalAndDashesStripped(t *testing.T) {
	var body map[string]any
	f, calls, _ := newFlow(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
	})

	in := validRequest()
	in.PhoneNumber = ""
	if _, err := f.Register(context.Background(), in); err != nil {
		t.Fatalf("phone should be optional: %v", err)
	}
	if _, ok := body["phone_number"]; ok {
		t.Fatalf("empty phone sent on the wire: %v", body)
	}

	in.PhoneNumber = "+254-712-345-678"
	if _, err := f.Register(context.Background(), in); err != nil {
		t.Fatalf("dashed phone rejected: %v", err)
	}
	if body["phone_number"] != "+254712345678" || *calls != 2 {
		t.Fatalf("unexpected payload %v after %d calls", body, *calls)
	}
}

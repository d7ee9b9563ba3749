package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/steva-school/parent-portal/pkg/errs"
)

func TestFailure_UsesUserMessage(t *testing.T) {
	o := Failure(ScreenForgotPassword, &errs.ServerError{Status: 500}, "Failed to send reset email")
	if o.OK() || o.Message != "Failed to send reset email" || o.Next != ScreenForgotPassword {
		t.Fatalf("unexpected outcome: %+v", o)
	}
	o = Failure(ScreenLogin, &errs.AuthError{Reason: "Invalid credentials"}, "login failed")
	if o.Message != "Invalid credentials" {
		t.Fatalf("expected server reason, got %q", o.Message)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	if _, ok := r.Last(); ok {
		t.Fatalf("expected empty recorder")
	}
	r.Navigate(context.Background(), Success(ScreenHome, ""))
	r.Navigate(context.Background(), Failure(ScreenLogin, errors.New("x"), "login failed"))

	if got := len(r.Outcomes()); got != 2 {
		t.Fatalf("expected 2 outcomes, got %d", got)
	}
	last, _ := r.Last()
	if last.Next != ScreenLogin || last.OK() {
		t.Fatalf("unexpected last: %+v", last)
	}
}

func TestOr(t *testing.T) {
	if Or(nil) != Discard {
		t.Fatalf("expected Discard for nil")
	}
	var r Recorder
	if Or(&r) != Navigator(&r) {
		t.Fatalf("expected passthrough")
	}
}

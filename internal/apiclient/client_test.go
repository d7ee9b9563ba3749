package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/steva-school/parent-portal/pkg/errs"
	"github.com/steva-school/parent-portal/pkg/httputil"
)

type staticTokens struct {
	tok string
	err error
}

func (s staticTokens) AccessToken(context.Context) (string, error) { return s.tok, s.err }

func newClient(t *testing.T, srv *httptest.Server, tokens TokenSource) Client {
	t.Helper()
	c, err := New(Options{BaseURL: srv.URL + "/", Timeout: time.Second, Tokens: tokens})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}

func TestDo_AuthenticatedSendsBearerAndRequestID(t *testing.T) {
	var gotAuth, gotRID, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRID = r.Header.Get(httputil.HeaderRequestID)
		gotCT = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{"name":"Jane"}`))
	}))
	defer srv.Close()

	c := newClient(t, srv, staticTokens{tok: "acc"})
	ctx := httputil.WithRequestID(context.Background(), "rid-1")

	var out struct {
		Name string `json:"name"`
	}
	if err := c.Do(ctx, Request{Method: http.MethodPatch, Path: "/api/v1/parents/7", Body: map[string]string{"name": "Jane"}, Auth: true}, &out); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if gotAuth != "Bearer acc" || gotRID != "rid-1" || gotCT != "application/json" {
		t.Fatalf("headers: auth=%q rid=%q ct=%q", gotAuth, gotRID, gotCT)
	}
	if out.Name != "Jane" {
		t.Fatalf("decode: %+v", out)
	}
}

func TestDo_AuthWithoutSessionMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := newClient(t, srv, staticTokens{err: errs.ErrUnauthenticated})
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/v1/parents/1", Auth: true}, nil)
	if !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected zero network calls")
	}
}

func TestDo_TokenOverride(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	c := newClient(t, srv, staticTokens{err: errs.ErrUnauthenticated})
	if err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/x", Auth: true, Token: "old"}, nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if gotAuth != "Bearer old" {
		t.Fatalf("expected override bearer, got %q", gotAuth)
	}
}

func TestDo_ServerErrorShapes(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		wantFields map[string]int
	}{
		{"detail", 401, `{"detail":"Invalid credentials"}`, "Invalid credentials", nil},
		{"errors map", 400, `{"message":"Registration failed","errors":{"email":["taken"],"password":["too short","too common"]}}`, "Registration failed", map[string]int{"email": 1, "password": 2}},
		{"top level drf", 400, `{"phone_number":["Enter a valid phone number."]}`, "", map[string]int{"phone_number": 1}},
		{"errors list", 400, `{"errors":["Invalid or expired token"]}`, "Invalid or expired token", map[string]int{"non_field_errors": 1}},
		{"not json", 502, `<html>bad gateway</html>`, "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			err := newClient(t, srv, nil).Do(context.Background(), Request{Method: http.MethodPost, Path: "/x"}, nil)
			var se *errs.ServerError
			if !errors.As(err, &se) {
				t.Fatalf("expected ServerError, got %v", err)
			}
			if se.Status != tc.status || se.Message != tc.wantMsg {
				t.Fatalf("got status=%d msg=%q", se.Status, se.Message)
			}
			if len(se.Fields) != len(tc.wantFields) {
				t.Fatalf("fields: %v", se.Fields)
			}
			for k, n := range tc.wantFields {
				if len(se.Fields[k]) != n {
					t.Fatalf("field %s: %v", k, se.Fields[k])
				}
			}
		})
	}
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := New(Options{BaseURL: url, Timeout: time.Second})
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"}, nil)
	if errs.KindOf(err) != errs.KindNetwork {
		t.Fatalf("expected network kind, got %v", err)
	}
}

func TestDo_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, _ := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/slow"}, nil)
	if !errors.Is(err, errs.ErrUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline network error, got %v", err)
	}
}

func TestDo_EncodesBody(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	_ = newClient(t, srv, nil).Do(context.Background(), Request{Method: http.MethodPost, Path: "/x", Body: map[string]string{"email": "a@b.co"}}, nil)
	if got["email"] != "a@b.co" {
		t.Fatalf("body not sent: %v", got)
	}
}

func TestIsStatus(t *testing.T) {
	if !IsStatus(&errs.ServerError{Status: 404}, http.StatusNotFound) {
		t.Fatalf("expected 404 match")
	}
	if IsStatus(errors.New("x"), http.StatusNotFound) {
		t.Fatalf("unexpected match")
	}
}

package profile

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

type fixedToken string

func (f fixedToken) AccessToken(context.Context) (string, error) { return string(f), nil }

type backend struct {
	calls   int32
	patches []map[string]any
	fail    bool
	profile Profile
}

func (b *backend) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.calls, 1)
		if r.URL.Path != "/api/v1/parents/12" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
			return
		}
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(b.profile)
		case http.MethodPatch:
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type %q", ct)
			}
			var m map[string]any
			_ = json.NewDecoder(r.Body).Decode(&m)
			b.patches = append(b.patches, m)
			if b.fail {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"phone_number":["Phone number must have at least 10 digits."]}`))
				return
			}
			_, _ = w.Write([]byte(`{}`))
		}
	}
}

func newService(t *testing.T, b *backend) *Service {
	t.Helper()
	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)
	api, err := apiclient.New(apiclient.Options{BaseURL: srv.URL, Timeout: time.Second, Tokens: fixedToken("acc")})
	if err != nil {
		t.Fatalf("api client: %v", err)
	}
	return NewService(api)
}

var jane = Profile{Name: "Jane Wanjiku", Email: "jane@school.ke", Phone: "+254700000001"}

func TestFetch(t *testing.T) {
	svc := newService(t, &backend{profile: jane})
	p, err := svc.Fetch(context.Background(), "12")
	if err != nil || p != jane {
		t.Fatalf("got %+v %v", p, err)
	}
	_, err = svc.Fetch(context.Background(), "99")
	if !errors.Is(err, errs.ErrNotFound) || errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdate_OnlyChangedFields(t *testing.T) {
	b := &backend{profile: jane}
	svc := newService(t, b)

	edited := jane
	edited.Phone = "+254711111111"
	ack, err := svc.Update(context.Background(), "12", Diff(jane, edited))
	if err != nil || !ack.Sent {
		t.Fatalf("got %+v %v", ack, err)
	}
	if len(b.patches) != 1 || len(b.patches[0]) != 1 || b.patches[0]["phone"] != "+254711111111" {
		t.Fatalf("unexpected patch body %v", b.patches)
	}
}

func TestUpdate_EmptyPatchNoNetwork(t *testing.T) {
	b := &backend{profile: jane}
	svc := newService(t, b)
	ack, err := svc.Update(context.Background(), "12", Patch{})
	if err != nil || ack.Sent || atomic.LoadInt32(&b.calls) != 0 {
		t.Fatalf("expected local ack, got %+v %v calls=%d", ack, err, b.calls)
	}
}

func TestUpdate_ValidationNoNetwork(t *testing.T) {
	b := &backend{}
	svc := newService(t, b)
	bad := "not-an-email"
	_, err := svc.Update(context.Background(), "12", Patch{Email: &bad})
	if errs.KindOf(err) != errs.KindValidation || atomic.LoadInt32(&b.calls) != 0 {
		t.Fatalf("expected validation error without network, got %v", err)
	}
}

func TestView_FetchThenNoopUpdate(t *testing.T) {
	b := &backend{profile: jane}
	rec := &flow.Recorder{}
	v := NewView(newService(t, b), rec, "12")
	if v.Snapshot().Status != StatusLoading {
		t.Fatalf("expected loading before fetch")
	}

	if o := v.Load(context.Background()); !o.OK() || v.Snapshot().Status != StatusLoaded {
		t.Fatalf("load: %+v", o)
	}
	o, err := v.Submit(context.Background(), jane)
	if err != nil || !o.OK() {
		t.Fatalf("noop submit: %+v %v", o, err)
	}
	snap := v.Snapshot()
	if snap.Profile != jane || atomic.LoadInt32(&b.calls) != 1 {
		t.Fatalf("displayed profile changed or extra call: %+v calls=%d", snap, b.calls)
	}
	if len(rec.Outcomes()) != 2 {
		t.Fatalf("expected two navigations")
	}
}

func TestView_FailedUpdateKeepsForm(t *testing.T) {
	b := &backend{profile: jane, fail: true}
	v := NewView(newService(t, b), nil, "12")
	v.Load(context.Background())

	edited := jane
	edited.Phone = "+254722222222"
	o, err := v.Submit(context.Background(), edited)
	if err == nil || o.Next != flow.ScreenProfileUpdate {
		t.Fatalf("expected failure, got %+v", o)
	}
	snap := v.Snapshot()
	if snap.Form != edited || snap.Profile != jane {
		t.Fatalf("form or displayed copy wrong: %+v", snap)
	}
	if errs.FieldsOf(err)["phone_number"] == nil {
		t.Fatalf("field errors lost: %v", err)
	}

	b.fail = false
	if _, err := v.Submit(context.Background(), snap.Form); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if v.Snapshot().Profile != edited {
		t.Fatalf("ack not applied to displayed copy")
	}
}

func TestView_LoadFailure(t *testing.T) {
	v := NewView(newService(t, &backend{}), nil, "404")
	o := v.Load(context.Background())
	snap := v.Snapshot()
	if o.OK() || snap.Status != StatusFailed || snap.Kind != errs.KindNotFound || snap.Message == "" {
		t.Fatalf("unexpected %+v %+v", o, snap)
	}
	if _, err := v.Submit(context.Background(), jane); errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("submit before load should fail locally, got %v", err)
	}
}

func TestDiffAndApply(t *testing.T) {
	if !Diff(jane, jane).Empty() {
		t.Fatalf("identical profiles should diff empty")
	}
	edited := Profile{Name: "Jane W.", Email: jane.Email, Phone: jane.Phone}
	p := Diff(jane, edited)
	if p.Name == nil || p.Email != nil || p.Phone != nil {
		t.Fatalf("unexpected patch %+v", p)
	}
	if p.Apply(jane) != edited {
		t.Fatalf("apply mismatch")
	}
}

func TestView_EditLoadsThenSendsPatch(t *testing.T) {
	b := &backend{profile: jane}
	rec := &flow.Recorder{}
	v := NewView(newService(t, b), rec, "12")

	phone := "+254733333333"
	o, err := v.Edit(context.Background(), Patch{Phone: &phone, Email: &jane.Email})
	if err != nil || o.Next != flow.ScreenProfile {
		t.Fatalf("edit: %+v %v", o, err)
	}
	if len(b.patches) != 1 || len(b.patches[0]) != 1 || b.patches[0]["phone"] != phone {
		t.Fatalf("only the changed field should be sent: %v", b.patches)
	}
	snap := v.Snapshot()
	if !snap.Saved || snap.Profile.Phone != phone {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(rec.Outcomes()) != 1 {
		t.Fatalf("expected a single navigation, got %d", len(rec.Outcomes()))
	}
}

func TestView_EditFailureKeepsForm(t *testing.T) {
	b := &backend{profile: jane, fail: true}
	v := NewView(newService(t, b), nil, "12")

	phone := "+254744444444"
	o, err := v.Edit(context.Background(), Patch{Phone: &phone})
	if err == nil || o.Next != flow.ScreenProfileUpdate {
		t.Fatalf("expected failure, got %+v", o)
	}
	snap := v.Snapshot()
	if snap.Saved || snap.Form.Phone != phone || snap.Profile != jane {
		t.Fatalf("form or displayed copy wrong: %+v", snap)
	}
}

func TestView_EditUnknownParent(t *testing.T) {
	b := &backend{}
	v := NewView(newService(t, b), nil, "404")
	name := "x"
	o, err := v.Edit(context.Background(), Patch{Name: &name})
	if errs.KindOf(err) != errs.KindNotFound || o.Next != flow.ScreenProfileUpdate {
		t.Fatalf("unexpected %+v %v", o, err)
	}
	if len(b.patches) != 0 {
		t.Fatalf("patch sent for unknown parent")
	}
}

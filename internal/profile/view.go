package profile

import (
	"context"
	"sync"

	"github.com/steva-school/parent-portal/internal/flow"
	"github.com/steva-school/parent-portal/pkg/errs"
)

type Status string

const (
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// Snapshot is what a profile screen renders.
type Snapshot struct {
	Status  Status    `json:"status"`
	Profile Profile   `json:"profile"`
	Form    Profile   `json:"form"`
	Saved   bool      `json:"saved"`
	Message string    `json:"message,omitempty"`
	Kind    errs.Kind `json:"kind,omitempty"`
}

// View holds one screen's read copy. It is discarded with the screen.
type View struct {
	mu       sync.Mutex
	svc      *Service
	nav      flow.Navigator
	parentID string

	status  Status
	profile Profile
	form    Profile
	saved   bool
	msg     string
	kind    errs.Kind
}

func NewView(svc *Service, nav flow.Navigator, parentID string) *View {
	return &View{svc: svc, nav: flow.Or(nav), parentID: parentID, status: StatusLoading}
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{Status: v.status, Profile: v.profile, Form: v.form, Saved: v.saved, Message: v.msg, Kind: v.kind}
}

func (v *View) Load(ctx context.Context) flow.Outcome {
	o := v.fetch(ctx, flow.ScreenProfile)
	v.nav.Navigate(ctx, o)
	return o
}

func (v *View) fetch(ctx context.Context, screen flow.Screen) flow.Outcome {
	v.mu.Lock()
	v.status = StatusLoading
	v.mu.Unlock()

	p, err := v.svc.Fetch(ctx, v.parentID)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		o := flow.Failure(screen, err, "Failed to load profile")
		v.status, v.msg, v.kind = StatusFailed, o.Message, errs.KindOf(err)
		return o
	}
	v.status, v.profile, v.form, v.msg, v.kind = StatusLoaded, p, p, "", ""
	return flow.Success(screen, "")
}

// Edit applies p to the displayed profile and submits the result. A view that
// has not been loaded fetches the profile first without navigating.
func (v *View) Edit(ctx context.Context, p Patch) (flow.Outcome, error) {
	v.mu.Lock()
	loaded := v.status == StatusLoaded
	v.mu.Unlock()

	if !loaded {
		if o := v.fetch(ctx, flow.ScreenProfileUpdate); !o.OK() {
			v.nav.Navigate(ctx, o)
			return o, o.Err
		}
	}

	v.mu.Lock()
	edited := p.Apply(v.profile)
	v.mu.Unlock()
	return v.Submit(ctx, edited)
}

// Submit sends the changed fields of edited. On failure the form keeps the
// edited values; on success they become the displayed profile.
func (v *View) Submit(ctx context.Context, edited Profile) (flow.Outcome, error) {
	v.mu.Lock()
	if v.status != StatusLoaded {
		v.mu.Unlock()
		err := &errs.ValidationError{Code: "profile_not_loaded"}
		return flow.Failure(flow.ScreenProfileUpdate, err, "Profile is not loaded yet"), err
	}
	v.form, v.saved = edited, false
	patch := Diff(v.profile, edited)
	v.mu.Unlock()

	ack, err := v.svc.Update(ctx, v.parentID, patch)

	v.mu.Lock()
	var o flow.Outcome
	if err != nil {
		o = flow.Failure(flow.ScreenProfileUpdate, err, "Failed to update profile. Please try again.")
		v.msg, v.kind = o.Message, errs.KindOf(err)
	} else {
		v.profile = patch.Apply(v.profile)
		v.form = v.profile
		o = flow.Success(flow.ScreenProfile, ack.Message)
		v.saved, v.msg, v.kind = ack.Sent, ack.Message, ""
	}
	v.mu.Unlock()

	v.nav.Navigate(ctx, o)
	return o, err
}

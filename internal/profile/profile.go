package profile

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/steva-school/parent-portal/internal/apiclient"
	"github.com/steva-school/parent-portal/pkg/errs"
	"github.com/steva-school/parent-portal/pkg/logger"
	"github.com/steva-school/parent-portal/pkg/validator"
)

const pathParents = "/api/v1/parents/"

type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Patch carries only the fields to change; nil means untouched.
type Patch struct {
	Name  *string `json:"name,omitempty" validate:"omitnil,min=1,max=150"`
	Email *string `json:"email,omitempty" validate:"omitnil,email"`
	Phone *string `json:"phone,omitempty" validate:"omitnil,phone"`
}

func (p Patch) Empty() bool { return p.Name == nil && p.Email == nil && p.Phone == nil }

func (p Patch) Apply(to Profile) Profile {
	if p.Name != nil {
		to.Name = *p.Name
	}
	if p.Email != nil {
		to.Email = *p.Email
	}
	if p.Phone != nil {
		to.Phone = *p.Phone
	}
	return to
}

// Diff returns a patch of the fields that differ between current and edited.
func Diff(current, edited Profile) Patch {
	var p Patch
	if edited.Name != current.Name {
		p.Name = &edited.Name
	}
	if edited.Email != current.Email {
		p.Email = &edited.Email
	}
	if edited.Phone != current.Phone {
		p.Phone = &edited.Phone
	}
	return p
}

// Ack confirms an update. Sent is false when there was nothing to send.
type Ack struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

type Service struct {
	api apiclient.Client
}

func NewService(api apiclient.Client) *Service {
	return &Service{api: api}
}

// Fetch reads the profile. A 404 satisfies errors.Is(err, errs.ErrNotFound).
func (s *Service) Fetch(ctx context.Context, parentID string) (Profile, error) {
	path, err := parentPath(parentID)
	if err != nil {
		return Profile{}, err
	}

	var out Profile
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: path, Auth: true}, &out); err != nil {
		logger.From(ctx).Warn("profile.fetch failed", slog.Any("err", err))
		return Profile{}, err
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, parentID string, p Patch) (Ack, error) {
	path, err := parentPath(parentID)
	if err != nil {
		return Ack{}, err
	}
	if p.Empty() {
		return Ack{Message: "No changes to save"}, nil
	}
	if fields, verr := validator.ValidateStruct(p); verr != nil {
		return Ack{}, &errs.ValidationError{Code: "invalid_fields", Fields: fields}
	}

	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodPatch, Path: path, Body: p, Auth: true}, nil); err != nil {
		logger.From(ctx).Warn("profile.update failed", slog.Any("err", err))
		return Ack{}, err
	}
	return Ack{Sent: true, Message: "Profile updated successfully"}, nil
}

func parentPath(parentID string) (string, error) {
	id := strings.TrimSpace(parentID)
	if id == "" || strings.Contains(id, "/") {
		return "", &errs.ValidationError{Code: "invalid_fields", Fields: map[string]string{"parentId": "field is required"}}
	}
	return pathParents + url.PathEscape(id), nil
}

package mycase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/mycase-client/pkg/client"
	"github.com/Sternrassler/mycase-client/pkg/logging"
	"github.com/Sternrassler/mycase-client/pkg/pagination"
	"github.com/rs/zerolog"
)

// ErrUnsupported is returned for an operation the resource does not offer.
var ErrUnsupported = errors.New("operation not supported for resource")

// Service exposes MyCase resources on top of a Requester and a pagination Driver.
type Service struct {
	requester pagination.Requester
	pager     *pagination.Driver
	logger    zerolog.Logger
}

// NewService creates a new service. pager must walk through the same requester.
func NewService(requester pagination.Requester, pager *pagination.Driver) *Service {
	return &Service{
		requester: requester,
		pager:     pager,
		logger:    logging.NewLogger(logging.ComponentService),
	}
}

// Firm returns the authenticated firm.
func (s *Service) Firm(ctx context.Context) (*FirmInfo, error) {
	var firm FirmInfo
	if err := s.getJSON(ctx, Firm.Path(), &firm); err != nil {
		return nil, err
	}
	return &firm, nil
}

// List walks every page of a collection.
func (s *Service) List(ctx context.Context, r Resource, opts ListOptions) (*pagination.Result, error) {
	if !r.Listable() {
		return nil, fmt.Errorf("list %s: %w", r, ErrUnsupported)
	}
	return s.pager.Walk(ctx, r.Path(), opts.Params())
}

// Get fetches one record as raw JSON.
func (s *Service) Get(ctx context.Context, r Resource, id int64) (json.RawMessage, error) {
	if !r.Gettable() || r == Firm {
		return nil, fmt.Errorf("get %s: %w", r, ErrUnsupported)
	}
	return s.raw(ctx, &client.Request{Path: r.ItemPath(id)})
}

// Create posts a new record and returns the server's representation.
func (s *Service) Create(ctx context.Context, r Resource, body any) (json.RawMessage, error) {
	if !r.Creatable() {
		return nil, fmt.Errorf("create %s: %w", r, ErrUnsupported)
	}
	s.logger.Info().Str("resource", string(r)).Msg("Creating record")
	return s.raw(ctx, &client.Request{Method: http.MethodPost, Path: r.Path(), Body: body})
}

// Update patches a record and returns the server's representation.
func (s *Service) Update(ctx context.Context, r Resource, id int64, body any) (json.RawMessage, error) {
	if !r.Updatable() {
		return nil, fmt.Errorf("update %s: %w", r, ErrUnsupported)
	}
	s.logger.Info().Str("resource", string(r)).Int64("id", id).Msg("Updating record")
	return s.raw(ctx, &client.Request{Method: http.MethodPatch, Path: r.ItemPath(id), Body: body})
}

// Cases walks the cases collection and decodes each record.
func (s *Service) Cases(ctx context.Context, opts ListOptions) ([]Case, error) {
	return pagination.All[Case](ctx, s.pager, Cases.Path(), opts.Params())
}

// Staff returns all staff members, optionally only active ones.
func (s *Service) Staff(ctx context.Context, activeOnly bool) ([]StaffMember, error) {
	staff, err := pagination.All[StaffMember](ctx, s.pager, Staff.Path(), nil)
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return staff, nil
	}

	active := staff[:0]
	for _, m := range staff {
		if m.Active {
			active = append(active, m)
		}
	}
	return active, nil
}

// ContactCases walks the cases of one contact.
func (s *Service) ContactCases(ctx context.Context, contactID int64) (*pagination.Result, error) {
	return s.pager.Walk(ctx, fmt.Sprintf("%s/cases", Contacts.ItemPath(contactID)), nil)
}

// CaseDocuments walks the documents attached to a case.
func (s *Service) CaseDocuments(ctx context.Context, caseID int64) (*pagination.Result, error) {
	return s.pager.Walk(ctx, fmt.Sprintf("%s/documents", Cases.ItemPath(caseID)), nil)
}

func (s *Service) raw(ctx context.Context, req *client.Request) (json.RawMessage, error) {
	resp, err := s.requester.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) getJSON(ctx context.Context, path string, out any) error {
	resp, err := s.requester.Do(ctx, &client.Request{Path: path})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

package service

import (
	"context"

	"mailroute/internal/domain"
	"mailroute/internal/store"
)

type TemplateRequest struct {
	Name     string `json:"name"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Grouping string `json:"grouping,omitempty"`
}

func (s *Service) CreateTemplate(ctx context.Context, req TemplateRequest) (domain.Template, error) {
	if req.Name == "" || req.Subject == "" || req.Body == "" {
		return domain.Template{}, domain.ErrMissingFields
	}
	now := s.now()
	in := store.TemplateUpsert{
		ID:       s.id("tpl"),
		Name:     req.Name,
		Subject:  req.Subject,
		Body:     req.Body,
		Grouping: req.Grouping,
		Now:      now,
	}
	if err := s.Store.InsertTemplate(ctx, in); err != nil {
		return domain.Template{}, err
	}
	return domain.Template{
		ID: in.ID, Name: in.Name, Subject: in.Subject, Body: in.Body,
		Version: 1, Grouping: in.Grouping, CreatedAt: now, UpdatedAt: now,
	}, nil
}

// UpdateTemplate replaces the stored content and bumps the version counter.
// Messages already queued against this ID pick up the new content when they
// are dispatched, not when they were enqueued.
func (s *Service) UpdateTemplate(ctx context.Context, id string, req TemplateRequest) (domain.Template, error) {
	if req.Name == "" || req.Subject == "" || req.Body == "" {
		return domain.Template{}, domain.ErrMissingFields
	}
	in := store.TemplateUpsert{
		ID:       id,
		Name:     req.Name,
		Subject:  req.Subject,
		Body:     req.Body,
		Grouping: req.Grouping,
		Now:      s.now(),
	}
	ok, err := s.Store.UpdateTemplate(ctx, in)
	if err != nil {
		return domain.Template{}, err
	}
	if !ok {
		return domain.Template{}, domain.ErrNotFound
	}
	return s.Store.GetTemplate(ctx, id)
}

func (s *Service) GetTemplate(ctx context.Context, id string) (domain.Template, error) {
	return s.Store.GetTemplate(ctx, id)
}

func (s *Service) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	return s.Store.ListTemplates(ctx)
}

func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	return s.Store.DeleteTemplate(ctx, id)
}

package service

import (
	"context"

	"mailroute/internal/domain"
	"mailroute/internal/store"
	"mailroute/internal/util"
)

// Enqueue accepts a message into the durable queue. Routing is not resolved
// here: a message for a category with no rule is still accepted and fails at
// dispatch time, so configuration gaps surface in the queue instead of at the
// call site.
func (s *Service) Enqueue(ctx context.Context, req domain.EnqueueRequest) (domain.EnqueueResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.EnqueueResponse{}, err
	}
	in := store.MessageInsert{
		ID:         s.id("msg"),
		Recipient:  util.NormalizeEmail(req.Recipient),
		Category:   req.Category,
		TemplateID: req.TemplateID,
		Subject:    req.Subject,
		Body:       req.Body,
		Vars:       req.Vars,
		Now:        s.now(),
	}
	if err := s.Store.InsertMessage(ctx, in); err != nil {
		return domain.EnqueueResponse{}, err
	}
	return domain.EnqueueResponse{MessageID: in.ID, Status: string(domain.StatusPending)}, nil
}

func (s *Service) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	m, found, err := s.Store.GetMessage(ctx, id)
	if err != nil {
		return domain.Message{}, err
	}
	if !found {
		return domain.Message{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *Service) ListMessagesByStatus(ctx context.Context, status domain.MessageStatus, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Store.ListMessagesByStatus(ctx, status, limit)
}

// Resend moves a failed message back to pending so the next dispatch run
// picks it up. Only failed messages qualify; anything else is a conflict.
func (s *Service) Resend(ctx context.Context, id string) error {
	return s.Store.ResendMessage(ctx, id, s.now())
}

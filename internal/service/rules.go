package service

import (
	"context"
	"fmt"

	"mailroute/internal/domain"
	"mailroute/internal/store"
)

type CreateRuleRequest struct {
	Label              string            `json:"label"`
	Category           domain.Category   `json:"category"`
	PrimaryProviderID  string            `json:"primaryProviderId"`
	PrimaryAddressID   string            `json:"primaryAddressId"`
	FailoverProviderID string            `json:"failoverProviderId,omitempty"`
	FailoverAddressID  string            `json:"failoverAddressId,omitempty"`
	IsDefault          bool              `json:"isDefault"`
	Priority           int               `json:"priority"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// CreateRule validates every routing invariant before anything is written:
// category from the closed set, positive priority, primary address owned by
// the primary provider, failover pair all-or-nothing and likewise owned.
func (s *Service) CreateRule(ctx context.Context, req CreateRuleRequest) (domain.RoutingRule, error) {
	if req.Label == "" || req.PrimaryProviderID == "" || req.PrimaryAddressID == "" {
		return domain.RoutingRule{}, domain.ErrMissingFields
	}
	if !domain.ValidCategory(req.Category) {
		return domain.RoutingRule{}, domain.ErrBadCategory
	}
	if req.Priority < 1 {
		return domain.RoutingRule{}, fmt.Errorf("%w: priority must be a positive integer", domain.ErrConflict)
	}
	if (req.FailoverProviderID == "") != (req.FailoverAddressID == "") {
		return domain.RoutingRule{}, fmt.Errorf("%w: failover provider and address must be set together", domain.ErrConflict)
	}

	if err := s.checkPair(ctx, req.PrimaryProviderID, req.PrimaryAddressID); err != nil {
		return domain.RoutingRule{}, err
	}
	if req.FailoverProviderID != "" {
		if err := s.checkPair(ctx, req.FailoverProviderID, req.FailoverAddressID); err != nil {
			return domain.RoutingRule{}, err
		}
	}

	now := s.now()
	in := store.RuleInsert{
		ID:                 s.id("rul"),
		Label:              req.Label,
		Category:           req.Category,
		PrimaryProviderID:  req.PrimaryProviderID,
		PrimaryAddressID:   req.PrimaryAddressID,
		FailoverProviderID: req.FailoverProviderID,
		FailoverAddressID:  req.FailoverAddressID,
		IsDefault:          req.IsDefault,
		Priority:           req.Priority,
		Metadata:           req.Metadata,
		Now:                now,
	}
	if err := s.Store.InsertRule(ctx, in); err != nil {
		return domain.RoutingRule{}, err
	}
	return domain.RoutingRule{
		ID: in.ID, Label: in.Label, Category: in.Category,
		PrimaryProviderID: in.PrimaryProviderID, PrimaryAddressID: in.PrimaryAddressID,
		FailoverProviderID: in.FailoverProviderID, FailoverAddressID: in.FailoverAddressID,
		IsDefault: in.IsDefault, Active: true, Priority: in.Priority,
		Metadata: in.Metadata, CreatedAt: now, UpdatedAt: now,
	}, nil
}

func (s *Service) checkPair(ctx context.Context, providerID, addressID string) error {
	p, found, err := s.Store.GetProvider(ctx, providerID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: provider %s", domain.ErrNotFound, providerID)
	}
	a, found, err := s.Store.GetAddress(ctx, addressID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: address %s", domain.ErrNotFound, addressID)
	}
	if a.ProviderID != p.ID {
		return fmt.Errorf("%w: address %s does not belong to provider %s", domain.ErrConflict, addressID, providerID)
	}
	return nil
}

func (s *Service) ListRules(ctx context.Context) ([]domain.RoutingRule, error) {
	return s.Store.ListRules(ctx)
}

func (s *Service) DeleteRule(ctx context.Context, id string) error {
	return s.Store.DeleteRule(ctx, id)
}

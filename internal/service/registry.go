package service

import (
	"context"

	"mailroute/internal/domain"
	"mailroute/internal/store"
	"mailroute/internal/util"
)

type CreateProviderRequest struct {
	Name     string              `json:"name"`
	Kind     domain.ProviderKind `json:"kind"`
	Position int                 `json:"position"`
	Settings map[string]string   `json:"settings,omitempty"`
}

func (s *Service) CreateProvider(ctx context.Context, req CreateProviderRequest) (domain.Provider, error) {
	if req.Name == "" {
		return domain.Provider{}, domain.ErrMissingFields
	}
	if !domain.ValidProviderKind(req.Kind) {
		return domain.Provider{}, domain.ErrConflict
	}

	now := s.now()
	in := store.ProviderInsert{
		ID:       s.id("prv"),
		Name:     req.Name,
		Kind:     req.Kind,
		Active:   true,
		Position: req.Position,
		Settings: req.Settings,
		Now:      now,
	}
	if err := s.Store.InsertProvider(ctx, in); err != nil {
		return domain.Provider{}, err
	}
	return domain.Provider{
		ID: in.ID, Name: in.Name, Kind: in.Kind, Active: true,
		Position: in.Position, Settings: in.Settings, CreatedAt: now, UpdatedAt: now,
	}, nil
}

func (s *Service) ListProviders(ctx context.Context) ([]domain.Provider, error) {
	return s.Store.ListProviders(ctx)
}

func (s *Service) ListActiveProviders(ctx context.Context) ([]domain.Provider, error) {
	return s.Store.ListActiveProviders(ctx)
}

func (s *Service) GetPrimaryProvider(ctx context.Context) (domain.Provider, bool, error) {
	return s.Store.GetPrimaryProvider(ctx)
}

func (s *Service) SetProviderActive(ctx context.Context, id string, active bool) error {
	ok, err := s.Store.SetProviderActive(ctx, id, active, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

// SetPrimaryProvider flips the primary flag atomically. Setting primary on an
// unknown or inactive provider is a configuration conflict; nothing changes.
func (s *Service) SetPrimaryProvider(ctx context.Context, id string) error {
	ok, err := s.Store.SetPrimaryProvider(ctx, id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrConflict
	}
	return nil
}

func (s *Service) UpdateProviderSettings(ctx context.Context, id string, settings map[string]string) error {
	ok, err := s.Store.UpdateProviderSettings(ctx, id, settings, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

type CreateAddressRequest struct {
	ProviderID  string `json:"providerId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	ReplyTo     string `json:"replyTo,omitempty"`
	IsDefault   bool   `json:"isDefault"`
}

func (s *Service) CreateAddress(ctx context.Context, req CreateAddressRequest) (domain.Address, error) {
	if req.ProviderID == "" || req.Email == "" {
		return domain.Address{}, domain.ErrMissingFields
	}

	now := s.now()
	in := store.AddressInsert{
		ID:          s.id("adr"),
		ProviderID:  req.ProviderID,
		Email:       util.NormalizeEmail(req.Email),
		DisplayName: req.DisplayName,
		ReplyTo:     req.ReplyTo,
		IsDefault:   req.IsDefault,
		Now:         now,
	}
	if err := s.Store.InsertAddress(ctx, in); err != nil {
		return domain.Address{}, err
	}
	return domain.Address{
		ID: in.ID, ProviderID: in.ProviderID, Email: in.Email,
		DisplayName: in.DisplayName, ReplyTo: in.ReplyTo, Active: true,
		IsDefault: in.IsDefault, CreatedAt: now, UpdatedAt: now,
	}, nil
}

func (s *Service) ListAddressesForProvider(ctx context.Context, providerID string) ([]domain.Address, error) {
	return s.Store.ListAddressesForProvider(ctx, providerID)
}

// DeleteAddress surfaces domain.ErrConflict when a routing rule still
// references the address; the rule is never silently broken.
func (s *Service) DeleteAddress(ctx context.Context, id string) error {
	return s.Store.DeleteAddress(ctx, id)
}

func (s *Service) SetAddressActive(ctx context.Context, id string, active bool) error {
	ok, err := s.Store.SetAddressActive(ctx, id, active, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

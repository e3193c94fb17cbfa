// Package service is the administrative boundary: every configuration
// invariant is checked here (or atomically in the store) and violations are
// rejected synchronously, never partially applied.
package service

import (
	"context"
	"time"

	"mailroute/internal/domain"
	"mailroute/internal/store"
)

type Store interface {
	InsertProvider(ctx context.Context, in store.ProviderInsert) error
	ListProviders(ctx context.Context) ([]domain.Provider, error)
	ListActiveProviders(ctx context.Context) ([]domain.Provider, error)
	GetProvider(ctx context.Context, id string) (domain.Provider, bool, error)
	GetPrimaryProvider(ctx context.Context) (domain.Provider, bool, error)
	SetProviderActive(ctx context.Context, id string, active bool, now time.Time) (bool, error)
	SetPrimaryProvider(ctx context.Context, id string, now time.Time) (bool, error)
	UpdateProviderSettings(ctx context.Context, id string, settings map[string]string, now time.Time) (bool, error)

	InsertAddress(ctx context.Context, in store.AddressInsert) error
	ListAddressesForProvider(ctx context.Context, providerID string) ([]domain.Address, error)
	GetAddress(ctx context.Context, id string) (domain.Address, bool, error)
	DeleteAddress(ctx context.Context, id string) error
	SetAddressActive(ctx context.Context, id string, active bool, now time.Time) (bool, error)

	InsertRule(ctx context.Context, in store.RuleInsert) error
	ListRules(ctx context.Context) ([]domain.RoutingRule, error)
	GetRule(ctx context.Context, id string) (domain.RoutingRule, bool, error)
	DeleteRule(ctx context.Context, id string) error

	InsertTemplate(ctx context.Context, in store.TemplateUpsert) error
	UpdateTemplate(ctx context.Context, in store.TemplateUpsert) (bool, error)
	GetTemplate(ctx context.Context, id string) (domain.Template, error)
	ListTemplates(ctx context.Context) ([]domain.Template, error)
	DeleteTemplate(ctx context.Context, id string) error

	InsertMessage(ctx context.Context, in store.MessageInsert) error
	GetMessage(ctx context.Context, id string) (domain.Message, bool, error)
	ListMessagesByStatus(ctx context.Context, status domain.MessageStatus, limit int) ([]domain.Message, error)
	ResendMessage(ctx context.Context, id string, now time.Time) error

	GetSchedulerConfig(ctx context.Context) (domain.SchedulerConfig, error)
	SetSchedulerConfig(ctx context.Context, in store.SchedulerUpdate) error
}

type Service struct {
	Store Store
	IDGen func(prefix string) string
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) id(prefix string) string {
	return s.IDGen(prefix)
}

// Package routing picks the (provider, address) pair a message travels
// through, based on the active routing rules for its category.
package routing

import (
	"fmt"

	"mailroute/internal/domain"
)

// Endpoint is a fully resolved sending identity.
type Endpoint struct {
	Provider domain.Provider
	Address  domain.Address
}

// Route is the outcome of resolving one category.
type Route struct {
	Rule     domain.RoutingRule
	Primary  Endpoint
	Failover *Endpoint
}

// Snapshot is a read-only view of the routing configuration, loaded once per
// batch. It is never reused across batches so administrator edits take
// effect on the next run.
type Snapshot struct {
	rules     []domain.RoutingRule
	providers map[string]domain.Provider
	addresses map[string]domain.Address
}

// NewSnapshot expects rules ordered by (priority, id) ascending, which is
// how the store lists them. With that ordering the first match for a
// category is the winning rule, and equal priorities tie-break on the
// smaller (older) rule ID.
func NewSnapshot(rules []domain.RoutingRule, providers []domain.Provider, addresses []domain.Address) *Snapshot {
	s := &Snapshot{
		rules:     rules,
		providers: make(map[string]domain.Provider, len(providers)),
		addresses: make(map[string]domain.Address, len(addresses)),
	}
	for _, p := range providers {
		s.providers[p.ID] = p
	}
	for _, a := range addresses {
		s.addresses[a.ID] = a
	}
	return s
}

// Resolve finds the routing rule for a category: the lowest-priority active
// rule matching the category, else the lowest-priority active default rule,
// else domain.ErrNoRoute. A winning rule whose primary pair cannot be
// resolved is a configuration error, reported as such rather than silently
// falling through to another rule. A broken failover pair only disables
// failover for this route.
func (s *Snapshot) Resolve(category domain.Category) (Route, error) {
	rule, ok := s.match(category)
	if !ok {
		return Route{}, domain.ErrNoRoute
	}

	primary, err := s.endpoint(rule.PrimaryProviderID, rule.PrimaryAddressID)
	if err != nil {
		return Route{}, fmt.Errorf("rule %s primary: %w", rule.ID, err)
	}

	route := Route{Rule: rule, Primary: primary}
	if rule.FailoverProviderID != "" && rule.FailoverAddressID != "" {
		fo, err := s.endpoint(rule.FailoverProviderID, rule.FailoverAddressID)
		if err == nil {
			route.Failover = &fo
		}
	}
	return route, nil
}

func (s *Snapshot) match(category domain.Category) (domain.RoutingRule, bool) {
	for _, r := range s.rules {
		if r.Active && r.Category == category {
			return r, true
		}
	}
	for _, r := range s.rules {
		if r.Active && r.IsDefault {
			return r, true
		}
	}
	return domain.RoutingRule{}, false
}

func (s *Snapshot) endpoint(providerID, addressID string) (Endpoint, error) {
	p, ok := s.providers[providerID]
	if !ok {
		return Endpoint{}, fmt.Errorf("provider %s not found", providerID)
	}
	if !p.Active {
		return Endpoint{}, fmt.Errorf("provider %s inactive", providerID)
	}
	a, ok := s.addresses[addressID]
	if !ok {
		return Endpoint{}, fmt.Errorf("address %s not found", addressID)
	}
	if !a.Active {
		return Endpoint{}, fmt.Errorf("address %s inactive", addressID)
	}
	if a.ProviderID != p.ID {
		return Endpoint{}, fmt.Errorf("address %s does not belong to provider %s", addressID, providerID)
	}
	return Endpoint{Provider: p, Address: a}, nil
}

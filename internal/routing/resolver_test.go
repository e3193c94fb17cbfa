package routing

import (
	"errors"
	"testing"

	"mailroute/internal/domain"
)

func provider(id string, active bool) domain.Provider {
	return domain.Provider{ID: id, Name: id, Kind: domain.KindHTTP, Active: active}
}

func address(id, providerID string) domain.Address {
	return domain.Address{ID: id, ProviderID: providerID, Email: id + "@example.com", Active: true}
}

func TestResolvePicksLowestPriority(t *testing.T) {
	rules := []domain.RoutingRule{
		{ID: "rul_1", Category: domain.CategoryWelcome, Priority: 1, Active: true,
			PrimaryProviderID: "prv_a", PrimaryAddressID: "adr_a"},
		{ID: "rul_2", Category: domain.CategoryWelcome, Priority: 5, Active: true,
			PrimaryProviderID: "prv_b", PrimaryAddressID: "adr_b"},
	}
	snap := NewSnapshot(rules,
		[]domain.Provider{provider("prv_a", true), provider("prv_b", true)},
		[]domain.Address{address("adr_a", "prv_a"), address("adr_b", "prv_b")},
	)

	route, err := snap.Resolve(domain.CategoryWelcome)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if route.Rule.ID != "rul_1" {
		t.Fatalf("expected rul_1, got %s", route.Rule.ID)
	}
	if route.Primary.Provider.ID != "prv_a" || route.Primary.Address.ID != "adr_a" {
		t.Fatalf("unexpected primary endpoint: %+v", route.Primary)
	}
}

func TestResolveEqualPrioritySmallestIDWins(t *testing.T) {
	// Store ordering is (priority, id); the snapshot takes the first match.
	rules := []domain.RoutingRule{
		{ID: "rul_01", Category: domain.CategoryBilling, Priority: 2, Active: true,
			PrimaryProviderID: "prv_a", PrimaryAddressID: "adr_a"},
		{ID: "rul_02", Category: domain.CategoryBilling, Priority: 2, Active: true,
			PrimaryProviderID: "prv_b", PrimaryAddressID: "adr_b"},
	}
	snap := NewSnapshot(rules,
		[]domain.Provider{provider("prv_a", true), provider("prv_b", true)},
		[]domain.Address{address("adr_a", "prv_a"), address("adr_b", "prv_b")},
	)

	route, err := snap.Resolve(domain.CategoryBilling)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if route.Rule.ID != "rul_01" {
		t.Fatalf("expected deterministic winner rul_01, got %s", route.Rule.ID)
	}
}

func TestResolveSkipsInactiveRules(t *testing.T) {
	rules := []domain.RoutingRule{
		{ID: "rul_1", Category: domain.CategoryEvent, Priority: 1, Active: false,
			PrimaryProviderID: "prv_a", PrimaryAddressID: "adr_a"},
		{ID: "rul_2", Category: domain.CategoryEvent, Priority: 9, Active: true,
			PrimaryProviderID: "prv_b", PrimaryAddressID: "adr_b"},
	}
	snap := NewSnapshot(rules,
		[]domain.Provider{provider("prv_a", true), provider("prv_b", true)},
		[]domain.Address{address("adr_a", "prv_a"), address("adr_b", "prv_b")},
	)

	route, err := snap.Resolve(domain.CategoryEvent)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if route.Rule.ID != "rul_2" {
		t.Fatalf("expected rul_2, got %s", route.Rule.ID)
	}
}

func TestResolveFallsBackToDefaultRule(t *testing.T) {
	rules := []domain.RoutingRule{
		{ID: "rul_1", Category: domain.CategoryWelcome, Priority: 1, Active: true,
			PrimaryProviderID: "prv_a", PrimaryAddressID: "adr_a"},
		{ID: "rul_9", Category: domain.CategoryNotification, Priority: 99, Active: true, IsDefault: true,
			PrimaryProviderID: "prv_b", PrimaryAddressID: "adr_b"},
	}
	snap := NewSnapshot(rules,
		[]domain.Provider{provider("prv_a", true), provider("prv_b", true)},
		[]domain.Address{address("adr_a", "prv_a"), address("adr_b", "prv_b")},
	)

	route, err := snap.Resolve(domain.CategoryBilling)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if route.Rule.ID != "rul_9" {
		t.Fatalf("expected default rule, got %s", route.Rule.ID)
	}
}

func TestResolveNoRoute(t *testing.T) {
	snap := NewSnapshot(nil, nil, nil)
	_, err := snap.Resolve(domain.CategoryBilling)
	if !errors.Is(err, domain.ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestResolveInactiveProviderIsConfigError(t *testing.T) {
	rules := []domain.RoutingRule{
		{ID: "rul_1", Category: domain.CategoryWelcome, Priority: 1, Active: true,
			PrimaryProviderID: "prv_a", PrimaryAddressID: "adr_a"},
	}
	snap := NewSnapshot(rules,
		[]domain.Provider{provider("prv_a", false)},
		[]domain.Address{address("adr_a", "prv_a")},
	)

	_, err := snap.Resolve(domain.CategoryWelcome)
	if err == nil {
		t.Fatal("expected error for inactive primary provider")
	}
	if errors.Is(err, domain.ErrNoRoute) {
		t.Fatalf("config error must not be reported as no-route: %v", err)
	}
}

func TestResolveBrokenFailoverDisablesFailoverOnly(t *testing.T) {
	rules := []domain.RoutingRule{
		{ID: "rul_1", Category: domain.CategoryWelcome, Priority: 1, Active: true,
			PrimaryProviderID: "prv_a", PrimaryAddressID: "adr_a",
			FailoverProviderID: "prv_gone", FailoverAddressID: "adr_gone"},
	}
	snap := NewSnapshot(rules,
		[]domain.Provider{provider("prv_a", true)},
		[]domain.Address{address("adr_a", "prv_a")},
	)

	route, err := snap.Resolve(domain.CategoryWelcome)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if route.Failover != nil {
		t.Fatal("expected failover to be dropped when its pair cannot resolve")
	}
}

func TestResolveAddressProviderMismatch(t *testing.T) {
	rules := []domain.RoutingRule{
		{ID: "rul_1", Category: domain.CategoryWelcome, Priority: 1, Active: true,
			PrimaryProviderID: "prv_a", PrimaryAddressID: "adr_b"},
	}
	snap := NewSnapshot(rules,
		[]domain.Provider{provider("prv_a", true), provider("prv_b", true)},
		[]domain.Address{address("adr_b", "prv_b")},
	)

	_, err := snap.Resolve(domain.CategoryWelcome)
	if err == nil {
		t.Fatal("expected error for address/provider mismatch")
	}
}

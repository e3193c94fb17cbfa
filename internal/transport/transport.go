// Package transport sends rendered mail through a provider's external
// service. Each implementation validates the free-form provider settings it
// consumes; the core data model does not enumerate per-vendor fields.
package transport

import (
	"context"
	"fmt"

	"mailroute/internal/domain"
)

// Request is the transport-agnostic envelope: who the mail is from, where it
// goes, and the rendered content.
type Request struct {
	FromEmail string
	FromName  string
	ReplyTo   string
	To        string
	Subject   string
	Body      string
}

// Transport performs a single delivery attempt. A call is bounded by the
// context deadline; any error or timeout counts as a failed attempt.
type Transport interface {
	Send(ctx context.Context, req Request) error
	Kind() domain.ProviderKind
}

// New builds the transport for a provider from its kind and settings.
func New(p domain.Provider) (Transport, error) {
	switch p.Kind {
	case domain.KindSMTP:
		return newSMTP(p.Settings)
	case domain.KindResend:
		return newResend(p.Settings)
	case domain.KindHTTP:
		return newHTTPVendor(p.Settings)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", p.Kind)
	}
}

func requireSetting(settings map[string]string, key string) (string, error) {
	v := settings[key]
	if v == "" {
		return "", fmt.Errorf("missing required setting %q", key)
	}
	return v, nil
}

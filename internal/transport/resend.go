package transport

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"mailroute/internal/domain"
)

// resendTransport delivers through the Resend API. Settings: api_key
// (required).
type resendTransport struct {
	client *resend.Client
}

func newResend(settings map[string]string) (Transport, error) {
	apiKey, err := requireSetting(settings, "api_key")
	if err != nil {
		return nil, err
	}
	return &resendTransport{client: resend.NewClient(apiKey)}, nil
}

func (t *resendTransport) Kind() domain.ProviderKind { return domain.KindResend }

func (t *resendTransport) Send(ctx context.Context, req Request) error {
	from := req.FromEmail
	if req.FromName != "" {
		from = fmt.Sprintf("%s <%s>", req.FromName, req.FromEmail)
	}

	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{req.To},
		Subject: req.Subject,
		Text:    req.Body,
	}
	if req.ReplyTo != "" {
		params.ReplyTo = req.ReplyTo
	}

	if _, err := t.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	return nil
}

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mailroute/internal/domain"
)

// httpVendor posts to a generic JSON mail API. Settings: base_url
// (required), api_key (bearer token) or username/password (basic auth).
type httpVendor struct {
	baseURL  string
	apiKey   string
	username string
	password string
	client   *http.Client
}

type vendorPayload struct {
	From     string `json:"from"`
	FromName string `json:"from_name,omitempty"`
	ReplyTo  string `json:"reply_to,omitempty"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

type vendorResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func newHTTPVendor(settings map[string]string) (Transport, error) {
	baseURL, err := requireSetting(settings, "base_url")
	if err != nil {
		return nil, err
	}
	t := &httpVendor{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   settings["api_key"],
		username: settings["username"],
		password: settings["password"],
		client:   &http.Client{},
	}
	if t.apiKey == "" && t.username == "" {
		return nil, errors.New("http vendor needs api_key or username/password")
	}
	return t, nil
}

func (t *httpVendor) Kind() domain.ProviderKind { return domain.KindHTTP }

func (t *httpVendor) Send(ctx context.Context, req Request) error {
	payload := vendorPayload{
		From:     req.FromEmail,
		FromName: req.FromName,
		ReplyTo:  req.ReplyTo,
		To:       req.To,
		Subject:  req.Subject,
		Body:     req.Body,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	} else {
		httpReq.SetBasicAuth(t.username, t.password)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http vendor send: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var out vendorResponse
		_ = json.Unmarshal(b, &out)
		if out.Message != "" {
			return fmt.Errorf("http vendor send: status %d: %s", resp.StatusCode, out.Message)
		}
		return fmt.Errorf("http vendor send: status %d", resp.StatusCode)
	}
	return nil
}

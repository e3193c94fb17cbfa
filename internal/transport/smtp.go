package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"mailroute/internal/domain"
)

// smtpTransport speaks SMTP directly. Settings: host (required), port
// (default 587), username/password (optional, PLAIN auth), starttls
// ("true"/"false", default true when credentials are set).
type smtpTransport struct {
	host     string
	port     int
	username string
	password string
	starttls bool
}

func newSMTP(settings map[string]string) (Transport, error) {
	host, err := requireSetting(settings, "host")
	if err != nil {
		return nil, err
	}

	port := 587
	if v := settings["port"]; v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 {
			return nil, fmt.Errorf("invalid smtp port %q", v)
		}
		port = p
	}

	t := &smtpTransport{
		host:     host,
		port:     port,
		username: settings["username"],
		password: settings["password"],
		starttls: settings["starttls"] != "false",
	}
	return t, nil
}

func (t *smtpTransport) Kind() domain.ProviderKind { return domain.KindSMTP }

func (t *smtpTransport) Send(ctx context.Context, req Request) error {
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, t.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Quit()

	if t.starttls {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: t.host}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	if t.username != "" && t.password != "" {
		auth := smtp.PlainAuth("", t.username, t.password, t.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(req.FromEmail); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(req.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(buildRFC822(req))); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return nil
}

func buildRFC822(req Request) string {
	var b strings.Builder
	from := req.FromEmail
	if req.FromName != "" {
		from = fmt.Sprintf("%s <%s>", req.FromName, req.FromEmail)
	}
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", req.To)
	if req.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", req.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", req.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(req.Body)
	b.WriteString("\r\n")
	return b.String()
}

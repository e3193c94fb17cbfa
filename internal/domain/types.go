package domain

import "time"

type MessageStatus string

const (
	StatusPending    MessageStatus = "pending"
	StatusAttempting MessageStatus = "attempting"
	StatusSent       MessageStatus = "sent"
	StatusFailed     MessageStatus = "failed"
)

func ValidMessageStatus(s MessageStatus) bool {
	switch s {
	case StatusPending, StatusAttempting, StatusSent, StatusFailed:
		return true
	}
	return false
}

// Category is the closed set of message categories routing rules key on.
type Category string

const (
	CategoryWelcome      Category = "welcome"
	CategoryAccount      Category = "account"
	CategoryBilling      Category = "billing"
	CategorySupport      Category = "support"
	CategoryNotification Category = "notification"
	CategoryNewsletter   Category = "newsletter"
	CategoryEvent        Category = "event"
	CategoryCompetition  Category = "competition"
)

var categories = map[Category]bool{
	CategoryWelcome:      true,
	CategoryAccount:      true,
	CategoryBilling:      true,
	CategorySupport:      true,
	CategoryNotification: true,
	CategoryNewsletter:   true,
	CategoryEvent:        true,
	CategoryCompetition:  true,
}

func ValidCategory(c Category) bool { return categories[c] }

// ProviderKind identifies which transport implementation a provider uses.
type ProviderKind string

const (
	KindSMTP   ProviderKind = "smtp"
	KindResend ProviderKind = "resend"
	KindHTTP   ProviderKind = "http"
)

func ValidProviderKind(k ProviderKind) bool {
	return k == KindSMTP || k == KindResend || k == KindHTTP
}

// Provider is one configured outbound transport. Settings are free-form and
// validated only by the transport that consumes them.
type Provider struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Kind      ProviderKind      `json:"kind"`
	Active    bool              `json:"active"`
	IsPrimary bool              `json:"isPrimary"`
	Position  int               `json:"position"`
	Settings  map[string]string `json:"settings,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Address is a sending identity bound to exactly one provider.
type Address struct {
	ID          string    `json:"id"`
	ProviderID  string    `json:"providerId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	ReplyTo     string    `json:"replyTo,omitempty"`
	Active      bool      `json:"active"`
	IsDefault   bool      `json:"isDefault"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RoutingRule binds a category to a primary (provider, address) pair and an
// optional failover pair. Lower priority value wins. A default rule catches
// categories no other active rule matches.
type RoutingRule struct {
	ID                 string            `json:"id"`
	Label              string            `json:"label"`
	Category           Category          `json:"category"`
	PrimaryProviderID  string            `json:"primaryProviderId"`
	PrimaryAddressID   string            `json:"primaryAddressId"`
	FailoverProviderID string            `json:"failoverProviderId,omitempty"`
	FailoverAddressID  string            `json:"failoverAddressId,omitempty"`
	IsDefault          bool              `json:"isDefault"`
	Active             bool              `json:"active"`
	Priority           int               `json:"priority"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// Template is stored subject/body content with {{key}} placeholders.
// Grouping is organizational only and unrelated to message categories.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Version   int       `json:"version"`
	Grouping  string    `json:"grouping,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one outbound email instance in the durable queue. A message
// carries either a template reference or literal subject/body; vars are
// substituted into whichever applies.
type Message struct {
	ID           string            `json:"id"`
	Recipient    string            `json:"recipient"`
	Category     Category          `json:"category"`
	TemplateID   string            `json:"templateId,omitempty"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body,omitempty"`
	Vars         map[string]string `json:"vars,omitempty"`
	Status       MessageStatus     `json:"status"`
	AttemptCount int               `json:"attemptCount"`
	LastError    string            `json:"lastError,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
}

// SchedulerConfig is the per-deployment singleton controlling the dispatch
// cadence. When disabled, the timer must not fire; manual runs stay allowed.
type SchedulerConfig struct {
	CronExpr      string     `json:"cronExpr"`
	Enabled       bool       `json:"enabled"`
	LastRunAt     *time.Time `json:"lastRunAt,omitempty"`
	LastRunStatus string     `json:"lastRunStatus,omitempty"`
}

type EnqueueRequest struct {
	Recipient  string            `json:"recipient"`
	Category   Category          `json:"category"`
	TemplateID string            `json:"templateId,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	Body       string            `json:"body,omitempty"`
	Vars       map[string]string `json:"vars,omitempty"`
}

func (r EnqueueRequest) Validate() error {
	if r.Recipient == "" {
		return ErrMissingFields
	}
	if !ValidCategory(r.Category) {
		return ErrBadCategory
	}
	if r.TemplateID == "" && r.Subject == "" && r.Body == "" {
		return ErrMissingFields
	}
	return nil
}

type EnqueueResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// BatchSummary is what a dispatch run reports back to its trigger.
type BatchSummary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

package store

import (
	"time"

	"mailroute/internal/domain"
)

type ProviderInsert struct {
	ID       string
	Name     string
	Kind     domain.ProviderKind
	Active   bool
	Position int
	Settings map[string]string
	Now      time.Time
}

type AddressInsert struct {
	ID          string
	ProviderID  string
	Email       string
	DisplayName string
	ReplyTo     string
	IsDefault   bool
	Now         time.Time
}

type RuleInsert struct {
	ID                 string
	Label              string
	Category           domain.Category
	PrimaryProviderID  string
	PrimaryAddressID   string
	FailoverProviderID string
	FailoverAddressID  string
	IsDefault          bool
	Priority           int
	Metadata           map[string]string
	Now                time.Time
}

type TemplateUpsert struct {
	ID       string
	Name     string
	Subject  string
	Body     string
	Grouping string
	Now      time.Time
}

type MessageInsert struct {
	ID         string
	Recipient  string
	Category   domain.Category
	TemplateID string
	Subject    string
	Body       string
	Vars       map[string]string
	Now        time.Time
}

// MessageResult records the terminal outcome of one dispatched message.
// Attempts is the number of transport calls made in this run; it is added
// to the stored attempt count.
type MessageResult struct {
	ID        string
	Status    domain.MessageStatus
	LastError string
	Attempts  int
	Now       time.Time
}

type SchedulerUpdate struct {
	CronExpr string
	Enabled  bool
	Now      time.Time
}

type RunRecord struct {
	Status string
	Now    time.Time
}

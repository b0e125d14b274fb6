package store

import "time"

type Campaign struct {
	ID         int64
	Name       string
	Type       string
	Status     string
	StartAt    time.Time
	EndAt      time.Time
	TemplateID *int64
	AgentID    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Template struct {
	ID   int64
	Name string
	Body string
}

// AudienceContact is one row of a campaign's resolved audience: the contact
// plus the mailing list it was reached through (the lowest list id when a
// contact appears on several of the campaign's lists).
type AudienceContact struct {
	ContactID int64
	ListID    int64
	FirstName string
	LastName  string
	Phone     string
	Email     string
	OptedIn   bool
	Attrs     map[string]string
}

type QueueItemInsert struct {
	CampaignID  int64
	ContactID   int64
	ListID      int64
	Body        string
	ScheduledAt time.Time
}

type QueueItem struct {
	ID           int64
	CampaignID   int64
	ContactID    int64
	ListID       int64
	Body         string
	ScheduledAt  time.Time
	Status       string
	Attempts     int
	ErrorMessage string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// ClaimedItem is a queue row atomically moved to processing, joined with
// the dial-time phone number.
type ClaimedItem struct {
	ID         int64
	CampaignID int64
	ContactID  int64
	ListID     int64
	Phone      string
	Body       string
	Attempts   int
}

type MessageInsert struct {
	ID         string
	Body       string
	SentAt     time.Time
	Status     string
	Sender     string
	ExternalID string
	ListID     int64
	ContactID  int64
	CampaignID int64
	Now        time.Time
}

type Message struct {
	ID           string
	Body         string
	SentAt       time.Time
	Status       string
	Sender       string
	ExternalID   string
	ErrorMessage string
	Cost         *float64
	ListID       int64
	ContactID    int64
	CampaignID   int64
	CreatedAt    time.Time
}

// DeliveryUpdate applies a carrier-reported status to a message, keyed by
// the carrier's correlation id. Nil ErrorMessage/Cost leave the stored
// values untouched, which makes reapplying the same event a no-op.
type DeliveryUpdate struct {
	ExternalID   string
	Status       string
	ErrorMessage *string
	Cost         *float64
}

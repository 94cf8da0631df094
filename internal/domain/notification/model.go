package notification

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeConsultation Type = "CONSULTATION"
	TypeTPA          Type = "TPA"
	TypeSystem       Type = "SYSTEM"
)

// Notification maps to the notifications table. Rows are the only delivery
// channel: recipients read them through the inbox endpoints.
type Notification struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	UserID              uuid.UUID  `db:"user_id" json:"user_id"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	Type                Type       `db:"notification_type" json:"notification_type"`
	Title               string     `db:"title" json:"title"`
	Message             string     `db:"message" json:"message"`
	IsRead              bool       `db:"is_read" json:"is_read"`
	RelatedConsultation *uuid.UUID `db:"related_consultation" json:"related_consultation,omitempty"`
	RelatedTPARequest   *uuid.UUID `db:"related_tpa_request" json:"related_tpa_request,omitempty"`
	RelatedURL          *string    `db:"related_url" json:"related_url,omitempty"`
}

// Inbox is one page of a user's notifications plus the unread total.
type Inbox struct {
	Items       []*Notification `json:"items"`
	Total       int             `json:"total"`
	UnreadCount int             `json:"unread_count"`
}

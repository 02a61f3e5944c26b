package domain

import (
	"fmt"
	"strings"
	"time"
)

type NotificationType string

const (
	NotifyStatus     NotificationType = "status"
	NotifyAssignment NotificationType = "assignment"
	NotifyMention    NotificationType = "mention"
	NotifySystem     NotificationType = "system"
)

// Notification is written by the fan-out service or the reminder scheduler
// and only ever mutated by its recipient.
type Notification struct {
	ID        string           `json:"id"`
	Recipient string           `json:"recipient"`
	Actor     string           `json:"actor"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	TaskID    string           `json:"task_id"`
	ProjectID string           `json:"project_id"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

func (n Notification) Validate() error {
	if strings.TrimSpace(n.Recipient) == "" {
		return fmt.Errorf("%w: notification recipient is required", ErrInvalid)
	}
	switch n.Type {
	case NotifyStatus, NotifyAssignment, NotifyMention, NotifySystem:
	default:
		return fmt.Errorf("%w: unknown notification type %q", ErrInvalid, n.Type)
	}
	if n.Title == "" && n.Message == "" {
		return fmt.Errorf("%w: notification needs a title or message", ErrInvalid)
	}
	return nil
}

// ReminderMarker is a write-once idempotency token; its existence is the payload.
type ReminderMarker struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	TaskID    string    `json:"task_id"`
	Day       string    `json:"day"`
	CreatedAt time.Time `json:"created_at"`
}

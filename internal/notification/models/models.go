package models

import (
	"fmt"
	"strings"
	"time"

	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
)

// Notification is one user's inbox entry. DocumentID is captured when the
// row is created and is cleared if the document is later purged.
type Notification struct {
	ID         id.NotificationID `json:"id"`
	TenantID   id.TenantID       `json:"tenant_id"`
	UserID     id.UserID         `json:"user_id"`
	DocumentID *id.DocumentID    `json:"document_id,omitempty"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Read       bool              `json:"read"`
	ReadAt     *time.Time        `json:"read_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// MarkRead flips the read flag. It reports false when the notification was
// already read so callers can keep the operation idempotent.
func (n *Notification) MarkRead(now time.Time) bool {
	if n.Read {
		return false
	}
	readAt := now
	n.Read = true
	n.ReadAt = &readAt
	return true
}

// Content is the title and body a recipient will see.
type Content struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Validate requires both a title and a body.
func (c Content) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(c.Title) == "" {
		fields["title"] = "required"
	}
	if strings.TrimSpace(c.Body) == "" {
		fields["body"] = "required"
	}
	if len(fields) > 0 {
		return dErrors.Validation("notification content is incomplete", fields)
	}
	return nil
}

// DocumentRef is the slice of an approved document the dispatcher needs.
type DocumentRef struct {
	TenantID      id.TenantID
	DocumentID    id.DocumentID
	ContractID    id.ContractID
	Area          string
	Code          string
	RevisionLabel string
	ActorID       id.UserID
}

// ApprovalContent renders the message sent when a document is approved.
func ApprovalContent(ref DocumentRef) Content {
	return Content{
		Title: fmt.Sprintf("Document %s approved", ref.Code),
		Body: fmt.Sprintf("Revision %s of document %s (%s) was approved and is now in force.",
			ref.RevisionLabel, ref.Code, ref.Area),
	}
}

// TargetType selects the audience of a broadcast.
type TargetType string

const (
	TargetAllTenantUsers TargetType = "all_tenant_users"
	TargetSpecificUsers  TargetType = "specific_users"
)

func ParseTargetType(raw string) (TargetType, error) {
	switch t := TargetType(raw); t {
	case TargetAllTenantUsers, TargetSpecificUsers:
		return t, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "unknown target type").WithField("target_type", "invalid")
	}
}

// DispatchResult counts a fan-out. Sent is the number of rows actually
// created.
type DispatchResult struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// Partial reports whether some recipients were not notified.
func (r DispatchResult) Partial() bool {
	return r.Failed > 0
}

package audit

import (
	"context"
	"time"

	id "doccontrol/pkg/domain"
)

// EventCategory classifies audit events by retention and routing needs.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: approvals,
	// irreversible deletions and changes to who gets told about them.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted by services to record what happened, to what, and by whom.
// It is transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	TenantID  id.TenantID
	ActorID   id.UserID
	Subject   string
	Action    string
	Status    string
	Reason    string
	Count     int
	RequestID string
}

type AuditEvent string

const (
	EventDocumentSubmitted       AuditEvent = "document_submitted"
	EventRevisionAppended        AuditEvent = "revision_appended"
	EventDocumentStatusChanged   AuditEvent = "document_status_changed"
	EventDocumentApproved        AuditEvent = "document_approved"
	EventDocumentDeleted         AuditEvent = "document_deleted"
	EventDocumentRestored        AuditEvent = "document_restored"
	EventDocumentPurged          AuditEvent = "document_purged"
	EventDistributionRulesSaved  AuditEvent = "distribution_rules_saved"
	EventNotificationsDispatched AuditEvent = "notifications_dispatched"
	EventNotificationBroadcast   AuditEvent = "notification_broadcast"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDocumentStatusChanged:  CategoryCompliance,
	EventDocumentApproved:       CategoryCompliance,
	EventDocumentPurged:         CategoryCompliance,
	EventDistributionRulesSaved: CategoryCompliance,

	EventDocumentSubmitted:       CategoryOperations,
	EventRevisionAppended:        CategoryOperations,
	EventDocumentDeleted:         CategoryOperations,
	EventDocumentRestored:        CategoryOperations,
	EventNotificationsDispatched: CategoryOperations,
	EventNotificationBroadcast:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. The Kafka sink and the in-memory store both
// implement it.
type Store interface {
	Append(ctx context.Context, event Event) error
}

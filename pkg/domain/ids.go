// Package domain holds the identifier and principal types shared by every
// bounded context. Identifiers are distinct named UUID types so a DocumentID
// can never be passed where a UserID is expected.
package domain

import (
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "doccontrol/pkg/domain-errors"
)

type (
	TenantID       uuid.UUID
	UserID         uuid.UUID
	ContractID     uuid.UUID
	DocumentID     uuid.UUID
	RevisionID     uuid.UUID
	NotificationID uuid.UUID
)

func (id TenantID) String() string       { return uuid.UUID(id).String() }
func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id ContractID) String() string     { return uuid.UUID(id).String() }
func (id DocumentID) String() string     { return uuid.UUID(id).String() }
func (id RevisionID) String() string     { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id ContractID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id RevisionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed ids serialize as plain UUID strings in JSON and as
// map keys.
func (id TenantID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id ContractID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id DocumentID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id RevisionID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id NotificationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *TenantID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UserID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ContractID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DocumentID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RevisionID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *NotificationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseTenantID parses a tenant identifier received at a trust boundary.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID(s, "tenant_id")
	return TenantID(u), err
}

// ParseUserID parses a user identifier received at a trust boundary.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

// ParseContractID parses a contract identifier received at a trust boundary.
func ParseContractID(s string) (ContractID, error) {
	u, err := parseUUID(s, "contract_id")
	return ContractID(u), err
}

// ParseDocumentID parses a document identifier received at a trust boundary.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document_id")
	return DocumentID(u), err
}

// ParseNotificationID parses a notification identifier received at a trust boundary.
func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s, "notification_id")
	return NotificationID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs.
func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required").WithField(field, "required")
	}
	if !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is not valid UTF-8").WithField(field, "invalid")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, field+" must be a UUID").WithField(field, "invalid")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be the nil UUID").WithField(field, "invalid")
	}
	return u, nil
}

// NewDocumentID and friends allocate fresh random identifiers.
func NewDocumentID() DocumentID         { return DocumentID(uuid.New()) }
func NewRevisionID() RevisionID         { return RevisionID(uuid.New()) }
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }
func NewTenantID() TenantID             { return TenantID(uuid.New()) }
func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewContractID() ContractID         { return ContractID(uuid.New()) }

package models

import (
	"slices"

	dErrors "doccontrol/pkg/domain-errors"
)

// Status is the approval state of a revision. A document's status is always
// its current revision's status.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
)

// transitions is the complete set of legal moves. Anything absent is illegal.
var transitions = map[Status][]Status{
	StatusDraft:           {StatusPendingApproval},
	StatusPendingApproval: {StatusApproved, StatusRejected},
	StatusRejected:        {StatusPendingApproval},
	StatusApproved:        {StatusPendingApproval},
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// AllowedNext lists the states reachable from s.
func (s Status) AllowedNext() []Status {
	return slices.Clone(transitions[s])
}

// ParseStatus validates a client-supplied status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown status").WithField("status", "invalid")
	}
	return s, nil
}

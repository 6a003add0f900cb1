package models

import (
	"fmt"
	"strings"
	"time"

	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
)

// Attachment is an opaque reference into external file storage.
type Attachment struct {
	Link string `json:"link"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

func (a Attachment) IsZero() bool {
	return a.Link == ""
}

// Revision is one entry in a document's ledger. Only the current revision's
// status and approval fields ever change after creation.
type Revision struct {
	ID                  id.RevisionID `json:"id"`
	Seq                 int           `json:"seq"`
	Label               string        `json:"label"`
	CreatedAt           time.Time     `json:"created_at"`
	AuthorID            id.UserID     `json:"author_id"`
	Observation         string        `json:"observation,omitempty"`
	Attachment          Attachment    `json:"attachment"`
	Content             string        `json:"content,omitempty"`
	Status              Status        `json:"status"`
	DesignatedApprover  *id.UserID    `json:"designated_approver,omitempty"`
	ApprovedBy          *id.UserID    `json:"approved_by,omitempty"`
	ApprovedAt          *time.Time    `json:"approved_at,omitempty"`
	ApproverObservation string        `json:"approver_observation,omitempty"`
}

// RevisionLabel renders a sequence number as R00, R01, ...
func RevisionLabel(seq int) string {
	return fmt.Sprintf("R%02d", seq)
}

// ApprovalEvent is the append-only history entry written for every status
// change, creation included.
type ApprovalEvent struct {
	DocumentID    id.DocumentID `json:"document_id"`
	RevisionLabel string        `json:"revision_label"`
	ActorID       id.UserID     `json:"actor_id"`
	Status        Status        `json:"status"`
	Observation   string        `json:"observation,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// Document is the aggregate root of the revision ledger.
//
// Invariants:
//   - Revisions is ordered by Seq, strictly increasing, never renumbered
//   - CurrentRevisionID names the last revision in Revisions
//   - Status equals the current revision's status
//   - Code is unique within the tenant, soft-deleted documents included
type Document struct {
	ID                id.DocumentID `json:"id"`
	TenantID          id.TenantID   `json:"tenant_id"`
	Code              string        `json:"code"`
	Title             string        `json:"title,omitempty"`
	Area              string        `json:"area"`
	ContractID        id.ContractID `json:"contract_id"`
	ResponsibleID     id.UserID     `json:"responsible_id"`
	ElaborationDate   time.Time     `json:"elaboration_date"`
	Status            Status        `json:"status"`
	CurrentRevisionID id.RevisionID `json:"current_revision_id"`
	StatusChangedAt   time.Time     `json:"status_changed_at"`
	CreatedAt         time.Time     `json:"created_at"`
	DeletedAt         *time.Time    `json:"deleted_at,omitempty"`
	Revisions         []*Revision   `json:"revisions,omitempty"`
}

// NewDocumentParams carries the validated metadata for SubmitNewDocument.
type NewDocumentParams struct {
	TenantID        id.TenantID
	Code            string
	Title           string
	Area            string
	ContractID      id.ContractID
	ResponsibleID   id.UserID
	ElaborationDate time.Time
}

// RevisionInput is the author-supplied part of a new revision.
type RevisionInput struct {
	AuthorID           id.UserID
	Observation        string
	Content            string
	Attachment         Attachment
	DesignatedApprover *id.UserID
}

// NewDocument builds a document with its first revision R00. It starts in
// draft, or pending_approval when a file is attached.
func NewDocument(p NewDocumentParams, in RevisionInput, now time.Time) (*Document, *ApprovalEvent, error) {
	if p.TenantID.IsNil() || p.ContractID.IsNil() || p.ResponsibleID.IsNil() {
		return nil, nil, dErrors.New(dErrors.CodeInvariantViolation, "document requires tenant, contract and responsible user")
	}
	if strings.TrimSpace(p.Code) == "" || strings.TrimSpace(p.Area) == "" || p.ElaborationDate.IsZero() {
		return nil, nil, dErrors.New(dErrors.CodeInvariantViolation, "document requires code, area and elaboration date")
	}

	status := StatusDraft
	if !in.Attachment.IsZero() {
		status = StatusPendingApproval
	}
	rev := &Revision{
		ID:                 id.NewRevisionID(),
		Seq:                0,
		Label:              RevisionLabel(0),
		CreatedAt:          now,
		AuthorID:           in.AuthorID,
		Observation:        in.Observation,
		Attachment:         in.Attachment,
		Content:            in.Content,
		Status:             status,
		DesignatedApprover: in.DesignatedApprover,
	}
	doc := &Document{
		ID:                id.NewDocumentID(),
		TenantID:          p.TenantID,
		Code:              p.Code,
		Title:             p.Title,
		Area:              p.Area,
		ContractID:        p.ContractID,
		ResponsibleID:     p.ResponsibleID,
		ElaborationDate:   p.ElaborationDate,
		Status:            status,
		CurrentRevisionID: rev.ID,
		StatusChangedAt:   now,
		CreatedAt:         now,
		Revisions:         []*Revision{rev},
	}
	return doc, doc.newEvent(rev, in.AuthorID, in.Observation, now), nil
}

func (d *Document) IsDeleted() bool {
	return d.DeletedAt != nil
}

// CurrentRevision returns the revision named by CurrentRevisionID.
func (d *Document) CurrentRevision() (*Revision, error) {
	for i := len(d.Revisions) - 1; i >= 0; i-- {
		if d.Revisions[i].ID == d.CurrentRevisionID {
			return d.Revisions[i], nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "current revision not found")
}

// NextSeq is one past the highest sequence number ever issued.
func (d *Document) NextSeq() int {
	next := 0
	for _, r := range d.Revisions {
		if r.Seq >= next {
			next = r.Seq + 1
		}
	}
	return next
}

// CanAppendRevision checks the document is live and has a current revision.
func (d *Document) CanAppendRevision() error {
	if d.IsDeleted() {
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	_, err := d.CurrentRevision()
	return err
}

// ApplyAppendRevision adds the next revision in pending_approval. The
// designated approver is inherited unless the input names one.
func (d *Document) ApplyAppendRevision(in RevisionInput, now time.Time) (*Revision, *ApprovalEvent) {
	prev, _ := d.CurrentRevision()
	approver := in.DesignatedApprover
	if approver == nil && prev != nil {
		approver = prev.DesignatedApprover
	}
	seq := d.NextSeq()
	rev := &Revision{
		ID:                 id.NewRevisionID(),
		Seq:                seq,
		Label:              RevisionLabel(seq),
		CreatedAt:          now,
		AuthorID:           in.AuthorID,
		Observation:        in.Observation,
		Attachment:         in.Attachment,
		Content:            in.Content,
		Status:             StatusPendingApproval,
		DesignatedApprover: approver,
	}
	d.Revisions = append(d.Revisions, rev)
	d.CurrentRevisionID = rev.ID
	d.Status = rev.Status
	d.StatusChangedAt = now
	return rev, d.newEvent(rev, in.AuthorID, in.Observation, now)
}

// CanTransition validates next against the transition table using the
// current status.
func (d *Document) CanTransition(next Status) error {
	if d.IsDeleted() {
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	if _, err := d.CurrentRevision(); err != nil {
		return err
	}
	if !d.Status.CanTransitionTo(next) {
		return IllegalTransition(d.Status, next)
	}
	return nil
}

// ApplyTransition moves the current revision to next. Entering approved
// records the approver; leaving approved clears it.
func (d *Document) ApplyTransition(next Status, actor id.UserID, observation string, now time.Time) *ApprovalEvent {
	rev, _ := d.CurrentRevision()
	switch {
	case next == StatusApproved:
		approver := actor
		approvedAt := now
		rev.ApprovedBy = &approver
		rev.ApprovedAt = &approvedAt
		rev.ApproverObservation = observation
	case rev.Status == StatusApproved:
		rev.ApprovedBy = nil
		rev.ApprovedAt = nil
		rev.ApproverObservation = ""
	}
	rev.Status = next
	d.Status = next
	d.StatusChangedAt = now
	return d.newEvent(rev, actor, observation, now)
}

func (d *Document) CanSoftDelete() error {
	if d.IsDeleted() {
		return dErrors.New(dErrors.CodeConflict, "document is already deleted")
	}
	return nil
}

func (d *Document) ApplySoftDelete(now time.Time) {
	deletedAt := now
	d.DeletedAt = &deletedAt
}

func (d *Document) CanRestore() error {
	if !d.IsDeleted() {
		return dErrors.New(dErrors.CodeConflict, "document is not deleted")
	}
	return nil
}

func (d *Document) ApplyRestore() {
	d.DeletedAt = nil
}

// CheckInvariants verifies the ledger is internally consistent.
func (d *Document) CheckInvariants() error {
	cur, err := d.CurrentRevision()
	if err != nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "current revision missing from ledger")
	}
	if cur.Status != d.Status {
		return dErrors.New(dErrors.CodeInvariantViolation, "document status differs from current revision")
	}
	for i := 1; i < len(d.Revisions); i++ {
		if d.Revisions[i].Seq <= d.Revisions[i-1].Seq {
			return dErrors.New(dErrors.CodeInvariantViolation, "revision labels out of order")
		}
	}
	return nil
}

func (d *Document) newEvent(rev *Revision, actor id.UserID, observation string, now time.Time) *ApprovalEvent {
	return &ApprovalEvent{
		DocumentID:    d.ID,
		RevisionLabel: rev.Label,
		ActorID:       actor,
		Status:        rev.Status,
		Observation:   observation,
		OccurredAt:    now,
	}
}

// Clone deep-copies the document and its revisions.
func (d *Document) Clone() *Document {
	cp := *d
	if d.DeletedAt != nil {
		t := *d.DeletedAt
		cp.DeletedAt = &t
	}
	cp.Revisions = make([]*Revision, len(d.Revisions))
	for i, r := range d.Revisions {
		cp.Revisions[i] = r.Clone()
	}
	return &cp
}

func (r *Revision) Clone() *Revision {
	cp := *r
	if r.DesignatedApprover != nil {
		v := *r.DesignatedApprover
		cp.DesignatedApprover = &v
	}
	if r.ApprovedBy != nil {
		v := *r.ApprovedBy
		cp.ApprovedBy = &v
	}
	if r.ApprovedAt != nil {
		v := *r.ApprovedAt
		cp.ApprovedAt = &v
	}
	return &cp
}

// IllegalTransition names both states so callers can tell the user what was
// attempted.
func IllegalTransition(from, to Status) error {
	return dErrors.New(dErrors.CodeIllegalTransition,
		fmt.Sprintf("cannot move document from %s to %s", from, to)).
		WithField("current", string(from)).
		WithField("requested", string(to))
}

// ListFilter narrows ListDocuments. Zero values match everything.
type ListFilter struct {
	Area           string
	Status         Status
	ContractID     *id.ContractID
	IncludeDeleted bool
}

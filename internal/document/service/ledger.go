package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"doccontrol/internal/document/models"
	notifmodels "doccontrol/internal/notification/models"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	audit "doccontrol/pkg/platform/audit"
	"doccontrol/pkg/requestcontext"
)

// SubmitCommand is a new document with its first revision.
type SubmitCommand struct {
	Code               string
	Title              string
	Area               string
	ContractID         id.ContractID
	ResponsibleID      id.UserID
	ElaborationDate    time.Time
	Observation        string
	Content            string
	Attachment         models.Attachment
	DesignatedApprover *id.UserID
}

// AppendCommand is a follow-up revision of an existing document.
type AppendCommand struct {
	Observation        string
	Content            string
	Attachment         models.Attachment
	DesignatedApprover *id.UserID
}

// TransitionResult reports the committed document and what the approval
// dispatch produced. Partial is set when some recipients were not notified;
// the transition itself is committed regardless.
type TransitionResult struct {
	Document          *models.Document
	NotificationsSent int
	Partial           bool
}

// SubmitNewDocument creates a document with revision R00.
func (s *Service) SubmitNewDocument(ctx context.Context, p id.Principal, cmd SubmitCommand) (*models.Document, error) {
	if err := s.authorize(ctx, p); err != nil {
		return nil, err
	}
	cmd.Code = strings.TrimSpace(cmd.Code)
	cmd.Area = strings.TrimSpace(cmd.Area)
	cmd.Title = strings.TrimSpace(cmd.Title)
	if err := s.validateSubmit(ctx, p.TenantID, cmd); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	doc, event, err := models.NewDocument(models.NewDocumentParams{
		TenantID:        p.TenantID,
		Code:            cmd.Code,
		Title:           cmd.Title,
		Area:            cmd.Area,
		ContractID:      cmd.ContractID,
		ResponsibleID:   cmd.ResponsibleID,
		ElaborationDate: cmd.ElaborationDate,
	}, models.RevisionInput{
		AuthorID:           p.UserID,
		Observation:        cmd.Observation,
		Content:            s.contentFor(ctx, cmd.Content, cmd.Attachment),
		Attachment:         cmd.Attachment,
		DesignatedApprover: cmd.DesignatedApprover,
	}, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "document is incomplete")
	}
	if err := s.store.Create(ctx, doc, event); err != nil {
		return nil, wrapDocumentErr(err, "create document")
	}

	if s.metrics != nil {
		s.metrics.IncrementSubmitted()
	}
	s.logger.InfoContext(ctx, "document submitted",
		"document_id", doc.ID.String(),
		"code", doc.Code,
		"status", string(doc.Status),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.EventDocumentSubmitted, p, doc, doc.Revisions[0].Label, 0)
	return doc, nil
}

func (s *Service) validateSubmit(ctx context.Context, tenantID id.TenantID, cmd SubmitCommand) error {
	fields := map[string]string{}
	if cmd.Code == "" {
		fields["code"] = "required"
	}
	if cmd.Area == "" {
		fields["area"] = "required"
	}
	if cmd.ElaborationDate.IsZero() {
		fields["elaboration_date"] = "required"
	}
	if cmd.ContractID.IsNil() {
		fields["contract_id"] = "required"
	} else if err := s.directory.RequireContract(ctx, tenantID, cmd.ContractID); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return err
		}
		fields["contract_id"] = "unknown"
	}
	if cmd.ResponsibleID.IsNil() {
		fields["responsible_id"] = "required"
	} else if err := s.requireMemberField(ctx, tenantID, cmd.ResponsibleID); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return err
		}
		fields["responsible_id"] = "unknown"
	}
	if cmd.DesignatedApprover != nil {
		if err := s.requireMemberField(ctx, tenantID, *cmd.DesignatedApprover); err != nil {
			if !dErrors.HasCode(err, dErrors.CodeNotFound) {
				return err
			}
			fields["designated_approver_id"] = "unknown"
		}
	}
	if len(fields) > 0 {
		return dErrors.Validation("invalid document", fields)
	}
	return nil
}

func (s *Service) requireMemberField(ctx context.Context, tenantID id.TenantID, userID id.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return s.directory.RequireMember(ctx, tenantID, userID)
}

// contentFor prefers text supplied by the author and otherwise asks the
// extractor. Extraction never blocks creation.
func (s *Service) contentFor(ctx context.Context, content string, att models.Attachment) string {
	if content != "" || att.IsZero() || s.extractor == nil {
		return content
	}
	return s.extractor.ExtractText(ctx, att.Link, att.Name, att.Type)
}

// AppendRevision adds the next revision in pending_approval.
func (s *Service) AppendRevision(ctx context.Context, p id.Principal, docID id.DocumentID, cmd AppendCommand) (*models.Document, error) {
	if err := s.authorize(ctx, p); err != nil {
		return nil, err
	}
	if cmd.DesignatedApprover != nil {
		if err := s.requireMemberField(ctx, p.TenantID, *cmd.DesignatedApprover); err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil, dErrors.Validation("invalid revision", map[string]string{"designated_approver_id": "unknown"})
			}
			return nil, err
		}
	}

	unlock, err := s.lockDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := s.loadLive(ctx, p.TenantID, docID)
	if err != nil {
		return nil, err
	}
	if err := doc.CanAppendRevision(); err != nil {
		return nil, err
	}
	rev, event := doc.ApplyAppendRevision(models.RevisionInput{
		AuthorID:           p.UserID,
		Observation:        cmd.Observation,
		Content:            s.contentFor(ctx, cmd.Content, cmd.Attachment),
		Attachment:         cmd.Attachment,
		DesignatedApprover: cmd.DesignatedApprover,
	}, requestcontext.Now(ctx))
	if err := s.store.AppendRevision(ctx, doc, rev, event); err != nil {
		return nil, wrapDocumentErr(err, "append revision")
	}

	if s.metrics != nil {
		s.metrics.IncrementAppended()
	}
	s.logger.InfoContext(ctx, "revision appended",
		"document_id", doc.ID.String(),
		"revision", rev.Label,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.EventRevisionAppended, p, doc, rev.Label, 0)
	return doc, nil
}

// TransitionStatus moves the current revision to next. The write commits
// under the document lock; an approval then resolves recipients and
// dispatches outside it.
func (s *Service) TransitionStatus(ctx context.Context, p id.Principal, docID id.DocumentID, next models.Status, observation string) (*TransitionResult, error) {
	ctx, span := s.tracer.Start(ctx, "document.TransitionStatus", trace.WithAttributes(
		attribute.String("document.id", docID.String()),
		attribute.String("document.status.requested", string(next)),
	))
	defer span.End()
	start := time.Now()
	if s.metrics != nil {
		defer s.metrics.ObserveTransition(start)
	}

	doc, from, err := s.commitTransition(ctx, p, docID, next, observation)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.String("document.status.previous", string(from)))

	if s.metrics != nil {
		s.metrics.RecordTransition(string(from), string(next))
	}
	s.logger.InfoContext(ctx, "document status changed",
		"document_id", doc.ID.String(),
		"from", string(from),
		"to", string(next),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.EventDocumentStatusChanged, p, doc, string(from), 0)

	result := &TransitionResult{Document: doc}
	if next == models.StatusApproved {
		result.NotificationsSent, result.Partial = s.notifyApproval(ctx, p, doc)
		span.SetAttributes(attribute.Int("notifications.sent", result.NotificationsSent))
	}
	return result, nil
}

func (s *Service) commitTransition(ctx context.Context, p id.Principal, docID id.DocumentID, next models.Status, observation string) (*models.Document, models.Status, error) {
	if err := s.authorize(ctx, p); err != nil {
		return nil, "", err
	}
	if !next.IsValid() {
		return nil, "", dErrors.New(dErrors.CodeValidation, "unknown status").WithField("status", "invalid")
	}

	unlock, err := s.lockDocument(ctx, docID)
	if err != nil {
		return nil, "", err
	}
	defer unlock()

	doc, err := s.loadLive(ctx, p.TenantID, docID)
	if err != nil {
		return nil, "", err
	}
	if err := doc.CanTransition(next); err != nil {
		return nil, "", err
	}
	cur, _ := doc.CurrentRevision()
	if err := canDecide(p, cur, next); err != nil {
		return nil, "", err
	}

	from := doc.Status
	event := doc.ApplyTransition(next, p.UserID, observation, requestcontext.Now(ctx))
	if err := s.store.SaveTransition(ctx, doc, event); err != nil {
		return nil, "", wrapDocumentErr(err, "save transition")
	}
	return doc, from, nil
}

// canDecide restricts approve and reject to the designated approver when one
// is set. Admins may always decide.
func canDecide(p id.Principal, rev *models.Revision, next models.Status) error {
	if next != models.StatusApproved && next != models.StatusRejected {
		return nil
	}
	if rev.DesignatedApprover == nil || *rev.DesignatedApprover == p.UserID || p.IsAdmin() {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "only the designated approver may decide this revision")
}

// notifyApproval runs after the transition has committed, so a cancelled
// request does not cut the fan-out short. Failures only reduce the count.
func (s *Service) notifyApproval(ctx context.Context, p id.Principal, doc *models.Document) (int, bool) {
	if s.dispatcher == nil {
		return 0, false
	}
	cur, _ := doc.CurrentRevision()
	ref := notifmodels.DocumentRef{
		TenantID:      doc.TenantID,
		DocumentID:    doc.ID,
		ContractID:    doc.ContractID,
		Area:          doc.Area,
		Code:          doc.Code,
		RevisionLabel: cur.Label,
		ActorID:       p.UserID,
	}
	res, err := s.dispatcher.NotifyRelevantUsers(context.WithoutCancel(ctx), ref)
	partial := err != nil || res.Partial()
	if err != nil {
		s.logger.ErrorContext(ctx, "approval dispatch failed",
			"document_id", doc.ID.String(),
			"sent", res.Sent,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else if partial {
		s.logger.WarnContext(ctx, "approval dispatch partially failed",
			"document_id", doc.ID.String(),
			"sent", res.Sent,
			"failed", res.Failed,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if s.metrics != nil {
		s.metrics.RecordDispatch(res.Sent, partial)
	}
	s.emit(ctx, audit.EventDocumentApproved, p, doc, cur.Label, res.Sent)
	return res.Sent, partial
}

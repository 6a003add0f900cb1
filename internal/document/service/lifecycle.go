package service

import (
	"context"

	"doccontrol/internal/document/models"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	audit "doccontrol/pkg/platform/audit"
	"doccontrol/pkg/requestcontext"
)

// SoftDelete hides a document. Its revisions and labels are kept.
func (s *Service) SoftDelete(ctx context.Context, p id.Principal, docID id.DocumentID) (*models.Document, error) {
	return s.changeDeletion(ctx, p, docID, audit.EventDocumentDeleted,
		(*models.Document).CanSoftDelete,
		func(d *models.Document) { d.ApplySoftDelete(requestcontext.Now(ctx)) },
	)
}

// Restore clears the deletion flag and timestamp.
func (s *Service) Restore(ctx context.Context, p id.Principal, docID id.DocumentID) (*models.Document, error) {
	return s.changeDeletion(ctx, p, docID, audit.EventDocumentRestored,
		(*models.Document).CanRestore,
		(*models.Document).ApplyRestore,
	)
}

func (s *Service) changeDeletion(
	ctx context.Context,
	p id.Principal,
	docID id.DocumentID,
	action audit.AuditEvent,
	check func(*models.Document) error,
	apply func(*models.Document),
) (*models.Document, error) {
	if err := s.authorize(ctx, p); err != nil {
		return nil, err
	}
	unlock, err := s.lockDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := s.store.FindByID(ctx, p.TenantID, docID)
	if err != nil {
		return nil, wrapDocumentErr(err, "load document")
	}
	if err := check(doc); err != nil {
		return nil, err
	}
	apply(doc)
	if err := s.store.SetDeleted(ctx, doc); err != nil {
		return nil, wrapDocumentErr(err, "update document")
	}
	s.logger.InfoContext(ctx, string(action),
		"document_id", doc.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, action, p, doc, "", 0)
	return doc, nil
}

// Purge irreversibly removes a document with its revisions and events.
// Notifications that referenced it keep their text but lose the link.
func (s *Service) Purge(ctx context.Context, p id.Principal, docID id.DocumentID) error {
	if err := s.authorize(ctx, p); err != nil {
		return err
	}
	if !p.Can(id.PermissionPurgeDocuments) {
		return dErrors.New(dErrors.CodeForbidden, "purging documents requires the documents:purge permission")
	}
	unlock, err := s.lockDocument(ctx, docID)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.store.FindByID(ctx, p.TenantID, docID)
	if err != nil {
		return wrapDocumentErr(err, "load document")
	}
	if err := s.store.Purge(ctx, p.TenantID, docID); err != nil {
		return wrapDocumentErr(err, "purge document")
	}
	if s.links != nil {
		if _, err := s.links.DetachDocument(ctx, p.TenantID, docID); err != nil {
			s.logger.WarnContext(ctx, "failed to detach notifications from purged document",
				"document_id", docID.String(),
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementPurged()
	}
	s.logger.WarnContext(ctx, "document purged",
		"document_id", doc.ID.String(),
		"code", doc.Code,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.EventDocumentPurged, p, doc, doc.Code, 0)
	return nil
}

// GetDocument returns the document with its full revision ledger.
// Soft-deleted documents are only visible on request, to callers allowed to
// see them.
func (s *Service) GetDocument(ctx context.Context, p id.Principal, docID id.DocumentID, includeDeleted bool) (*models.Document, error) {
	if err := s.authorize(ctx, p); err != nil {
		return nil, err
	}
	if includeDeleted {
		if err := canViewDeleted(p); err != nil {
			return nil, err
		}
		doc, err := s.store.FindByID(ctx, p.TenantID, docID)
		if err != nil {
			return nil, wrapDocumentErr(err, "load document")
		}
		return doc, nil
	}
	return s.loadLive(ctx, p.TenantID, docID)
}

// ListDocuments returns document headers without their revisions.
func (s *Service) ListDocuments(ctx context.Context, p id.Principal, filter models.ListFilter) ([]*models.Document, error) {
	if err := s.authorize(ctx, p); err != nil {
		return nil, err
	}
	if filter.IncludeDeleted {
		if err := canViewDeleted(p); err != nil {
			return nil, err
		}
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown status").WithField("status", "invalid")
	}
	docs, err := s.store.List(ctx, p.TenantID, filter)
	if err != nil {
		return nil, wrapDocumentErr(err, "list documents")
	}
	return docs, nil
}

// ListApprovalEvents returns the document's history, oldest first.
func (s *Service) ListApprovalEvents(ctx context.Context, p id.Principal, docID id.DocumentID) ([]*models.ApprovalEvent, error) {
	if err := s.authorize(ctx, p); err != nil {
		return nil, err
	}
	if _, err := s.loadLive(ctx, p.TenantID, docID); err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, p.TenantID, docID)
	if err != nil {
		return nil, wrapDocumentErr(err, "list approval events")
	}
	return events, nil
}

func canViewDeleted(p id.Principal) error {
	if p.Can(id.PermissionViewDeletedRecord) {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "viewing deleted documents is not permitted")
}

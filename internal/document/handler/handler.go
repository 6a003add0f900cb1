package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"doccontrol/internal/document/models"
	"doccontrol/internal/document/service"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/httputil"
	"doccontrol/pkg/platform/middleware/admin"
	"doccontrol/pkg/requestcontext"
)

// Service is the revision ledger as seen by HTTP.
type Service interface {
	SubmitNewDocument(ctx context.Context, p id.Principal, cmd service.SubmitCommand) (*models.Document, error)
	AppendRevision(ctx context.Context, p id.Principal, docID id.DocumentID, cmd service.AppendCommand) (*models.Document, error)
	TransitionStatus(ctx context.Context, p id.Principal, docID id.DocumentID, next models.Status, observation string) (*service.TransitionResult, error)
	SoftDelete(ctx context.Context, p id.Principal, docID id.DocumentID) (*models.Document, error)
	Restore(ctx context.Context, p id.Principal, docID id.DocumentID) (*models.Document, error)
	Purge(ctx context.Context, p id.Principal, docID id.DocumentID) error
	GetDocument(ctx context.Context, p id.Principal, docID id.DocumentID, includeDeleted bool) (*models.Document, error)
	ListDocuments(ctx context.Context, p id.Principal, filter models.ListFilter) ([]*models.Document, error)
	ListApprovalEvents(ctx context.Context, p id.Principal, docID id.DocumentID) ([]*models.ApprovalEvent, error)
}

type Handler struct {
	documents Service
	logger    *slog.Logger
}

func New(documents Service, logger *slog.Logger) *Handler {
	return &Handler{documents: documents, logger: logger}
}

// Register mounts the document routes. Callers are expected to have run the
// auth middleware already.
func (h *Handler) Register(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.handleSubmit)
		r.Get("/", h.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleSoftDelete)
			r.Get("/events", h.handleEvents)
			r.Post("/revisions", h.handleAppend)
			r.Post("/status", h.handleTransition)
			r.Post("/restore", h.handleRestore)
			r.With(admin.RequirePermission(id.PermissionPurgeDocuments, h.logger)).
				Delete("/purge", h.handlePurge)
		})
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	doc, err := h.documents.SubmitNewDocument(ctx, requestcontext.Principal(ctx), req.command())
	if err != nil {
		h.fail(ctx, w, "submit document", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, "document created", doc)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := models.ListFilter{
		Area:           q.Get("area"),
		Status:         models.Status(q.Get("status")),
		IncludeDeleted: parseBool(q.Get("include_deleted")),
	}
	if raw := q.Get("contract_id"); raw != "" {
		cid, err := id.ParseContractID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.ContractID = &cid
	}
	docs, err := h.documents.ListDocuments(ctx, requestcontext.Principal(ctx), filter)
	if err != nil {
		h.fail(ctx, w, "list documents", err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	httputil.WriteSuccess(w, http.StatusOK, "documents listed", docs)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentID(w, r)
	if !ok {
		return
	}
	doc, err := h.documents.GetDocument(ctx, requestcontext.Principal(ctx), docID, parseBool(r.URL.Query().Get("include_deleted")))
	if err != nil {
		h.fail(ctx, w, "get document", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "document found", doc)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentID(w, r)
	if !ok {
		return
	}
	events, err := h.documents.ListApprovalEvents(ctx, requestcontext.Principal(ctx), docID)
	if err != nil {
		h.fail(ctx, w, "list approval events", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "approval history", events)
}

func (h *Handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AppendRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	doc, err := h.documents.AppendRevision(ctx, requestcontext.Principal(ctx), docID, req.command())
	if err != nil {
		h.fail(ctx, w, "append revision", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, "revision appended", doc)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := h.documents.TransitionStatus(ctx, requestcontext.Principal(ctx), docID, req.status, req.Observation)
	if err != nil {
		h.fail(ctx, w, "transition document", err)
		return
	}
	message := "status updated"
	if res.Partial {
		message = "status updated; some notifications could not be delivered"
	}
	httputil.WriteDispatch(w, http.StatusOK, message, res.Document, res.NotificationsSent)
}

func (h *Handler) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentID(w, r)
	if !ok {
		return
	}
	doc, err := h.documents.SoftDelete(ctx, requestcontext.Principal(ctx), docID)
	if err != nil {
		h.fail(ctx, w, "delete document", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "document deleted", doc)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentID(w, r)
	if !ok {
		return
	}
	doc, err := h.documents.Restore(ctx, requestcontext.Principal(ctx), docID)
	if err != nil {
		h.fail(ctx, w, "restore document", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "document restored", doc)
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentID(w, r)
	if !ok {
		return
	}
	if err := h.documents.Purge(ctx, requestcontext.Principal(ctx), docID); err != nil {
		h.fail(ctx, w, "purge document", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "document purged", nil)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.InfoContext(ctx, op+" rejected",
			"request_id", requestcontext.RequestID(ctx),
			"code", string(dErrors.CodeOf(err)),
		)
	}
	httputil.WriteError(w, err)
}

func documentID(w http.ResponseWriter, r *http.Request) (id.DocumentID, bool) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DocumentID{}, false
	}
	return docID, true
}

func parseBool(raw string) bool {
	v, _ := strconv.ParseBool(raw)
	return v
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"doccontrol/internal/notification/models"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/httputil"
	"doccontrol/pkg/platform/middleware/admin"
	"doccontrol/pkg/requestcontext"
)

// Service is the notification inbox plus the admin broadcast.
type Service interface {
	List(ctx context.Context, p id.Principal, unreadOnly bool) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, p id.Principal) (int, error)
	MarkRead(ctx context.Context, p id.Principal, ids []id.NotificationID) (int, error)
	MarkAllRead(ctx context.Context, p id.Principal) (int, error)
	Delete(ctx context.Context, p id.Principal, nid id.NotificationID) error
	DeleteAllRead(ctx context.Context, p id.Principal) (int, error)
	SendNotification(ctx context.Context, p id.Principal, target models.TargetType, content models.Content, userIDs []id.UserID) (models.DispatchResult, error)
}

type Handler struct {
	notifications Service
	logger        *slog.Logger
}

func New(notifications Service, logger *slog.Logger) *Handler {
	return &Handler{notifications: notifications, logger: logger}
}

type countResponse struct {
	Count int `json:"count"`
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/unread-count", h.handleUnreadCount)
		r.Post("/read", h.handleMarkRead)
		r.Post("/read-all", h.handleMarkAllRead)
		r.Delete("/read", h.handleDeleteAllRead)
		r.Delete("/{id}", h.handleDelete)
		r.With(admin.RequirePermission(id.PermissionBroadcast, h.logger)).
			Post("/broadcast", h.handleBroadcast)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	items, err := h.notifications.List(ctx, requestcontext.Principal(ctx), unread)
	if err != nil {
		h.fail(ctx, w, "list notifications", err)
		return
	}
	if items == nil {
		items = []*models.Notification{}
	}
	httputil.WriteSuccess(w, http.StatusOK, "notifications listed", items)
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.notifications.UnreadCount(ctx, requestcontext.Principal(ctx))
	if err != nil {
		h.fail(ctx, w, "count notifications", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "unread notifications", countResponse{Count: n})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[MarkReadRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	n, err := h.notifications.MarkRead(ctx, requestcontext.Principal(ctx), req.ids)
	if err != nil {
		h.fail(ctx, w, "mark notifications read", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "notifications marked read", countResponse{Count: n})
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.notifications.MarkAllRead(ctx, requestcontext.Principal(ctx))
	if err != nil {
		h.fail(ctx, w, "mark all notifications read", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "notifications marked read", countResponse{Count: n})
}

func (h *Handler) handleDeleteAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.notifications.DeleteAllRead(ctx, requestcontext.Principal(ctx))
	if err != nil {
		h.fail(ctx, w, "delete read notifications", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "read notifications deleted", countResponse{Count: n})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	nid, err := id.ParseNotificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.notifications.Delete(ctx, requestcontext.Principal(ctx), nid); err != nil {
		h.fail(ctx, w, "delete notification", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "notification deleted", nil)
}

func (h *Handler) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[BroadcastRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := h.notifications.SendNotification(ctx, requestcontext.Principal(ctx), req.target, req.content(), req.userIDs)
	if err != nil {
		h.fail(ctx, w, "broadcast notification", err)
		return
	}
	message := "notifications sent"
	if res.Partial() {
		message = "notifications sent; some could not be delivered"
		h.logger.WarnContext(ctx, "broadcast partially delivered",
			"recipients", res.Recipients,
			"failed", res.Failed,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteDispatch(w, http.StatusOK, message, res, res.Sent)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

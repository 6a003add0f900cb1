package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"doccontrol/internal/distribution/models"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/httputil"
	"doccontrol/pkg/platform/middleware/admin"
	"doccontrol/pkg/requestcontext"
)

type Service interface {
	GetRules(ctx context.Context, p id.Principal, contractID id.ContractID) ([]*models.Rule, error)
	SaveRules(ctx context.Context, p id.Principal, contractID id.ContractID, rulesByUser map[id.UserID][]string) ([]*models.Rule, error)
}

type Handler struct {
	rules  Service
	logger *slog.Logger
}

func New(rules Service, logger *slog.Logger) *Handler {
	return &Handler{rules: rules, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/contracts/{contractID}/distribution-rules", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.With(admin.RequirePermission(id.PermissionManageRules, h.logger)).
			Put("/", h.handleSave)
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contractID, err := id.ParseContractID(chi.URLParam(r, "contractID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rules, err := h.rules.GetRules(ctx, requestcontext.Principal(ctx), contractID)
	if err != nil {
		h.fail(ctx, w, "get distribution rules", err)
		return
	}
	if rules == nil {
		rules = []*models.Rule{}
	}
	httputil.WriteSuccess(w, http.StatusOK, "distribution rules", rules)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contractID, err := id.ParseContractID(chi.URLParam(r, "contractID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[SaveRulesRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	rules, err := h.rules.SaveRules(ctx, requestcontext.Principal(ctx), contractID, req.byUser)
	if err != nil {
		h.fail(ctx, w, "save distribution rules", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "distribution rules saved", rules)
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

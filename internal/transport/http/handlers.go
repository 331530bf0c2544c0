package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"starkshield/internal/credential"
	"starkshield/internal/history"
	"starkshield/internal/nullifier"
	"starkshield/internal/predicate"
	dErrors "starkshield/pkg/domain-errors"
	"starkshield/pkg/platform/httputil"
)

//go:generate mockgen -source=handlers.go -destination=mocks/handler-mocks.go -package=mocks NullifierChecker HistoryRefresher

// NullifierChecker answers reuse queries against the registry.
type NullifierChecker interface {
	CheckReuse(ctx context.Context, n string) nullifier.Outcome
}

// HistoryRefresher confirms stored entries on chain.
type HistoryRefresher interface {
	Begin() history.Token
	Cancel()
	Refresh(ctx context.Context, t history.Token) ([]history.Entry, error)
}

type Handler struct {
	logger    *slog.Logger
	guard     NullifierChecker
	store     history.Store
	refresher HistoryRefresher
}

func NewHandler(guard NullifierChecker, store history.Store, refresher HistoryRefresher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, guard: guard, store: store, refresher: refresher}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials/validate", h.handleValidate)
	r.Get("/nullifiers/{nullifier}", h.handleNullifier)
	r.Get("/history", h.handleListHistory)
	r.Post("/history/refresh", h.handleRefreshHistory)
	r.Delete("/history", h.handleClearHistory)
}

// ValidateResponse echoes the predicate next to the validation result.
type ValidateResponse struct {
	Predicate predicate.Type `json:"predicate"`
	credential.ValidationResult
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	p, err := predicate.Parse(r.URL.Query().Get("predicate"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}
	doc, ok := httputil.DecodeJSON[credential.Document](w, r)
	if !ok {
		return
	}
	if *doc == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "credential document is null"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ValidateResponse{
		Predicate:        p,
		ValidationResult: credential.Validate(*doc, p),
	})
}

func (h *Handler) handleNullifier(w http.ResponseWriter, r *http.Request) {
	n := chi.URLParam(r, "nullifier")
	outcome := h.guard.CheckReuse(r.Context(), n)
	status := http.StatusOK
	if outcome.Status == nullifier.StatusError {
		h.logger.WarnContext(r.Context(), "nullifier lookup failed",
			"nullifier", n,
			"error", outcome.Err,
		)
		status = http.StatusBadGateway
	}
	httputil.WriteJSON(w, status, outcome)
}

// HistoryItem is an entry plus its explorer link.
type HistoryItem struct {
	history.Entry
	ExplorerURL string `json:"explorerUrl"`
}

type HistoryResponse struct {
	Entries []HistoryItem `json:"entries"`
}

func newHistoryResponse(entries []history.Entry) HistoryResponse {
	items := make([]HistoryItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, HistoryItem{Entry: e, ExplorerURL: e.ExplorerURL()})
	}
	return HistoryResponse{Entries: items}
}

func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newHistoryResponse(entries))
}

func (h *Handler) handleRefreshHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.refresher.Refresh(r.Context(), h.refresher.Begin())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newHistoryResponse(entries))
}

func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	h.refresher.Cancel()
	if err := h.store.Clear(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

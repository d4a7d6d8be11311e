package faq

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openshelf/openshelf/internal/platform/httpx"
)

// Handler wires the FAQ endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers FAQ routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/getFAQ", h.getFAQ)
}

type entryView struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (h *Handler) getFAQ(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Feed(r.Context())
	if err != nil {
		h.logger.Error("get faq", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView{ID: e.ID, Question: e.Question, Answer: e.Answer})
	}
	httpx.OK(w, "", views)
}

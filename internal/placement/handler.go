package placement

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-ops/meridian/internal/platform/httpx"
	"github.com/meridian-ops/meridian/internal/shared"
)

// Handler wires HTTP endpoints for placements.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the placement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers placement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products/{productID}/placements", h.handleList)
}

type placementView struct {
	Placement
	LocationPath string `json:"locationPath"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	placements, err := h.service.ListForProduct(r.Context(), actor.BusinessID, productID)
	if err != nil {
		h.logger.Error("list placements failed", slog.Any("error", err), slog.Int64("product_id", productID))
		httpx.RespondError(w, err)
		return
	}
	views := make([]placementView, 0, len(placements))
	for _, p := range placements {
		views = append(views, placementView{Placement: p, LocationPath: p.Location.Path()})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"placements": views})
}

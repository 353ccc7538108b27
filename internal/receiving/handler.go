package receiving

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-ops/meridian/internal/ledger"
	"github.com/meridian-ops/meridian/internal/observability"
	"github.com/meridian-ops/meridian/internal/platform/httpx"
	"github.com/meridian-ops/meridian/internal/shared"
)

// Handler wires HTTP endpoints for goods receipt.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler constructs the receiving handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), metrics: metrics}
}

// MountRoutes registers receiving routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/grns", h.handleCreate)
	r.Get("/grns", h.handleList)
	r.Get("/grns/{grnID}", h.handleGet)
	r.Put("/grns/{grnID}/items", h.handleReplaceItems)
	r.Post("/grns/{grnID}/complete", h.handleComplete)
	r.Post("/grns/{grnID}/cancel", h.handleCancel)
	r.Post("/inward", h.handleApplyInward)
	r.Post("/outward", h.handleApplyOutward)
}

type grnItemRequest struct {
	SKU         string  `json:"sku" validate:"required,max=64"`
	ExpectedQty int64   `json:"expectedQty" validate:"gte=0"`
	ReceivedQty int64   `json:"receivedQty" validate:"gte=0"`
	AcceptedQty int64   `json:"acceptedQty" validate:"gte=0"`
	RejectedQty int64   `json:"rejectedQty" validate:"gte=0"`
	UnitCost    float64 `json:"unitCost" validate:"gte=0"`
}

type createGRNRequest struct {
	OrderID int64            `json:"orderId" validate:"required,gt=0"`
	Items   []grnItemRequest `json:"items" validate:"omitempty,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	var req createGRNRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	grn, err := h.service.Create(r.Context(), CreateInput{
		BusinessID: actor.BusinessID,
		OrderID:    req.OrderID,
		Items:      toItems(req.Items),
		ActorID:    actor.ID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("grn created", slog.String("grn_no", grn.GRNNo), slog.Int64("order_id", grn.OrderID))
	httpx.JSON(w, http.StatusCreated, grn)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	grns, err := h.service.List(r.Context(), actor.BusinessID,
		Status(r.URL.Query().Get("status")), shared.PageRequest{Page: page, PerPage: perPage})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grns": grns})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	grnID, err := parseGRNID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid grn id")
		return
	}
	grn, err := h.service.Get(r.Context(), actor.BusinessID, grnID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grn)
}

type replaceItemsRequest struct {
	Items []grnItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleReplaceItems(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	grnID, err := parseGRNID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid grn id")
		return
	}
	var req replaceItemsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	grn, err := h.service.ReplaceItems(r.Context(), actor.BusinessID, grnID, toItems(req.Items), actor.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grn)
}

type completeRequest struct {
	ShelfID int64 `json:"shelfId" validate:"required,gt=0"`
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	grnID, err := parseGRNID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid grn id")
		return
	}
	var req completeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Complete(r.Context(), actor.BusinessID, grnID, req.ShelfID, actor.ID)
	if err != nil {
		h.logger.Error("grn completion failed", slog.Any("error", err), slog.Int64("grn_id", grnID))
		httpx.RespondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.GRNCompleted(len(result.ItemResults))
	}
	h.logger.Info("grn completed",
		slog.String("grn_no", result.GRNNo),
		slog.Int("lines", len(result.ItemResults)))
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	grnID, err := parseGRNID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid grn id")
		return
	}
	result, err := h.service.Cancel(r.Context(), actor.BusinessID, grnID, actor.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type inwardRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Qty       int64  `json:"qty" validate:"required,gt=0"`
	ShelfID   int64  `json:"shelfId" validate:"required,gt=0"`
	Reference string `json:"reference" validate:"max=100"`
}

func (h *Handler) handleApplyInward(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	var req inwardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.ApplyInward(r.Context(), InwardInput{
		BusinessID: actor.BusinessID,
		ProductID:  req.ProductID,
		Qty:        req.Qty,
		ShelfID:    req.ShelfID,
		Reference:  req.Reference,
		ActorID:    actor.ID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type outwardRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Qty       int64  `json:"qty" validate:"required,gt=0"`
	ShelfID   int64  `json:"shelfId" validate:"required,gt=0"`
	Kind      string `json:"kind" validate:"omitempty,oneof=outward-manual outward-auto"`
	Reason    string `json:"reason" validate:"max=200"`
	Reference string `json:"reference" validate:"max=100"`
}

func (h *Handler) handleApplyOutward(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	var req outwardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.ApplyOutward(r.Context(), OutwardInput{
		BusinessID: actor.BusinessID,
		ProductID:  req.ProductID,
		Qty:        req.Qty,
		ShelfID:    req.ShelfID,
		Kind:       ledger.Kind(req.Kind),
		Reason:     req.Reason,
		Reference:  req.Reference,
		ActorID:    actor.ID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func toItems(reqs []grnItemRequest) []Item {
	items := make([]Item, 0, len(reqs))
	for _, it := range reqs {
		items = append(items, Item{
			SKU:         it.SKU,
			ExpectedQty: it.ExpectedQty,
			ReceivedQty: it.ReceivedQty,
			AcceptedQty: it.AcceptedQty,
			RejectedQty: it.RejectedQty,
			UnitCost:    it.UnitCost,
		})
	}
	return items
}

func parseGRNID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "grnID"), 10, 64)
}

package hierarchy

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-ops/meridian/internal/platform/httpx"
	"github.com/meridian-ops/meridian/internal/shared"
)

// Handler wires HTTP endpoints for the warehouse hierarchy.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the hierarchy handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers hierarchy routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/warehouses", h.handleCreateWarehouse)
	r.Post("/warehouses/grid", h.handleCreateGrid)
	r.Get("/warehouses/{warehouseID}/stats", h.handleWarehouseStats)
	r.Post("/warehouses/{warehouseID}/zones", h.handleCreateZone)
	r.Get("/warehouses/{warehouseID}/zones", h.handleListZones)
	r.Post("/zones/{zoneID}/racks", h.handleCreateRack)
	r.Get("/zones/{zoneID}/racks", h.handleListRacks)
	r.Post("/racks/{rackID}/shelves", h.handleCreateShelf)
	r.Get("/racks/{rackID}/shelves", h.handleListShelves)
	r.Patch("/{kind}/{id}/name", h.handleRename)
	r.Delete("/{kind}/{id}", h.handleDelete)
	r.Post("/{kind}/{id}/reposition", h.handleReposition)
	r.Post("/{kind}/{id}/move", h.handleMove)
}

type createWarehouseRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Address string `json:"address" validate:"max=500"`
}

func (h *Handler) handleCreateWarehouse(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	var req createWarehouseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	warehouse, err := h.service.CreateWarehouse(r.Context(), actor.BusinessID, req.Name, req.Address)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, warehouse)
}

type createGridRequest struct {
	Name           string `json:"name" validate:"required,max=120"`
	Zones          int    `json:"zones" validate:"required,gt=0"`
	RacksPerZone   int    `json:"racksPerZone" validate:"required,gt=0"`
	ShelvesPerRack int    `json:"shelvesPerRack" validate:"required,gt=0"`
}

func (h *Handler) handleCreateGrid(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	var req createGridRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.CreateGrid(r.Context(), actor.BusinessID, req.Name, GridCounts{
		Zones:          req.Zones,
		RacksPerZone:   req.RacksPerZone,
		ShelvesPerRack: req.ShelvesPerRack,
	})
	if err != nil {
		h.logger.Error("grid creation failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("warehouse grid created",
		slog.Int64("warehouse_id", result.WarehouseID),
		slog.Int("entities", result.TotalEntities))
	httpx.JSON(w, http.StatusCreated, result)
}

type createChildRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

func (h *Handler) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	warehouseID, err := parseID(r, "warehouseID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid warehouse id")
		return
	}
	req, ok := h.decodeChild(w, r)
	if !ok {
		return
	}
	zone, err := h.service.CreateZone(r.Context(), actor.BusinessID, warehouseID, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, zone)
}

func (h *Handler) handleCreateRack(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	zoneID, err := parseID(r, "zoneID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid zone id")
		return
	}
	req, ok := h.decodeChild(w, r)
	if !ok {
		return
	}
	rack, err := h.service.CreateRack(r.Context(), actor.BusinessID, zoneID, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rack)
}

func (h *Handler) handleCreateShelf(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	rackID, err := parseID(r, "rackID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid rack id")
		return
	}
	req, ok := h.decodeChild(w, r)
	if !ok {
		return
	}
	shelf, err := h.service.CreateShelf(r.Context(), actor.BusinessID, rackID, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, shelf)
}

func (h *Handler) handleWarehouseStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	warehouseID, err := parseID(r, "warehouseID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid warehouse id")
		return
	}
	stats, err := h.service.WarehouseStats(r.Context(), actor.BusinessID, warehouseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleListZones(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	warehouseID, err := parseID(r, "warehouseID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid warehouse id")
		return
	}
	zones, err := h.service.ListZones(r.Context(), actor.BusinessID, warehouseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"zones": zones})
}

func (h *Handler) handleListRacks(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	zoneID, err := parseID(r, "zoneID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid zone id")
		return
	}
	racks, err := h.service.ListRacks(r.Context(), actor.BusinessID, zoneID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"racks": racks})
}

func (h *Handler) handleListShelves(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	rackID, err := parseID(r, "rackID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid rack id")
		return
	}
	shelves, err := h.service.ListShelves(r.Context(), actor.BusinessID, rackID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"shelves": shelves})
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	kind, id, err := parseKindAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, ok := h.decodeChild(w, r)
	if !ok {
		return
	}
	if err := h.service.Rename(r.Context(), actor.BusinessID, kind, id, req.Name); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"renamed": true})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	kind, id, err := parseKindAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), actor.BusinessID, kind, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type repositionRequest struct {
	ParentID    int64 `json:"parentId" validate:"required,gt=0"`
	OldPosition int   `json:"oldPosition" validate:"required,gt=0"`
	NewPosition int   `json:"newPosition" validate:"required,gt=0"`
}

func (h *Handler) handleReposition(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	kind, id, err := parseKindAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req repositionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Reposition(r.Context(), actor.BusinessID, kind, id, req.ParentID, req.OldPosition, req.NewPosition); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"position": req.NewPosition})
}

type moveRequest struct {
	SourceParentID int64 `json:"sourceParentId" validate:"required,gt=0"`
	DestParentID   int64 `json:"destParentId" validate:"required,gt=0"`
	TargetPosition *int  `json:"targetPosition" validate:"omitempty,gt=0"`
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	kind, id, err := parseKindAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req moveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pos, err := h.service.MoveToParent(r.Context(), actor.BusinessID, kind, id, req.SourceParentID, req.DestParentID, req.TargetPosition)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"position": pos})
}

func (h *Handler) decodeChild(w http.ResponseWriter, r *http.Request) (createChildRequest, bool) {
	var req createChildRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func parseID(r *http.Request, param string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, param), 10, 64)
}

func parseKindAndID(r *http.Request) (Kind, int64, error) {
	id, err := parseID(r, "id")
	if err != nil {
		return "", 0, shared.ValidationErrorf("invalid id")
	}
	switch chi.URLParam(r, "kind") {
	case "warehouses":
		return KindWarehouse, id, nil
	case "zones":
		return KindZone, id, nil
	case "racks":
		return KindRack, id, nil
	case "shelves":
		return KindShelf, id, nil
	}
	return "", 0, shared.ValidationErrorf("unknown container kind %q", chi.URLParam(r, "kind"))
}

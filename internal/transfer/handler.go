package transfer

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stocktrail/stocktrail/internal/platform/httpx"
	"github.com/stocktrail/stocktrail/internal/shared"
	"github.com/stocktrail/stocktrail/internal/stock"
	"github.com/stocktrail/stocktrail/internal/warehouse"
)

// Handler wires HTTP endpoints for the transfer module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transfers", h.handleCreate)
	r.Get("/transfers/{id}", h.handleGet)
	r.Post("/transfers/{id}/items/{detailID}/receive", h.handleReceive)
	r.Post("/transfers/{id}/complete", h.handleComplete)
	r.Post("/transfers/{id}/cancel", h.handleCancel)
}

type createItemForm struct {
	UnitID    int64  `json:"unitId" validate:"gt=0"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
	Condition string `json:"condition" validate:"omitempty,oneof=good damaged needs_inspection"`
	Notes     string `json:"notes"`
}

type createForm struct {
	Number                 string           `json:"number"`
	Type                   string           `json:"type" validate:"oneof=internal external"`
	SourceWarehouseID      int64            `json:"sourceWarehouseId" validate:"gt=0"`
	DestinationWarehouseID int64            `json:"destinationWarehouseId"`
	CabinetID              int64            `json:"cabinetId"`
	Priority               string           `json:"priority"`
	Notes                  string           `json:"notes"`
	Items                  []createItemForm `json:"items" validate:"min=1,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var form createForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{
		Number:                 form.Number,
		Type:                   Type(form.Type),
		SourceWarehouseID:      form.SourceWarehouseID,
		DestinationWarehouseID: form.DestinationWarehouseID,
		CabinetID:              form.CabinetID,
		Priority:               form.Priority,
		Notes:                  form.Notes,
	}
	for _, item := range form.Items {
		input.Items = append(input.Items, ItemInput{
			UnitID:    item.UnitID,
			Quantity:  item.Quantity,
			Condition: ItemCondition(item.Condition),
			Notes:     item.Notes,
		})
	}
	created, err := h.service.Create(r.Context(), identity, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transfer id")
		return
	}
	t, details, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transfer": t, "details": details})
}

type receiveForm struct {
	Condition string `json:"condition" validate:"omitempty,oneof=good damaged needs_inspection"`
	Notes     string `json:"notes"`
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	transferID, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transfer id")
		return
	}
	detailID, ok := pathID(r, "detailID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid detail id")
		return
	}
	var form receiveForm
	if err := httpx.DecodeJSON(r, &form); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	detail, err := h.service.ReceiveItem(r.Context(), identity, transferID, detailID, ReceiveInput{
		Condition: ItemCondition(form.Condition),
		Notes:     form.Notes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

type costForm struct {
	Barcode       int32   `json:"barcode" validate:"gt=0"`
	TotalQuantity int     `json:"totalQuantity" validate:"gt=0"`
	TotalCost     float64 `json:"totalCost" validate:"gte=0"`
}

type completeForm struct {
	Costs []costForm `json:"costs" validate:"dive"`
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	transferID, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transfer id")
		return
	}
	var form completeForm
	if err := httpx.DecodeJSON(r, &form); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	costs := make([]CostEntry, 0, len(form.Costs))
	for _, c := range form.Costs {
		costs = append(costs, CostEntry{Barcode: c.Barcode, TotalQuantity: c.TotalQuantity, TotalCost: c.TotalCost})
	}
	result, err := h.service.Complete(r.Context(), identity, transferID, costs)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	transferID, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transfer id")
		return
	}
	cancelled, err := h.service.Cancel(r.Context(), identity, transferID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cancelled)
}

// respondError distinguishes denied (fix the input) from failed (retry or
// escalate), so operators know what to do.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, stock.ErrNotFound), errors.Is(err, warehouse.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrLocked), errors.Is(err, ErrCancelled),
		errors.Is(err, ErrAlreadyReceived), errors.Is(err, ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		h.logger.Error("transfer request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

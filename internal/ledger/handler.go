package ledger

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/linen-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// IdempotencyHeader carries the optional client key of a posting.
const IdempotencyHeader = "Idempotency-Key"

// Handler wires HTTP endpoints for the ledger module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transactions", h.postTransaction)
	r.Get("/transactions/{transactionID}", h.getTransaction)
	r.Post("/transactions/{transactionID}/void", h.voidTransaction)
	r.Get("/balances", h.getBalances)
	r.Get("/properties/{propertyID}/vendor-pending", h.getVendorPending)
}

type entryRequest struct {
	LocationID  uuid.UUID `json:"location_id"`
	LinenItemID uuid.UUID `json:"linen_item_id"`
	Condition   string    `json:"condition" validate:"omitempty,oneof=CLEAN SOILED REWASH DAMAGED"`
	QtyDelta    int64     `json:"qty_delta" validate:"ne=0,min=-1000000000,max=1000000000"`
}

type postRequest struct {
	Type       string         `json:"type" validate:"required,oneof=DISPATCH RECEIVE PROCURE DISCARD"`
	PropertyID uuid.UUID      `json:"property_id"`
	VendorID   *uuid.UUID     `json:"vendor_id"`
	Entries    []entryRequest `json:"entries" validate:"required,min=1,max=2,dive"`
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type postResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
}

func (h *Handler) postTransaction(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	entries := make([]EntryInput, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, EntryInput{
			LocationID:  e.LocationID,
			LinenItemID: e.LinenItemID,
			Condition:   Condition(e.Condition),
			QtyDelta:    e.QtyDelta,
		})
	}
	id, err := h.service.PostTransaction(r.Context(), PostRequest{
		Type:           TransactionType(req.Type),
		PropertyID:     req.PropertyID,
		VendorID:       req.VendorID,
		Entries:        entries,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		h.fail(w, "post transaction", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, postResponse{TransactionID: id})
}

func (h *Handler) voidTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "transactionID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	res := h.service.VoidTransaction(r.Context(), id, req.Reason)
	httpx.JSON(w, httpx.StatusFor(res), res)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "transactionID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		h.fail(w, "get transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) getBalances(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBalanceFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.GetBalance(r.Context(), filter)
	if err != nil {
		h.fail(w, "get balances", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) getVendorPending(w http.ResponseWriter, r *http.Request) {
	propertyID, err := pathUUID(r, "propertyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpx.RespondError(w, fmt.Errorf("%w: invalid limit", shared.ErrValidation))
			return
		}
	}
	rows, err := h.service.GetTopVendorPending(r.Context(), propertyID, limit)
	if err != nil {
		h.fail(w, "get vendor pending", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func parseBalanceFilter(r *http.Request) (BalanceFilter, error) {
	q := r.URL.Query()
	var (
		filter BalanceFilter
		err    error
	)
	if filter.PropertyID, err = queryUUID(q.Get("property_id"), "property_id"); err != nil {
		return filter, err
	}
	if filter.LocationID, err = queryUUID(q.Get("location_id"), "location_id"); err != nil {
		return filter, err
	}
	if filter.LinenItemID, err = queryUUID(q.Get("linen_item_id"), "linen_item_id"); err != nil {
		return filter, err
	}
	if raw := q.Get("condition"); raw != "" {
		c := Condition(raw)
		filter.Condition = &c
	}
	return filter, nil
}

func queryUUID(raw, name string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s", shared.ErrValidation, name)
	}
	return &id, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if code := shared.CodeOf(err); code == shared.CodeStorage || code == shared.CodeInternal {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", shared.ErrValidation, name)
	}
	return id, nil
}

package masters

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/linen-ledger/internal/access"
	"github.com/odyssey-erp/linen-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// Handler wires HTTP endpoints for the masters module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	access    access.Middleware
	validator *validator.Validate
}

// NewHandler constructs masters handler.
func NewHandler(logger *slog.Logger, service *Service, mw access.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, access: mw, validator: validator.New()}
}

// MountRoutes registers masters routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/properties/{propertyID}/locations", h.listLocations)
	r.Post("/properties/{propertyID}/default-locations", h.ensureDefaults)
	r.Post("/properties/{propertyID}/vendors/{vendorID}/location", h.ensureVendorLocation)
	r.Post("/locations/{locationID}/deactivate", h.deactivateLocation)
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireRole(access.RoleAdmin))
		r.Post("/self-heal", h.selfHeal)
	})
}

type vendorLocationRequest struct {
	VendorName string `json:"vendor_name" validate:"max=200"`
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	propertyID, err := pathUUID(r, "propertyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	locations, err := h.service.ListLocations(r.Context(), propertyID)
	if err != nil {
		h.fail(w, "list locations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, locations)
}

func (h *Handler) ensureDefaults(w http.ResponseWriter, r *http.Request) {
	propertyID, err := pathUUID(r, "propertyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.EnsureDefaultLocationsForProperty(r.Context(), propertyID); err != nil {
		h.fail(w, "ensure default locations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.Success())
}

func (h *Handler) ensureVendorLocation(w http.ResponseWriter, r *http.Request) {
	propertyID, err := pathUUID(r, "propertyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	vendorID, err := pathUUID(r, "vendorID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req vendorLocationRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
			return
		}
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.service.EnsureVendorLocationForPropertyVendor(r.Context(), propertyID, vendorID, req.VendorName); err != nil {
		h.fail(w, "ensure vendor location", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.Success())
}

func (h *Handler) deactivateLocation(w http.ResponseWriter, r *http.Request) {
	locationID, err := pathUUID(r, "locationID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeactivateLocation(r.Context(), locationID); err != nil {
		h.fail(w, "deactivate location", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.Success())
}

func (h *Handler) selfHeal(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.MastersSelfHeal(r.Context())
	if err != nil {
		h.fail(w, "masters self-heal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
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

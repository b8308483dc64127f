package masters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// CatalogRepository is the storage used by self-heal and the masters service.
type CatalogRepository interface {
	GetProperty(ctx context.Context, id uuid.UUID) (Property, error)
	GetVendor(ctx context.Context, id uuid.UUID) (Vendor, error)
	GetLocation(ctx context.Context, id uuid.UUID) (Location, error)
	FindVendorLocation(ctx context.Context, propertyID, vendorID uuid.UUID) (Location, error)
	ListLocations(ctx context.Context, propertyID uuid.UUID) ([]Location, error)
	ListActiveProperties(ctx context.Context) ([]Property, error)
	ListActiveVendors(ctx context.Context) ([]Vendor, error)
	InsertLocation(ctx context.Context, loc Location) error
	// DeactivateLocation flips a location inactive only while it holds no stock, as one
	// atomic step with respect to postings.
	DeactivateLocation(ctx context.Context, id uuid.UUID) error
}

// SelfHeal creates missing reference locations. Every operation is safe to repeat
// and to run concurrently with itself.
type SelfHeal struct {
	repo        CatalogRepository
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewSelfHeal builds SelfHeal. concurrency bounds the sweep fan-out.
func NewSelfHeal(repo CatalogRepository, logger *slog.Logger, concurrency int) *SelfHeal {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &SelfHeal{repo: repo, logger: logger, concurrency: concurrency, now: time.Now}
}

// EnsureDefaultLocationsForProperty creates each missing default location of the property
// and returns how many rows it inserted.
func (h *SelfHeal) EnsureDefaultLocationsForProperty(ctx context.Context, propertyID uuid.UUID) (int, error) {
	if _, err := h.repo.GetProperty(ctx, propertyID); err != nil {
		return 0, err
	}
	existing, err := h.repo.ListLocations(ctx, propertyID)
	if err != nil {
		return 0, err
	}
	have := make(map[LocationKind]struct{}, len(existing))
	for _, loc := range existing {
		have[loc.Kind] = struct{}{}
	}
	created := 0
	for _, def := range DefaultLocationCatalog {
		if _, ok := have[def.Kind]; ok {
			continue
		}
		ok, err := h.create(ctx, Location{
			ID:         uuid.New(),
			PropertyID: propertyID,
			Kind:       def.Kind,
			Name:       def.Name,
			IsActive:   true,
			CreatedAt:  h.now().UTC(),
		})
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// EnsureVendorLocationForPropertyVendor creates the vendor location of the (property, vendor)
// pair when missing. A blank vendorName falls back to the stored vendor name.
func (h *SelfHeal) EnsureVendorLocationForPropertyVendor(ctx context.Context, propertyID, vendorID uuid.UUID, vendorName string) (bool, error) {
	if _, err := h.repo.GetProperty(ctx, propertyID); err != nil {
		return false, err
	}
	if strings.TrimSpace(vendorName) == "" {
		vendor, err := h.repo.GetVendor(ctx, vendorID)
		if err != nil {
			return false, err
		}
		vendorName = vendor.Name
	}
	if strings.TrimSpace(vendorName) == "" {
		return false, fmt.Errorf("%w: vendor name required", shared.ErrValidation)
	}
	_, err := h.repo.FindVendorLocation(ctx, propertyID, vendorID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return false, err
	}
	vid := vendorID
	return h.create(ctx, Location{
		ID:         uuid.New(),
		PropertyID: propertyID,
		VendorID:   &vid,
		Kind:       KindVendor,
		Name:       VendorLocationName(vendorName),
		IsActive:   true,
		CreatedAt:  h.now().UTC(),
	})
}

// SweepAll ensures defaults for every active property and a vendor location for every
// active property × active vendor pair.
func (h *SelfHeal) SweepAll(ctx context.Context) (SweepReport, error) {
	properties, err := h.repo.ListActiveProperties(ctx)
	if err != nil {
		return SweepReport{}, err
	}
	vendors, err := h.repo.ListActiveVendors(ctx)
	if err != nil {
		return SweepReport{}, err
	}

	var created atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for _, property := range properties {
		g.Go(func() error {
			n, err := h.EnsureDefaultLocationsForProperty(gctx, property.ID)
			created.Add(int64(n))
			if err != nil {
				return fmt.Errorf("property %s: %w", property.Code, err)
			}
			for _, vendor := range vendors {
				ok, err := h.EnsureVendorLocationForPropertyVendor(gctx, property.ID, vendor.ID, vendor.Name)
				if err != nil {
					return fmt.Errorf("property %s vendor %s: %w", property.Code, vendor.Name, err)
				}
				if ok {
					created.Add(1)
				}
			}
			return nil
		})
	}
	report := SweepReport{Properties: len(properties), Vendors: len(vendors)}
	err = g.Wait()
	report.Created = int(created.Load())
	if err != nil {
		return report, err
	}
	h.logger.Info("masters self-heal sweep",
		slog.Int("properties", report.Properties),
		slog.Int("vendors", report.Vendors),
		slog.Int("created", report.Created))
	return report, nil
}

// create inserts loc; losing a uniqueness race means the row exists, which is the goal.
func (h *SelfHeal) create(ctx context.Context, loc Location) (bool, error) {
	err := h.repo.InsertLocation(ctx, loc)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, shared.ErrConflict):
		h.logger.Debug("location already ensured",
			slog.String("property_id", loc.PropertyID.String()),
			slog.String("kind", string(loc.Kind)))
		return false, nil
	default:
		return false, err
	}
}

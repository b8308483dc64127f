package masters

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/odyssey-erp/linen-ledger/internal/access"
	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// Invalidator signals that cached report views are stale.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsRecorder receives self-heal counters.
type MetricsRecorder interface {
	ObserveSelfHeal(created int)
}

// ServiceParams groups the collaborators of Service.
type ServiceParams struct {
	Repo        CatalogRepository
	SelfHeal    *SelfHeal
	Access      access.Checker
	Invalidator Invalidator
	Audit       AuditPort
	Metrics     MetricsRecorder
	Logger      *slog.Logger
}

// Service exposes masters operations to callers after access checks.
type Service struct {
	repo        CatalogRepository
	heal        *SelfHeal
	access      access.Checker
	invalidator Invalidator
	audit       AuditPort
	metrics     MetricsRecorder
	logger      *slog.Logger
}

// NewService builds Service.
func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checker := p.Access
	if checker == nil {
		checker = access.Policy{}
	}
	return &Service{
		repo:        p.Repo,
		heal:        p.SelfHeal,
		access:      checker,
		invalidator: p.Invalidator,
		audit:       p.Audit,
		metrics:     p.Metrics,
		logger:      logger,
	}
}

// LocationsPath is the report view listing a property's locations.
func LocationsPath(propertyID uuid.UUID) string {
	return fmt.Sprintf("/masters/properties/%s/locations", propertyID)
}

// EnsureDefaultLocationsForProperty creates the default locations of a property.
func (s *Service) EnsureDefaultLocationsForProperty(ctx context.Context, propertyID uuid.UUID) error {
	actor, err := s.requireScopedManager(ctx, propertyID)
	if err != nil {
		return err
	}
	created, err := s.heal.EnsureDefaultLocationsForProperty(ctx, propertyID)
	if err != nil {
		return err
	}
	s.afterHeal(ctx, actor, "masters:ensure_defaults", propertyID.String(), created, LocationsPath(propertyID))
	return nil
}

// EnsureVendorLocationForPropertyVendor creates the vendor location of a (property, vendor) pair.
func (s *Service) EnsureVendorLocationForPropertyVendor(ctx context.Context, propertyID, vendorID uuid.UUID, vendorName string) error {
	actor, err := s.requireScopedManager(ctx, propertyID)
	if err != nil {
		return err
	}
	ok, err := s.heal.EnsureVendorLocationForPropertyVendor(ctx, propertyID, vendorID, vendorName)
	if err != nil {
		return err
	}
	created := 0
	if ok {
		created = 1
	}
	s.afterHeal(ctx, actor, "masters:ensure_vendor_location", propertyID.String()+":"+vendorID.String(), created, LocationsPath(propertyID))
	return nil
}

// MastersSelfHeal runs the full repair sweep. Administrators only.
func (s *Service) MastersSelfHeal(ctx context.Context) (SweepReport, error) {
	actor, err := s.access.RequireUser(ctx)
	if err != nil {
		return SweepReport{}, err
	}
	if err := s.access.RequireRole(actor, access.RoleAdmin); err != nil {
		return SweepReport{}, err
	}
	report, err := s.heal.SweepAll(ctx)
	if err != nil {
		return report, err
	}
	s.afterHeal(ctx, actor, "masters:self_heal", "all", report.Created, "/masters")
	return report, nil
}

// ListLocations returns every location of a property, active or not.
func (s *Service) ListLocations(ctx context.Context, propertyID uuid.UUID) ([]Location, error) {
	actor, err := s.access.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequirePropertyAccess(actor, propertyID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetProperty(ctx, propertyID); err != nil {
		return nil, err
	}
	return s.repo.ListLocations(ctx, propertyID)
}

// DeactivateLocation disables a location once every balance held there is zero.
func (s *Service) DeactivateLocation(ctx context.Context, locationID uuid.UUID) error {
	loc, err := s.repo.GetLocation(ctx, locationID)
	if err != nil {
		return err
	}
	actor, err := s.requireScopedManager(ctx, loc.PropertyID)
	if err != nil {
		return err
	}
	if !loc.IsActive {
		return nil
	}
	if err := s.repo.DeactivateLocation(ctx, locationID); err != nil {
		return err
	}
	s.record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "masters:deactivate_location",
		Entity:   "location",
		EntityID: locationID.String(),
		Meta:     map[string]any{"property_id": loc.PropertyID.String(), "kind": string(loc.Kind)},
	})
	s.invalidate(ctx, LocationsPath(loc.PropertyID))
	return nil
}

func (s *Service) requireScopedManager(ctx context.Context, propertyID uuid.UUID) (access.Actor, error) {
	actor, err := s.access.RequireUser(ctx)
	if err != nil {
		return access.Actor{}, err
	}
	if err := s.access.RequireRole(actor, access.RoleAdmin, access.RoleManager); err != nil {
		return access.Actor{}, err
	}
	if err := s.access.RequirePropertyAccess(actor, propertyID); err != nil {
		return access.Actor{}, err
	}
	return actor, nil
}

func (s *Service) afterHeal(ctx context.Context, actor access.Actor, action, entityID string, created int, paths ...string) {
	if s.metrics != nil {
		s.metrics.ObserveSelfHeal(created)
	}
	if created == 0 {
		return
	}
	s.record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "location",
		EntityID: entityID,
		Meta:     map[string]any{"created": created},
	})
	s.invalidate(ctx, paths...)
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("masters audit", slog.String("action", log.Action), slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, paths ...string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, paths...); err != nil {
		s.logger.Warn("masters view invalidation", slog.Any("paths", paths), slog.Any("error", err))
	}
}

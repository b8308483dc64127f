package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/odyssey-erp/linen-ledger/internal/access"
	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// IdempotencyPort claims request keys so a retried post is not recorded twice.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Invalidator signals that cached report views are stale.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ViewCache serves report views cached under a versioned path.
type ViewCache interface {
	FetchJSON(ctx context.Context, path string, variant string, dest any, loader func(context.Context) (any, error)) error
}

// MetricsRecorder receives ledger counters.
type MetricsRecorder interface {
	ObservePosting(txType string, code string)
	ObserveVoid(code string)
}

// ServiceParams groups the collaborators of Service.
type ServiceParams struct {
	Store       Store
	Catalog     Catalog
	Access      access.Checker
	Idempotency IdempotencyPort
	Invalidator Invalidator
	Views       ViewCache
	Audit       AuditPort
	Metrics     MetricsRecorder
	Logger      *slog.Logger
	// VendorPendingLimit overrides DefaultVendorPendingLimit when positive.
	VendorPendingLimit int
}

// Service is the ledger entry point. Every operation checks access before touching
// storage.
type Service struct {
	poster      *Poster
	voids       *VoidEngine
	aggregator  *Aggregator
	store       Store
	access      access.Checker
	idempotency IdempotencyPort
	invalidator Invalidator
	views       ViewCache
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
		poster:      NewPoster(p.Store, p.Catalog),
		voids:       NewVoidEngine(p.Store),
		aggregator:  NewAggregator(p.Store, p.VendorPendingLimit),
		store:       p.Store,
		access:      checker,
		idempotency: p.Idempotency,
		invalidator: p.Invalidator,
		views:       p.Views,
		audit:       p.Audit,
		metrics:     p.Metrics,
		logger:      logger,
	}
}

// BalancesPath is the balance report view.
const BalancesPath = "/ledger/balances"

// TransactionPath is the view of a single transaction.
func TransactionPath(id uuid.UUID) string {
	return fmt.Sprintf("/ledger/transactions/%s", id)
}

// VendorPendingPath is the vendor-pending view of a property.
func VendorPendingPath(propertyID uuid.UUID) string {
	return fmt.Sprintf("/ledger/properties/%s/vendor-pending", propertyID)
}

// PostRequest is a posting on behalf of the authenticated actor.
type PostRequest struct {
	Type           TransactionType
	PropertyID     uuid.UUID
	VendorID       *uuid.UUID
	Entries        []EntryInput
	IdempotencyKey string
}

// PostTransaction records a new transaction after role and property-scope checks.
func (s *Service) PostTransaction(ctx context.Context, req PostRequest) (uuid.UUID, error) {
	actor, err := s.access.RequireUser(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.access.RequireRole(actor, access.RoleAdmin, access.RoleManager, access.RoleStaff); err != nil {
		return uuid.Nil, err
	}
	if err := s.access.RequirePropertyAccess(actor, req.PropertyID); err != nil {
		return uuid.Nil, err
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, req.IdempotencyKey, "ledger:post"); err != nil {
			return uuid.Nil, err
		}
	}

	id, err := s.poster.Post(ctx, PostInput{
		Type:       req.Type,
		PropertyID: req.PropertyID,
		ActorID:    actor.ID,
		VendorID:   req.VendorID,
		Entries:    req.Entries,
	})
	if s.metrics != nil {
		s.metrics.ObservePosting(string(req.Type), string(shared.CodeOf(err)))
	}
	if err != nil {
		s.release(ctx, req.IdempotencyKey)
		return uuid.Nil, err
	}

	s.record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "ledger:post",
		Entity:   "ledger_transaction",
		EntityID: id.String(),
		Meta:     map[string]any{"type": string(req.Type), "property_id": req.PropertyID.String()},
	})
	s.invalidate(ctx, BalancesPath, VendorPendingPath(req.PropertyID), TransactionPath(id))
	return id, nil
}

// VoidTransaction reverses a transaction. Administrators only. The outcome is always
// a Result; failures carry their machine code.
func (s *Service) VoidTransaction(ctx context.Context, transactionID uuid.UUID, reason string) shared.Result {
	res := s.void(ctx, transactionID, reason)
	if s.metrics != nil {
		code := ""
		if res.Error != nil {
			code = string(res.Error.Code)
		}
		s.metrics.ObserveVoid(code)
	}
	return res
}

func (s *Service) void(ctx context.Context, transactionID uuid.UUID, reason string) shared.Result {
	actor, err := s.access.RequireUser(ctx)
	if err != nil {
		return shared.Failure(err)
	}
	if err := s.access.RequireRole(actor, access.RoleAdmin); err != nil {
		return shared.Failure(err)
	}
	reversal, err := s.voids.Void(ctx, transactionID, actor.ID, reason)
	if err != nil {
		if code := shared.CodeOf(err); code == shared.CodeStorage || code == shared.CodeInternal {
			s.logger.Error("ledger void failed", slog.String("transaction_id", transactionID.String()), slog.Any("error", err))
		}
		return shared.Failure(err)
	}

	s.record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "ledger:void",
		Entity:   "ledger_transaction",
		EntityID: transactionID.String(),
		Meta:     map[string]any{"reason": reason, "reversal_id": reversal.ID.String()},
	})
	s.invalidate(ctx, BalancesPath, VendorPendingPath(reversal.PropertyID),
		TransactionPath(transactionID), TransactionPath(reversal.ID))
	return shared.Success()
}

// TransactionView is a header together with its entries.
type TransactionView struct {
	Transaction Transaction `json:"transaction"`
	Entries     []Entry     `json:"entries"`
}

// GetTransaction loads a transaction within the actor's property scope.
func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (TransactionView, error) {
	actor, err := s.access.RequireUser(ctx)
	if err != nil {
		return TransactionView{}, err
	}
	header, err := s.store.GetHeader(ctx, id)
	if err != nil {
		return TransactionView{}, err
	}
	if err := s.access.RequirePropertyAccess(actor, header.PropertyID); err != nil {
		return TransactionView{}, err
	}
	entries, err := s.store.GetEntries(ctx, id)
	if err != nil {
		return TransactionView{}, err
	}
	return TransactionView{Transaction: header, Entries: entries}, nil
}

// GetBalance returns derived balances. Non-administrators must name a property in scope.
func (s *Service) GetBalance(ctx context.Context, filter BalanceFilter) ([]BalanceRow, error) {
	actor, err := s.access.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		propertyID := uuid.Nil
		if filter.PropertyID != nil {
			propertyID = *filter.PropertyID
		}
		if err := s.access.RequirePropertyAccess(actor, propertyID); err != nil {
			return nil, err
		}
	}
	return s.aggregator.Balance(ctx, filter)
}

// GetTopVendorPending ranks the vendors holding stock for a property.
func (s *Service) GetTopVendorPending(ctx context.Context, propertyID uuid.UUID, limit int) ([]VendorPending, error) {
	actor, err := s.access.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequirePropertyAccess(actor, propertyID); err != nil {
		return nil, err
	}
	if s.views == nil {
		return s.aggregator.TopVendorPending(ctx, propertyID, limit)
	}
	var rows []VendorPending
	err = s.views.FetchJSON(ctx, VendorPendingPath(propertyID), strconv.Itoa(limit), &rows, func(ctx context.Context) (any, error) {
		return s.aggregator.TopVendorPending(ctx, propertyID, limit)
	})
	return rows, err
}

func (s *Service) release(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Delete(ctx, key); err != nil {
		s.logger.Warn("ledger idempotency release", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("ledger audit", slog.String("action", log.Action), slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, paths ...string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, paths...); err != nil {
		s.logger.Warn("ledger view invalidation", slog.Any("paths", paths), slog.Any("error", err))
	}
}

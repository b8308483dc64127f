// Package ledger is the append-only record of linen movements. Entries are never
// updated or deleted; a void is a compensating reversal and every balance is derived
// by summing the log.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType enumerates supported linen movements.
type TransactionType string

const (
	// TypeDispatch sends linen from the property to a vendor.
	TypeDispatch TransactionType = "DISPATCH"
	// TypeReceive brings linen back from a vendor.
	TypeReceive TransactionType = "RECEIVE"
	// TypeProcure adds new stock with no source.
	TypeProcure TransactionType = "PROCURE"
	// TypeDiscard removes stock permanently.
	TypeDiscard TransactionType = "DISCARD"
	// TypeVoidReversal negates the entries of a voided transaction.
	TypeVoidReversal TransactionType = "VOID_REVERSAL"
)

// IsValid reports whether t is a known type.
func (t TransactionType) IsValid() bool {
	switch t {
	case TypeDispatch, TypeReceive, TypeProcure, TypeDiscard, TypeVoidReversal:
		return true
	}
	return false
}

// Condition is the physical state of a linen unit.
type Condition string

const (
	ConditionClean   Condition = "CLEAN"
	ConditionSoiled  Condition = "SOILED"
	ConditionRewash  Condition = "REWASH"
	ConditionDamaged Condition = "DAMAGED"
)

// IsValid reports whether c is a known condition.
func (c Condition) IsValid() bool {
	switch c {
	case ConditionClean, ConditionSoiled, ConditionRewash, ConditionDamaged:
		return true
	}
	return false
}

// Transaction is the header of a posting. Only the void fields ever change, once.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	Type        TransactionType `json:"type"`
	PropertyID  uuid.UUID       `json:"property_id"`
	CreatedByID uuid.UUID       `json:"created_by_id"`
	CreatedAt   time.Time       `json:"created_at"`
	Voided      bool            `json:"voided"`
	VoidedByID  *uuid.UUID      `json:"voided_by_id,omitempty"`
	VoidedAt    *time.Time      `json:"voided_at,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	ReversalOf  *uuid.UUID      `json:"reversal_of,omitempty"`
}

// Entry is one signed movement at a location, item and condition.
type Entry struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	LocationID    uuid.UUID `json:"location_id"`
	LinenItemID   uuid.UUID `json:"linen_item_id"`
	Condition     Condition `json:"condition"`
	QtyDelta      int64     `json:"qty_delta"`
	CreatedAt     time.Time `json:"created_at"`
}

// MaxQtyMagnitude bounds the absolute quantity of a single entry. It keeps every negation
// and every SUM over the log inside int64.
const MaxQtyMagnitude int64 = 1_000_000_000

// EntryInput is an entry as submitted by a caller.
type EntryInput struct {
	LocationID  uuid.UUID
	LinenItemID uuid.UUID
	Condition   Condition
	QtyDelta    int64
}

// PostInput describes a new transaction. VendorID is optional; for transfers it defaults
// to the vendor owning the vendor-side location.
type PostInput struct {
	Type       TransactionType
	PropertyID uuid.UUID
	ActorID    uuid.UUID
	VendorID   *uuid.UUID
	Entries    []EntryInput
}

// VoidCommand is the single atomic unit committed by a void.
type VoidCommand struct {
	OriginalID uuid.UUID
	VoidedByID uuid.UUID
	VoidedAt   time.Time
	Reason     string
	Reversal   Transaction
	Entries    []Entry
}

// BalanceFilter narrows a balance query. Nil fields match everything.
type BalanceFilter struct {
	PropertyID  *uuid.UUID
	LocationID  *uuid.UUID
	LinenItemID *uuid.UUID
	Condition   *Condition
}

// BalanceRow is the derived quantity of one (location, item, condition) key.
type BalanceRow struct {
	LocationID  uuid.UUID `json:"location_id"`
	LinenItemID uuid.UUID `json:"linen_item_id"`
	Condition   Condition `json:"condition"`
	Qty         int64     `json:"qty"`
}

// VendorPending is the quantity a vendor currently holds for a property.
type VendorPending struct {
	VendorID   uuid.UUID `json:"vendor_id"`
	VendorName string    `json:"vendor_name"`
	PendingQty int64     `json:"pending_qty"`
}

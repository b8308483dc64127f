package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/linen-ledger/internal/masters"
	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// memoryCatalog serves reference data from maps.
type memoryCatalog struct {
	properties map[uuid.UUID]masters.Property
	vendors    map[uuid.UUID]masters.Vendor
	items      map[uuid.UUID]masters.LinenItem
	locations  map[uuid.UUID]masters.Location
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		properties: map[uuid.UUID]masters.Property{},
		vendors:    map[uuid.UUID]masters.Vendor{},
		items:      map[uuid.UUID]masters.LinenItem{},
		locations:  map[uuid.UUID]masters.Location{},
	}
}

func (c *memoryCatalog) GetProperty(_ context.Context, id uuid.UUID) (masters.Property, error) {
	if p, ok := c.properties[id]; ok {
		return p, nil
	}
	return masters.Property{}, fmt.Errorf("property %s: %w", id, shared.ErrNotFound)
}

func (c *memoryCatalog) GetVendor(_ context.Context, id uuid.UUID) (masters.Vendor, error) {
	if v, ok := c.vendors[id]; ok {
		return v, nil
	}
	return masters.Vendor{}, fmt.Errorf("vendor %s: %w", id, shared.ErrNotFound)
}

func (c *memoryCatalog) GetLinenItem(_ context.Context, id uuid.UUID) (masters.LinenItem, error) {
	if it, ok := c.items[id]; ok {
		return it, nil
	}
	return masters.LinenItem{}, fmt.Errorf("linen item %s: %w", id, shared.ErrNotFound)
}

func (c *memoryCatalog) GetLocation(_ context.Context, id uuid.UUID) (masters.Location, error) {
	if l, ok := c.locations[id]; ok {
		return l, nil
	}
	return masters.Location{}, fmt.Errorf("location %s: %w", id, shared.ErrNotFound)
}

// memoryStore keeps the ledger in slices and honours the same atomicity as Repository:
// a failed write leaves nothing behind.
type memoryStore struct {
	mu       sync.Mutex
	catalog  *memoryCatalog
	headers  map[uuid.UUID]Transaction
	entries  []Entry
	failNext error
}

func newMemoryStore(catalog *memoryCatalog) *memoryStore {
	return &memoryStore{catalog: catalog, headers: map[uuid.UUID]Transaction{}}
}

func (s *memoryStore) PostAtomic(_ context.Context, header Transaction, entries []Entry) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return uuid.Nil, err
	}
	s.headers[header.ID] = header
	s.entries = append(s.entries, entries...)
	return header.ID, nil
}

func (s *memoryStore) Void(_ context.Context, cmd VoidCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	original, ok := s.headers[cmd.OriginalID]
	switch {
	case !ok:
		return fmt.Errorf("%w: transaction %s", shared.ErrNotFound, cmd.OriginalID)
	case original.Voided:
		return fmt.Errorf("%w: transaction %s", shared.ErrAlreadyVoided, cmd.OriginalID)
	}
	voidedBy, voidedAt := cmd.VoidedByID, cmd.VoidedAt
	original.Voided = true
	original.VoidedByID = &voidedBy
	original.VoidedAt = &voidedAt
	original.Reason = cmd.Reason
	s.headers[original.ID] = original
	s.headers[cmd.Reversal.ID] = cmd.Reversal
	s.entries = append(s.entries, cmd.Entries...)
	return nil
}

func (s *memoryStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	return nil
}

func (s *memoryStore) GetHeader(_ context.Context, id uuid.UUID) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.headers[id]
	if !ok {
		return Transaction{}, fmt.Errorf("%w: transaction %s", shared.ErrNotFound, id)
	}
	return h, nil
}

func (s *memoryStore) GetEntries(_ context.Context, transactionID uuid.UUID) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: transaction %s", shared.ErrNotFound, transactionID)
	}
	return out, nil
}

type balanceKey struct {
	location  uuid.UUID
	item      uuid.UUID
	condition Condition
}

func (s *memoryStore) SumBalances(_ context.Context, f BalanceFilter) ([]BalanceRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sums := map[balanceKey]int64{}
	for _, e := range s.entries {
		loc := s.catalog.locations[e.LocationID]
		if f.PropertyID != nil && loc.PropertyID != *f.PropertyID {
			continue
		}
		if f.LocationID != nil && e.LocationID != *f.LocationID {
			continue
		}
		if f.LinenItemID != nil && e.LinenItemID != *f.LinenItemID {
			continue
		}
		if f.Condition != nil && e.Condition != *f.Condition {
			continue
		}
		sums[balanceKey{e.LocationID, e.LinenItemID, e.Condition}] += e.QtyDelta
	}
	out := make([]BalanceRow, 0, len(sums))
	for k, qty := range sums {
		out = append(out, BalanceRow{LocationID: k.location, LinenItemID: k.item, Condition: k.condition, Qty: qty})
	}
	return out, nil
}

func (s *memoryStore) SumVendorPending(_ context.Context, propertyID uuid.UUID) ([]VendorPending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sums := map[uuid.UUID]int64{}
	for _, e := range s.entries {
		loc := s.catalog.locations[e.LocationID]
		if loc.PropertyID != propertyID || loc.Kind != masters.KindVendor || loc.VendorID == nil {
			continue
		}
		if v := s.catalog.vendors[*loc.VendorID]; !v.IsActive {
			continue
		}
		sums[*loc.VendorID] += e.QtyDelta
	}
	out := make([]VendorPending, 0, len(sums))
	for id, qty := range sums {
		out = append(out, VendorPending{VendorID: id, VendorName: s.catalog.vendors[id].Name, PendingQty: qty})
	}
	return out, nil
}

func (s *memoryStore) entryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// world is a property with its default locations, one vendor location and one item.
type world struct {
	catalog  *memoryCatalog
	store    *memoryStore
	property masters.Property
	other    masters.Property
	linen    masters.Location
	soiled   masters.Location
	vendor   masters.Vendor
	vendorAt masters.Location
	sheet    masters.LinenItem
}

func newWorld() *world {
	c := newMemoryCatalog()
	w := &world{catalog: c, store: newMemoryStore(c)}
	w.property = w.addProperty("P1")
	w.other = w.addProperty("P2")
	w.linen = w.addLocation(w.property.ID, masters.KindStore, "Linen Store", nil)
	w.soiled = w.addLocation(w.property.ID, masters.KindSoiledRoom, "Soiled Room", nil)
	w.vendor = w.addVendor("Laundry A")
	w.vendorAt = w.addVendorLocation(w.property.ID, w.vendor)
	w.sheet = masters.LinenItem{ID: uuid.New(), Name: "King Sheet", SKU: "KS-1", IsActive: true}
	c.items[w.sheet.ID] = w.sheet
	return w
}

func (w *world) addProperty(code string) masters.Property {
	p := masters.Property{ID: uuid.New(), Name: "Hotel " + code, Code: code, IsActive: true}
	w.catalog.properties[p.ID] = p
	return p
}

func (w *world) addVendor(name string) masters.Vendor {
	v := masters.Vendor{ID: uuid.New(), Name: name, IsActive: true}
	w.catalog.vendors[v.ID] = v
	return v
}

func (w *world) addLocation(propertyID uuid.UUID, kind masters.LocationKind, name string, vendorID *uuid.UUID) masters.Location {
	l := masters.Location{ID: uuid.New(), PropertyID: propertyID, VendorID: vendorID, Kind: kind, Name: name, IsActive: true}
	w.catalog.locations[l.ID] = l
	return l
}

func (w *world) addVendorLocation(propertyID uuid.UUID, v masters.Vendor) masters.Location {
	id := v.ID
	return w.addLocation(propertyID, masters.KindVendor, masters.VendorLocationName(v.Name), &id)
}

func (w *world) dispatch(qty int64, from, to masters.Location) PostInput {
	return PostInput{
		Type:       TypeDispatch,
		PropertyID: from.PropertyID,
		ActorID:    uuid.New(),
		Entries: []EntryInput{
			{LocationID: from.ID, LinenItemID: w.sheet.ID, Condition: ConditionSoiled, QtyDelta: -qty},
			{LocationID: to.ID, LinenItemID: w.sheet.ID, Condition: ConditionSoiled, QtyDelta: qty},
		},
	}
}

func (w *world) receive(qty int64, from, to masters.Location) PostInput {
	return PostInput{
		Type:       TypeReceive,
		PropertyID: to.PropertyID,
		ActorID:    uuid.New(),
		Entries: []EntryInput{
			{LocationID: from.ID, LinenItemID: w.sheet.ID, Condition: ConditionClean, QtyDelta: -qty},
			{LocationID: to.ID, LinenItemID: w.sheet.ID, Condition: ConditionClean, QtyDelta: qty},
		},
	}
}

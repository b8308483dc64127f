package masters

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// memoryRepo mirrors the unique indexes of the locations table.
type memoryRepo struct {
	mu         sync.Mutex
	properties map[uuid.UUID]Property
	vendors    map[uuid.UUID]Vendor
	locations  map[uuid.UUID]Location
	// held counts the non-zero (item, condition) balances per location.
	held       map[uuid.UUID]int
	inserts    int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		properties: map[uuid.UUID]Property{},
		vendors:    map[uuid.UUID]Vendor{},
		locations:  map[uuid.UUID]Location{},
		held:       map[uuid.UUID]int{},
	}
}

func (r *memoryRepo) addProperty(code string, active bool) Property {
	p := Property{ID: uuid.New(), Name: "Hotel " + code, Code: code, IsActive: active}
	r.properties[p.ID] = p
	return p
}

func (r *memoryRepo) addVendor(name string, active bool) Vendor {
	v := Vendor{ID: uuid.New(), Name: name, IsActive: active}
	r.vendors[v.ID] = v
	return v
}

func (r *memoryRepo) GetProperty(_ context.Context, id uuid.UUID) (Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.properties[id]
	if !ok {
		return Property{}, fmt.Errorf("property %s: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (r *memoryRepo) GetVendor(_ context.Context, id uuid.UUID) (Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vendors[id]
	if !ok {
		return Vendor{}, fmt.Errorf("vendor %s: %w", id, shared.ErrNotFound)
	}
	return v, nil
}

func (r *memoryRepo) GetLocation(_ context.Context, id uuid.UUID) (Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locations[id]
	if !ok {
		return Location{}, fmt.Errorf("location %s: %w", id, shared.ErrNotFound)
	}
	return loc, nil
}

func (r *memoryRepo) FindVendorLocation(_ context.Context, propertyID, vendorID uuid.UUID) (Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, loc := range r.locations {
		if loc.PropertyID == propertyID && loc.BelongsToVendor(vendorID) {
			return loc, nil
		}
	}
	return Location{}, fmt.Errorf("vendor location: %w", shared.ErrNotFound)
}

func (r *memoryRepo) ListLocations(_ context.Context, propertyID uuid.UUID) ([]Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Location{}
	for _, loc := range r.locations {
		if loc.PropertyID == propertyID {
			out = append(out, loc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *memoryRepo) ListActiveProperties(context.Context) ([]Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Property{}
	for _, p := range r.properties {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListActiveVendors(context.Context) ([]Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Vendor{}
	for _, v := range r.vendors {
		if v.IsActive {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *memoryRepo) InsertLocation(_ context.Context, loc Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.locations {
		if existing.PropertyID != loc.PropertyID || existing.Kind != loc.Kind {
			continue
		}
		if loc.Kind != KindVendor || *existing.VendorID == *loc.VendorID {
			return fmt.Errorf("location: %w", shared.ErrConflict)
		}
	}
	r.locations[loc.ID] = loc
	r.inserts++
	return nil
}

// DeactivateLocation mirrors the row lock of the SQL repository with the repo mutex.
func (r *memoryRepo) DeactivateLocation(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locations[id]
	if !ok {
		return fmt.Errorf("location: %w", shared.ErrNotFound)
	}
	if !loc.IsActive {
		return nil
	}
	if n := r.held[id]; n > 0 {
		return fmt.Errorf("%w: %d balance(s)", shared.ErrStockBalance, n)
	}
	loc.IsActive = false
	r.locations[id] = loc
	return nil
}

// receiveStock plays a posting: it holds the same lock while checking the location is
// active and recording the new balance.
func (r *memoryRepo) receiveStock(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.locations[id].IsActive {
		return fmt.Errorf("%w: location inactive", shared.ErrValidation)
	}
	r.held[id]++
	return nil
}

func (r *memoryRepo) snapshot(propertyID uuid.UUID) []string {
	locs, _ := r.ListLocations(context.Background(), propertyID)
	out := make([]string, 0, len(locs))
	for _, loc := range locs {
		out = append(out, string(loc.Kind)+"|"+loc.Name)
	}
	return out
}

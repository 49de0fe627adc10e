package shipping

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrDuplicateRegion is returned when two region names normalize to the same key.
	ErrDuplicateRegion = errors.New("shipping: duplicate region")
	// ErrInvalidRate is returned for negative or empty table entries.
	ErrInvalidRate = errors.New("shipping: invalid rate")
)

// Resolution results reported through Resolver.Observe.
const (
	ResultMatched        = "matched"
	ResultPickupFallback = "pickup_fallback"
	ResultUnknownRegion  = "unknown_region"
)

var apostrophes = strings.NewReplacer(
	"’", "'",
	"‘", "'",
	"ʼ", "'",
	"′", "'",
	"´", "'",
	"`", "'",
)

// NormalizeRegion canonicalizes a region name for lookup: surrounding space is
// trimmed, inner whitespace runs collapse to one space, typographic
// apostrophes become ASCII and the result is lower-cased.
func NormalizeRegion(name string) string {
	collapsed := strings.Join(strings.Fields(name), " ")
	return strings.ToLower(apostrophes.Replace(collapsed))
}

type entry struct {
	name string
	rate RegionRate
}

// Resolver answers shipping price queries against an immutable rate table.
type Resolver struct {
	index map[string]entry
	names []string

	// Observe, when set, receives every resolution outcome.
	Observe func(method DeliveryMethod, result string)
}

// NewResolver builds the normalized index for table.
func NewResolver(table map[string]RegionRate) (*Resolver, error) {
	r := &Resolver{index: make(map[string]entry, len(table))}
	for name, rr := range table {
		key := NormalizeRegion(name)
		if key == "" {
			return nil, fmt.Errorf("empty region name %q: %w", name, ErrInvalidRate)
		}
		if prev, ok := r.index[key]; ok {
			return nil, fmt.Errorf("%q and %q: %w", prev.name, name, ErrDuplicateRegion)
		}
		if rr.Home < 0 || (rr.Pickup != nil && *rr.Pickup < 0) {
			return nil, fmt.Errorf("region %q: %w", name, ErrInvalidRate)
		}
		r.index[key] = entry{name: name, rate: rr}
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// MustResolver is NewResolver that panics on a malformed table.
func MustResolver(table map[string]RegionRate) *Resolver {
	r, err := NewResolver(table)
	if err != nil {
		panic(err)
	}
	return r
}

var (
	defaultOnce     sync.Once
	defaultResolver *Resolver
)

// DefaultResolver returns the process-wide resolver over DefaultTable.
func DefaultResolver() *Resolver {
	defaultOnce.Do(func() {
		defaultResolver = MustResolver(DefaultTable)
	})
	return defaultResolver
}

// Lookup returns the canonical name and rates of region.
func (r *Resolver) Lookup(region string) (string, RegionRate, bool) {
	e, ok := r.index[NormalizeRegion(region)]
	return e.name, e.rate, ok
}

// Price returns the shipping price for region and method. Unknown regions cost
// zero; a pickup request in a region without pickup service falls back to the
// home price.
func (r *Resolver) Price(region string, method DeliveryMethod) int64 {
	e, ok := r.index[NormalizeRegion(region)]
	if !ok {
		r.observe(method, ResultUnknownRegion)
		return 0
	}
	if method == MethodPickupPoint {
		if e.rate.Pickup != nil {
			r.observe(method, ResultMatched)
			return *e.rate.Pickup
		}
		r.observe(method, ResultPickupFallback)
		return e.rate.Home
	}
	r.observe(method, ResultMatched)
	return e.rate.Home
}

// Regions lists canonical region names in sorted order.
func (r *Resolver) Regions() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r *Resolver) observe(method DeliveryMethod, result string) {
	if r.Observe != nil {
		r.Observe(method, result)
	}
}

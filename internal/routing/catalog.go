// Package routing provides the routing catalog: reusable, immutable operation
// sequences that SFCs are instantiated from.
//
// A routing is created once (generated or registered from a manifest) and is
// never mutated afterwards. Every read returns a clone, so a caller that edits
// the result (the SFC state machine does) can never affect the template or any
// other SFC sharing it.
//
// Key types:
//   - [Catalog] - thread-safe routing store with sequential ids
//   - [Routing] - a routing id and its blank operation sequence
//   - [Operation] - one step of a sequence
//   - [Range] / [RangeSelector] - default operation-count ranges
//
// Catalog errors wrap the kinds from the fault package.
package routing

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"

	"mockmes/internal/fault"
)

// Bounds on the number of operations in a routing.
const (
	MinOperations = 1
	MaxOperations = 15
)

// Sentinel errors for catalog operations.
var (
	// ErrRoutingNotFound is returned when a routing id is unknown.
	ErrRoutingNotFound = fmt.Errorf("routing %w", fault.ErrNotFound)

	// ErrInvalidCount is returned when an operation count is outside
	// [MinOperations, MaxOperations].
	ErrInvalidCount = fmt.Errorf("operation count must be between %d and %d: %w",
		MinOperations, MaxOperations, fault.ErrInvalidArgument)
)

// Routing is an immutable operation-sequence template.
type Routing struct {
	// ID is the routing identifier, prefix plus ordinal (e.g. "ROUTING3").
	ID string `json:"routing_id" yaml:"routing_id"`

	// Operations are the template operations, all blank.
	Operations Operations `json:"operations" yaml:"operations"`
}

// Clone returns a deep copy of r.
func (r Routing) Clone() Routing {
	return Routing{ID: r.ID, Operations: r.Operations.Clone()}
}

// Range is an inclusive operation-count range.
type Range struct {
	Min int
	Max int
}

// Validate checks that the range is non-empty and within the catalog bounds.
func (r Range) Validate() error {
	if r.Min < MinOperations || r.Max > MaxOperations || r.Min > r.Max {
		return fmt.Errorf("invalid range [%d,%d]: %w", r.Min, r.Max, ErrInvalidCount)
	}
	return nil
}

// RangeSelector picks which default range [Catalog.CreateRoutingDefault]
// draws from. Ad-hoc creation and mock seeding use different defaults.
type RangeSelector int

const (
	// AdHoc is used when a create request omits the operation count.
	AdHoc RangeSelector = iota

	// Seed is used when generating mock data at startup.
	Seed
)

// String implements fmt.Stringer.
func (s RangeSelector) String() string {
	switch s {
	case AdHoc:
		return "adhoc"
	case Seed:
		return "seed"
	default:
		return "RangeSelector(" + strconv.Itoa(int(s)) + ")"
	}
}

// Options configures a [Catalog].
type Options struct {
	// Prefix is prepended to the ordinal to build routing ids.
	Prefix string

	// AdHocRange is the default count range for [AdHoc] creation.
	AdHocRange Range

	// SeedRange is the default count range for [Seed] creation.
	SeedRange Range

	// Rand is the random source for default counts. If nil a randomly seeded
	// source is used.
	Rand *rand.Rand
}

// DefaultOptions returns the historical defaults: "ROUTING" ids, ad-hoc
// counts in [1,15] and seed counts in [5,10].
func DefaultOptions() Options {
	return Options{
		Prefix:     "ROUTING",
		AdHocRange: Range{Min: MinOperations, Max: MaxOperations},
		SeedRange:  Range{Min: 5, Max: 10},
	}
}

// Catalog stores routings keyed by id.
//
// Create with [NewCatalog]. All methods are safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	prefix   string
	ranges   map[RangeSelector]Range
	rng      *rand.Rand
	routings map[string]Routing
	order    []string
}

// NewCatalog creates an empty [Catalog]. It returns an error if either
// default range is invalid.
func NewCatalog(opts Options) (*Catalog, error) {
	if err := opts.AdHocRange.Validate(); err != nil {
		return nil, fmt.Errorf("adhoc range: %w", err)
	}
	if err := opts.SeedRange.Validate(); err != nil {
		return nil, fmt.Errorf("seed range: %w", err)
	}
	if opts.Prefix == "" {
		return nil, errors.New("routing prefix must not be empty")
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Catalog{
		prefix: opts.Prefix,
		ranges: map[RangeSelector]Range{
			AdHoc: opts.AdHocRange,
			Seed:  opts.SeedRange,
		},
		rng:      rng,
		routings: make(map[string]Routing),
	}, nil
}

// CreateRouting generates a routing with count operations named
// "Operation 1" .. "Operation count", all blank.
//
// Returns [ErrInvalidCount] if count is outside [MinOperations, MaxOperations].
func (c *Catalog) CreateRouting(count int) (Routing, error) {
	if count < MinOperations || count > MaxOperations {
		return Routing{}, fmt.Errorf("got %d: %w", count, ErrInvalidCount)
	}
	return c.add(generatedDescriptions(count)), nil
}

// CreateRoutingDefault generates a routing whose operation count is drawn
// uniformly from the range chosen by sel.
func (c *Catalog) CreateRoutingDefault(sel RangeSelector) (Routing, error) {
	c.mu.Lock()
	r, ok := c.ranges[sel]
	var count int
	if ok {
		count = r.Min + c.rng.IntN(r.Max-r.Min+1)
	}
	c.mu.Unlock()

	if !ok {
		return Routing{}, fmt.Errorf("unknown range selector %s: %w", sel, fault.ErrInvalidArgument)
	}
	return c.CreateRouting(count)
}

// Register adds a routing whose operations carry the given descriptions.
// Used to pre-load routings from a manifest.
func (c *Catalog) Register(descriptions []string) (Routing, error) {
	if len(descriptions) < MinOperations || len(descriptions) > MaxOperations {
		return Routing{}, fmt.Errorf("got %d: %w", len(descriptions), ErrInvalidCount)
	}
	descs := make([]string, len(descriptions))
	copy(descs, descriptions)
	return c.add(descs), nil
}

func (c *Catalog) add(descriptions []string) Routing {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.prefix + strconv.Itoa(len(c.order)+1)
	r := Routing{ID: id, Operations: newOperations(descriptions)}
	c.routings[id] = r
	c.order = append(c.order, id)
	return r.Clone()
}

// GetRouting returns a copy of the routing with the given id, or
// [ErrRoutingNotFound].
func (c *Catalog) GetRouting(id string) (Routing, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.routings[id]
	if !ok {
		return Routing{}, fmt.Errorf("%s: %w", id, ErrRoutingNotFound)
	}
	return r.Clone(), nil
}

// ListRoutings returns copies of all routings in creation order.
func (c *Catalog) ListRoutings() []Routing {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Routing, len(c.order))
	for i, id := range c.order {
		out[i] = c.routings[id].Clone()
	}
	return out
}

// Len returns the number of routings in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

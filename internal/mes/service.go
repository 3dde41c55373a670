// Package mes wires the routing catalog and the SFC state machine into the
// single store object owned by a running mock MES.
//
// A [Service] is created once at process start with [New] and lives until the
// process exits; there is no teardown. It implements command.Backend, so the
// HTTP server, the CLI and the chat loop all drive the same instance through
// the command dispatcher.
package mes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"mockmes/internal/manifest"
	"mockmes/internal/routing"
	"mockmes/internal/sfc"
)

// Options configures a [Service].
type Options struct {
	Catalog routing.Options
	SFC     sfc.Options

	// Rand picks routings for seeded SFCs. If nil a randomly seeded source
	// is used.
	Rand *rand.Rand

	// Logger receives seeding logs. Defaults to a discarding logger.
	Logger *slog.Logger
}

// DefaultOptions returns the catalog and state-machine defaults.
func DefaultOptions() Options {
	return Options{
		Catalog: routing.DefaultOptions(),
		SFC:     sfc.DefaultOptions(),
	}
}

// Service is the in-memory store: one routing catalog and one state machine.
type Service struct {
	catalog *routing.Catalog
	machine *sfc.Machine
	rng     *rand.Rand
	logger  *slog.Logger
}

// New creates an empty Service.
func New(opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.SFC.Logger == nil {
		opts.SFC.Logger = logger
	}

	catalog, err := routing.NewCatalog(opts.Catalog)
	if err != nil {
		return nil, fmt.Errorf("create routing catalog: %w", err)
	}
	machine, err := sfc.NewMachine(catalog, opts.SFC)
	if err != nil {
		return nil, fmt.Errorf("create state machine: %w", err)
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Service{
		catalog: catalog,
		machine: machine,
		rng:     rng,
		logger:  logger,
	}, nil
}

// SeedResult reports what [Service.Seed] created.
type SeedResult struct {
	Routings []routing.Routing
	SFCs     []sfc.Record
}

// Seed fills the store with mock data: routings generated routings drawing
// their counts from the seed range, then sfcs SFCs each assigned a routing
// picked uniformly from the whole catalog (including any registered from a
// manifest). With an empty catalog the SFCs stay unassigned.
func (s *Service) Seed(ctx context.Context, routings, sfcs int) (SeedResult, error) {
	if routings < 0 || sfcs < 0 {
		return SeedResult{}, errors.New("seed counts must not be negative")
	}

	var res SeedResult
	for range routings {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		r, err := s.catalog.CreateRoutingDefault(routing.Seed)
		if err != nil {
			return res, fmt.Errorf("seed routing: %w", err)
		}
		res.Routings = append(res.Routings, r)
	}

	pool := s.catalog.ListRoutings()
	for range sfcs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec := s.machine.CreateSFC()
		if len(pool) > 0 {
			pick := pool[s.rng.IntN(len(pool))]
			var err error
			rec, err = s.machine.AssignRouting(rec.ID, pick.ID)
			if err != nil {
				return res, fmt.Errorf("seed sfc %s: %w", rec.ID, err)
			}
		}
		res.SFCs = append(res.SFCs, rec)
	}

	s.logger.Info("mock data seeded", "routings", len(res.Routings), "sfcs", len(res.SFCs))
	return res, nil
}

// LoadManifest registers every routing of m in file order and returns them.
func (s *Service) LoadManifest(_ context.Context, m *manifest.Manifest) ([]routing.Routing, error) {
	if m == nil {
		return nil, errors.New("manifest is nil")
	}
	out := make([]routing.Routing, 0, len(m.Entries))
	for _, e := range m.Entries {
		r, err := s.catalog.Register(e.Operations)
		if err != nil {
			return out, fmt.Errorf("register routing %q: %w", e.Name, err)
		}
		s.logger.Info("routing registered", "name", e.Name, "routing_id", r.ID, "operations", len(r.Operations))
		out = append(out, r)
	}
	return out, nil
}

// CreateRouting creates a routing with operations operations, or a count
// drawn from the ad-hoc range when operations is nil.
func (s *Service) CreateRouting(_ context.Context, operations *int) (routing.Routing, error) {
	if operations == nil {
		return s.catalog.CreateRoutingDefault(routing.AdHoc)
	}
	return s.catalog.CreateRouting(*operations)
}

// GetRouting returns a routing template.
func (s *Service) GetRouting(_ context.Context, routingID string) (routing.Routing, error) {
	return s.catalog.GetRouting(routingID)
}

// ListRoutings returns every routing in creation order.
func (s *Service) ListRoutings(context.Context) ([]routing.Routing, error) {
	return s.catalog.ListRoutings(), nil
}

// CreateSFC creates an empty SFC.
func (s *Service) CreateSFC(context.Context) (sfc.Record, error) {
	return s.machine.CreateSFC(), nil
}

// AssignRouting instantiates a routing on an SFC.
func (s *Service) AssignRouting(_ context.Context, sfcID, routingID string) (sfc.Record, error) {
	return s.machine.AssignRouting(sfcID, routingID)
}

// Advance completes the in-work operation of an SFC.
func (s *Service) Advance(_ context.Context, sfcID string) (sfc.Transition, error) {
	return s.machine.Advance(sfcID)
}

// Complete is the alias of Advance.
func (s *Service) Complete(_ context.Context, sfcID string) (sfc.Transition, error) {
	return s.machine.Complete(sfcID)
}

// Rollback resets the cursor of an SFC to step.
func (s *Service) Rollback(_ context.Context, sfcID string, step int) (sfc.Transition, error) {
	return s.machine.Rollback(sfcID, step)
}

// RollbackSingle moves the cursor of an SFC back one operation.
func (s *Service) RollbackSingle(_ context.Context, sfcID string) (sfc.Transition, error) {
	return s.machine.RollbackSingle(sfcID)
}

// ForceAdvance jumps the cursor of an SFC to step.
func (s *Service) ForceAdvance(_ context.Context, sfcID string, step int) (sfc.Transition, error) {
	return s.machine.ForceAdvance(sfcID, step)
}

// GetSFC returns the full record of an SFC.
func (s *Service) GetSFC(_ context.Context, sfcID string) (sfc.Record, error) {
	return s.machine.GetSFC(sfcID)
}

// GetRoutingState returns the routing-state projection of an SFC.
func (s *Service) GetRoutingState(_ context.Context, sfcID string) (sfc.RoutingState, error) {
	return s.machine.GetRoutingState(sfcID)
}

// ListSFCs returns every SFC in creation order.
func (s *Service) ListSFCs(context.Context) ([]sfc.Record, error) {
	return s.machine.ListSFCs(), nil
}

// History returns the transition journal of an SFC.
func (s *Service) History(_ context.Context, sfcID string) ([]sfc.Entry, error) {
	return s.machine.History(sfcID)
}

package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"mockmes/internal/routing"
	"mockmes/internal/sfc"
)

// Backend is the store surface a [Dispatcher] drives.
//
// mes.Service implements it in process; client.Client implements it over
// HTTP. Errors wrap the kinds from the fault package either way, so callers
// classify them the same.
type Backend interface {
	CreateRouting(ctx context.Context, operations *int) (routing.Routing, error)
	GetRouting(ctx context.Context, routingID string) (routing.Routing, error)
	ListRoutings(ctx context.Context) ([]routing.Routing, error)

	CreateSFC(ctx context.Context) (sfc.Record, error)
	AssignRouting(ctx context.Context, sfcID, routingID string) (sfc.Record, error)
	Advance(ctx context.Context, sfcID string) (sfc.Transition, error)
	Complete(ctx context.Context, sfcID string) (sfc.Transition, error)
	Rollback(ctx context.Context, sfcID string, step int) (sfc.Transition, error)
	RollbackSingle(ctx context.Context, sfcID string) (sfc.Transition, error)
	ForceAdvance(ctx context.Context, sfcID string, step int) (sfc.Transition, error)

	GetSFC(ctx context.Context, sfcID string) (sfc.Record, error)
	GetRoutingState(ctx context.Context, sfcID string) (sfc.RoutingState, error)
	ListSFCs(ctx context.Context) ([]sfc.Record, error)
	History(ctx context.Context, sfcID string) ([]sfc.Entry, error)
}

// Result holds the output of one executed command. Exactly one of the
// pointer or slice fields is set, depending on the command.
type Result struct {
	Command Command

	Routing      *routing.Routing
	Routings     []routing.Routing
	Record       *sfc.Record
	Transition   *sfc.Transition
	RoutingState *sfc.RoutingState
	Records      []sfc.Record
	History      []sfc.Entry
}

// Observer is invoked with each command after it passes validation and
// before it reaches the backend.
type Observer func(cmd Command)

// Dispatcher validates commands and executes them against a [Backend].
//
// Use [NewDispatcher] to create an instance.
type Dispatcher struct {
	backend  Backend
	logger   *slog.Logger
	observer Observer
}

// NewDispatcher creates a Dispatcher for backend. Logging is discarded until
// [Dispatcher.SetLogger] is called.
func NewDispatcher(backend Backend) *Dispatcher {
	return &Dispatcher{
		backend: backend,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger used for per-command debug logs.
func (d *Dispatcher) SetLogger(l *slog.Logger) {
	if l != nil {
		d.logger = l
	}
}

// SetObserver sets an optional callback run before each command executes.
func (d *Dispatcher) SetObserver(fn Observer) {
	d.observer = fn
}

// Execute validates cmd and runs it. Validation failures never reach the
// backend.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) (Result, error) {
	if cmd == nil {
		return Result{}, ErrNilCommand
	}
	if err := cmd.Validate(); err != nil {
		return Result{}, err
	}
	if d.observer != nil {
		d.observer(cmd)
	}

	start := time.Now()
	res, err := d.execute(ctx, cmd)
	d.logger.Debug("command executed",
		"command", cmd.Name(),
		"duration", time.Since(start),
		"error", err,
	)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	res.Command = cmd
	return res, nil
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command) (Result, error) {
	b := d.backend
	switch c := cmd.(type) {
	case CreateRouting:
		return routingResult(b.CreateRouting(ctx, c.Operations))
	case GetRouting:
		return routingResult(b.GetRouting(ctx, c.RoutingID))
	case ListRoutings:
		rs, err := b.ListRoutings(ctx)
		return Result{Routings: rs}, err
	case CreateSFC:
		return recordResult(b.CreateSFC(ctx))
	case AssignRouting:
		return recordResult(b.AssignRouting(ctx, c.SFCID, c.RoutingID))
	case Advance:
		return transitionResult(b.Advance(ctx, c.SFCID))
	case Complete:
		return transitionResult(b.Complete(ctx, c.SFCID))
	case Rollback:
		return transitionResult(b.Rollback(ctx, c.SFCID, c.Step))
	case RollbackSingle:
		return transitionResult(b.RollbackSingle(ctx, c.SFCID))
	case ForceAdvance:
		return transitionResult(b.ForceAdvance(ctx, c.SFCID, c.Step))
	case GetSFC:
		return recordResult(b.GetSFC(ctx, c.SFCID))
	case GetRoutingState:
		rs, err := b.GetRoutingState(ctx, c.SFCID)
		if err != nil {
			return Result{}, err
		}
		return Result{RoutingState: &rs}, nil
	case ListSFCs:
		recs, err := b.ListSFCs(ctx)
		return Result{Records: recs}, err
	case History:
		entries, err := b.History(ctx, c.SFCID)
		return Result{History: entries}, err
	default:
		return Result{}, fmt.Errorf("%s: %w", cmd.Name(), ErrUnknownCommand)
	}
}

func routingResult(r routing.Routing, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	return Result{Routing: &r}, nil
}

func recordResult(rec sfc.Record, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	return Result{Record: &rec}, nil
}

func transitionResult(t sfc.Transition, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	return Result{Transition: &t}, nil
}

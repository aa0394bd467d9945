package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

var (
	ErrInvalidTransition = errors.New("transition not allowed from current state")
	ErrEmptyClientID     = errors.New("client id required")
)

// Controller owns the state of one lookup session. All transitions replace
// the state as a whole.
//
// Each submission takes a new generation. A result arriving for an older
// generation is dropped, so a slow response can never overwrite a newer
// state.
type Controller struct {
	mu        sync.Mutex
	resolver  Resolver
	logger    *slog.Logger
	exampleID string

	state  State
	gen    uint64
	cancel context.CancelFunc
}

// Option customises a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for lookup outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithExampleID overrides the client ID filled in by UseExample.
func WithExampleID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.exampleID = id
		}
	}
}

// NewController starts in Ready with an empty input.
func NewController(resolver Resolver, opts ...Option) *Controller {
	c := &Controller{
		resolver:  resolver,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		exampleID: ExampleClientID,
		state:     Ready{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Edit replaces the input while in Ready.
func (c *Controller) Edit(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.state.(Ready); !ok {
		return fmt.Errorf("edit in %s: %w", StateName(c.state), ErrInvalidTransition)
	}
	c.state = Ready{InputID: id}
	return nil
}

// UseExample fills the input with the example client ID without looking it up.
func (c *Controller) UseExample() error {
	return c.Edit(c.exampleID)
}

// Submit moves to Loading before returning and resolves the input in the
// background. The returned channel receives the state current once the
// lookup has finished.
func (c *Controller) Submit(ctx context.Context) (<-chan State, error) {
	ctx, gen, id, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	done := make(chan State, 1)
	go func() {
		defer close(done)
		done <- c.resolve(ctx, gen, id)
	}()
	return done, nil
}

// Lookup is the blocking form of Submit.
func (c *Controller) Lookup(ctx context.Context) (State, error) {
	ctx, gen, id, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	return c.resolve(ctx, gen, id), nil
}

// Reset returns to an empty Ready. A lookup in flight is cancelled and its
// result discarded.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	return nil
}

// StartOver leaves Loaded for an empty Ready.
func (c *Controller) StartOver() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.state.(Loaded); !ok {
		return fmt.Errorf("start over in %s: %w", StateName(c.state), ErrInvalidTransition)
	}
	c.resetLocked()
	return nil
}

// TryAgain leaves Failed for an empty Ready.
func (c *Controller) TryAgain() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.state.(Failed); !ok {
		return fmt.Errorf("try again in %s: %w", StateName(c.state), ErrInvalidTransition)
	}
	c.resetLocked()
	return nil
}

func (c *Controller) resetLocked() {
	if _, ok := c.state.(Loading); ok {
		c.gen++
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		c.logger.Info("lookup.cancelled")
	}
	c.state = Ready{}
}

func (c *Controller) begin(ctx context.Context) (context.Context, uint64, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ready, ok := c.state.(Ready)
	if !ok {
		return nil, 0, "", fmt.Errorf("submit in %s: %w", StateName(c.state), ErrInvalidTransition)
	}
	id := strings.TrimSpace(ready.InputID)
	if id == "" {
		return nil, 0, "", ErrEmptyClientID
	}

	c.gen++
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = Loading{ClientID: id}
	return ctx, c.gen, id, nil
}

func (c *Controller) resolve(ctx context.Context, gen uint64, id string) (result State) {
	defer func() {
		if r := recover(); r != nil {
			result = c.finish(gen, id, Failed{Err: fmt.Errorf("resolver panic: %v", r)})
		}
	}()

	details, err := c.resolver.Resolve(ctx, id)
	if err != nil {
		return c.finish(gen, id, Failed{Err: err})
	}
	return c.finish(gen, id, Loaded{Details: details})
}

func (c *Controller) finish(gen uint64, id string, next State) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.logger.Debug("lookup.stale", "client_id", id, "generation", gen, "current", c.gen)
		return c.state
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	switch s := next.(type) {
	case Loaded:
		c.logger.Info("lookup.complete", "client_id", id, "name", s.Details.Name)
	case Failed:
		c.logger.Warn("lookup.failed", "client_id", id, "kind", s.Kind(), "error", s.Err)
	}
	c.state = next
	return next
}

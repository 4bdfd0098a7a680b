// Package poller drives the periodic refresh of every registered switch and
// fans the resulting states out to sinks.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ezvizswitch/internal/clock"
	"ezvizswitch/pkg/entity"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sink receives the state of each switch after it has been refreshed
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap entity.Snapshot) error
}

// Poller refreshes switches on a fixed interval
type Poller struct {
	registry *entity.Registry
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger

	sinksMu sync.RWMutex
	sinks   []Sink

	lastMu   sync.RWMutex
	lastPoll time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	runMu     sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewPoller creates a poller over registry
func NewPoller(registry *entity.Registry, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		registry: registry,
		interval: interval,
		clock:    clock.NewRealClock(),
		logger:   logger.Named("poller"),
		done:     make(chan struct{}),
	}
}

// SetClock replaces the time source. Call it before Start.
func (p *Poller) SetClock(c clock.Clock) {
	p.clock = c
}

// LastPoll returns when the last cycle finished, or the zero time
func (p *Poller) LastPoll() time.Time {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	return p.lastPoll
}

// AddSink registers a sink for subsequent poll cycles
func (p *Poller) AddSink(sink Sink) {
	p.sinksMu.Lock()
	defer p.sinksMu.Unlock()
	p.sinks = append(p.sinks, sink)
}

// PollOnce refreshes every switch once and publishes its state. A failing
// switch does not stop the cycle; all failures are returned combined.
// Cancelling ctx stops the cycle between switches, never mid-call.
func (p *Poller) PollOnce(ctx context.Context) error {
	p.sinksMu.RLock()
	sinks := append([]Sink(nil), p.sinks...)
	p.sinksMu.RUnlock()

	callCtx := context.WithoutCancel(ctx)

	var errs error
	for _, id := range p.registry.IDs() {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}

		snap, err := p.registry.Refresh(callCtx, id)
		if err != nil {
			p.logger.Warn("Failed to refresh switch", zap.String("id", id), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("refresh %s: %w", id, err))
			continue
		}

		for _, sink := range sinks {
			if err := sink.Publish(callCtx, snap); err != nil {
				p.logger.Warn("Failed to publish state",
					zap.String("id", id),
					zap.String("sink", sink.Name()),
					zap.Error(err))
				errs = multierr.Append(errs, fmt.Errorf("publish %s to %s: %w", id, sink.Name(), err))
			}
		}
	}

	p.lastMu.Lock()
	p.lastPoll = p.clock.Now()
	p.lastMu.Unlock()

	return errs
}

// Start polls immediately and then every interval until Stop. Calls after
// the first are ignored.
func (p *Poller) Start() {
	p.startOnce.Do(p.run)
}

func (p *Poller) run() {
	ctx, cancel := context.WithCancel(context.Background())
	p.runMu.Lock()
	p.cancel = cancel
	p.runMu.Unlock()

	p.logger.Info("Starting poller", zap.Duration("interval", p.interval))

	go func() {
		defer close(p.done)

		for {
			if err := p.PollOnce(ctx); err != nil {
				p.logger.Debug("Poll cycle finished with errors",
					zap.Int("errors", len(multierr.Errors(err))))
			}

			select {
			case <-ctx.Done():
				return
			case <-p.clock.After(p.interval):
			}
		}
	}()
}

// Stop ends the poll loop and waits for the current cycle to finish
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.runMu.Lock()
		cancel := p.cancel
		p.runMu.Unlock()
		if cancel == nil {
			return
		}
		cancel()
		<-p.done
		p.logger.Info("Poller stopped")
	})
}

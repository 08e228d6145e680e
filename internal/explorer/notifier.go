package explorer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/TFMV/explorer/internal/fsys"
)

// RecomputeFunc rebuilds the payload for every registered root.
type RecomputeFunc func(ctx context.Context) Payload

// Notifier turns filesystem changes into recompute+broadcast cycles. At most
// one cycle runs at a time. Changes arriving during a cycle set a pending
// flag, and when the cycle ends a pending flag buys exactly one more cycle,
// however many changes set it.
type Notifier struct {
	watcher   fsys.Watcher
	hub       *Hub
	recompute RecomputeFunc
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
	pending bool
	wg      sync.WaitGroup
}

// NewNotifier creates a Notifier. watcher may be nil when changes are only
// ever signalled through Trigger.
func NewNotifier(watcher fsys.Watcher, hub *Hub, recompute RecomputeFunc, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		watcher:   watcher,
		hub:       hub,
		recompute: recompute,
		logger:    logger,
	}
}

// Serve consumes the watcher's streams until ctx is done or the watcher is
// closed. Every change is a coarse invalidation.
func (n *Notifier) Serve(ctx context.Context) error {
	if n.watcher == nil {
		<-ctx.Done()
		return nil
	}
	events, errs := n.watcher.Events(), n.watcher.Errors()
	for {
		select {
		case change, ok := <-events:
			if !ok {
				return nil
			}
			n.logger.Debug("change", zap.String("event", string(change.Event)), zap.String("path", change.Path))
			n.Trigger(ctx)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			n.logger.Warn("watcher error", zap.Error(err))

		case <-ctx.Done():
			return nil
		}
	}
}

// Trigger requests a cycle. It never blocks: it either starts a cycle in the
// background or marks one pending behind the cycle in flight. Cycles are not
// cancelled when ctx is, only its values are kept.
func (n *Notifier) Trigger(ctx context.Context) {
	metricTriggers.Inc()

	n.mu.Lock()
	if n.running {
		if !n.pending {
			metricCoalesced.Inc()
		}
		n.pending = true
		n.mu.Unlock()
		return
	}
	n.running = true
	n.wg.Add(1)
	n.mu.Unlock()

	go n.run(context.WithoutCancel(ctx))
}

// Wait blocks until no cycle is in flight or pending.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) run(ctx context.Context) {
	defer n.wg.Done()
	for {
		n.cycle(ctx)

		n.mu.Lock()
		if !n.pending {
			n.running = false
			n.mu.Unlock()
			return
		}
		n.pending = false
		n.mu.Unlock()
	}
}

func (n *Notifier) cycle(ctx context.Context) {
	metricCycles.Inc()
	payload := n.recompute(ctx)
	n.hub.Broadcast(payload)
	n.logger.Debug("broadcast",
		zap.Int("trees", len(payload.Trees)),
		zap.Int("errors", len(payload.Errors)),
		zap.Int("subscribers", n.hub.Len()),
	)
}

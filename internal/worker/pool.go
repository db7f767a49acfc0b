package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devarispbrown/gtsd-sub009/internal/clock"
	"github.com/devarispbrown/gtsd-sub009/internal/domain"
	"github.com/devarispbrown/gtsd-sub009/internal/gateway"
	"github.com/devarispbrown/gtsd-sub009/internal/ledger"
	"github.com/devarispbrown/gtsd-sub009/internal/queue"
	"github.com/devarispbrown/gtsd-sub009/internal/ratelimit"
	"github.com/devarispbrown/gtsd-sub009/internal/userstore"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnSent   func(mt domain.MessageType, latency time.Duration)
	OnFailed func(mt domain.MessageType)
	OnNoop   func(mt domain.MessageType)
}

// Pool manages the lifecycle of a fixed number of delivery workers. The
// size is capped to respect the gateway's rate limits; the shared send
// limiter enforces the per-second budget across all of them.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

func NewPool(
	size int,
	q *queue.Queue,
	users userstore.UserStore,
	ldg ledger.Ledger,
	gw gateway.Client,
	limiter *ratelimit.SendLimiter,
	clk clock.Clock,
	deepLink string,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	workers := make([]*Worker, size)
	for i := range workers {
		workers[i] = NewWorker(
			i, q, users, ldg, gw, limiter, clk, deepLink,
			logger.With(zap.Int("worker_id", i)),
			hooks.OnSent, hooks.OnFailed, hooks.OnNoop,
		)
	}
	return &Pool{workers: workers}
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context to ensure in-flight sends finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}

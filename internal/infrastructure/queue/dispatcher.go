package queue

import (
	"context"
	"hash/fnv"

	"github.com/rs/zerolog"

	"github.com/acqadvantage/assistant-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 128
)

// Dispatcher applies verified payment events on a fixed set of workers,
// sharded by customer so one customer's events apply in delivery order. The
// webhook handler enqueues and acknowledges immediately; downstream latency
// (store writes, dedup lookups) never delays the provider's ack.
type Dispatcher struct {
	workers []chan *ports.PaymentEventInput
	billing ports.BillingService
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, billing ports.BillingService, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan *ports.PaymentEventInput, numWorkers),
		billing: billing,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan *ports.PaymentEventInput, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands an event to the worker owning its customer shard. Blocks
// only when that shard's buffer is full.
func (d *Dispatcher) Enqueue(event *ports.PaymentEventInput) {
	d.workers[d.shardIndex(event)] <- event
}

// shardIndex maps an event deterministically to a worker. Events without a
// customer id (fresh checkouts) shard on the correlation token instead.
func (d *Dispatcher) shardIndex(event *ports.PaymentEventInput) int {
	key := event.CustomerID
	if key == "" {
		key = event.CorrelationID
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan *ports.PaymentEventInput) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := d.billing.Apply(ctx, event); err != nil {
				d.log.Error().Err(err).
					Str("event_id", event.EventID).
					Str("type", event.Type).
					Int("worker_id", id).
					Msg("payment event processing failed")
			}
		}
	}
}

package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/primal-host/primal-bridge/internal/metrics"
)

// ErrQueueFull is returned by Send when the delivery queue has no room.
var ErrQueueFull = errors.New("federation: delivery queue full")

// ErrStopped is returned by Send after the workers have shut down.
var ErrStopped = errors.New("federation: delivery stopped")

type delivery struct {
	username  string
	recipient string
	body      []byte
}

// Delivery is the outbound side of the collaborator: Send serializes an
// activity and queues it, and a pool of workers resolves the recipient's
// inbox and posts the signed request. Retries are the Client's concern;
// a delivery that still fails is logged and dropped.
type Delivery struct {
	client  *Client
	log     *slog.Logger
	metrics *metrics.Metrics
	workers int

	queue chan delivery
	wg    sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewDelivery creates a Delivery with the given worker count and queue
// capacity.
func NewDelivery(client *Client, workers, queueSize int, log *slog.Logger, m *metrics.Metrics) *Delivery {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = slog.Default()
	}
	return &Delivery{
		client:  client,
		log:     log,
		metrics: m,
		workers: workers,
		queue:   make(chan delivery, queueSize),
	}
}

// Start launches the workers. They run until ctx is cancelled; call Wait
// to block until they have exited.
func (d *Delivery) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.run(ctx)
		}()
	}
	go func() {
		<-ctx.Done()
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
	}()
}

// Wait blocks until all workers have exited.
func (d *Delivery) Wait() {
	d.wg.Wait()
}

// Send queues activity for delivery from the local actor username to the
// remote actor recipient. It returns once the activity is queued.
func (d *Delivery) Send(ctx context.Context, username, recipient string, activity any) error {
	body, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("federation: marshal activity: %w", err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.queue <- delivery{username: username, recipient: recipient, body: body}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (d *Delivery) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.queue:
			err := d.deliver(ctx, job)
			d.metrics.Delivery(err)
			if err != nil {
				d.log.Warn("delivery failed",
					"from", job.username, "to", job.recipient, "error", err)
				continue
			}
			d.log.Debug("delivered", "from", job.username, "to", job.recipient)
		}
	}
}

func (d *Delivery) deliver(ctx context.Context, job delivery) error {
	inbox, err := d.client.ResolveInbox(ctx, job.username, job.recipient)
	if err != nil {
		return err
	}
	return d.client.Post(ctx, job.username, inbox, job.body)
}

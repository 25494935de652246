package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/eapache/queue/v2"
	"github.com/rentfleet/aigw/config"
	gwerrors "github.com/rentfleet/aigw/errors"
	"github.com/rentfleet/aigw/server/metrics"
)

var errQueueFull = errors.New("admission queue is full")

// Admission bounds how many completion requests are processed at once.
// Requests over MaxConcurrent wait in a FIFO queue; once MaxQueued requests
// are waiting, new ones are refused with 503. Waiting requests whose client
// goes away leave the queue without taking a slot.
type Admission struct {
	maxConcurrent int
	maxQueued     int
	metrics       *metrics.Metrics

	mu      sync.Mutex
	active  int
	waiting int
	waiters *queue.Queue[*waiter]
}

type waiter struct {
	ready     chan struct{}
	abandoned bool
}

// NewAdmission creates an admission queue from cfg. m may be nil.
func NewAdmission(cfg config.QueueConfig, m *metrics.Metrics) *Admission {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Admission{
		maxConcurrent: maxConcurrent,
		maxQueued:     cfg.MaxQueued,
		metrics:       m,
		waiters:       queue.New[*waiter](),
	}
}

// Stats returns the number of requests holding a slot and waiting for one.
func (a *Admission) Stats() (processing, queued int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active, a.waiting
}

func (a *Admission) acquire(ctx context.Context) error {
	a.mu.Lock()
	if a.active < a.maxConcurrent && a.waiting == 0 {
		a.active++
		a.updateGauges()
		a.mu.Unlock()
		return nil
	}
	if a.waiting >= a.maxQueued {
		a.mu.Unlock()
		return errQueueFull
	}

	w := &waiter{ready: make(chan struct{})}
	a.waiters.Add(w)
	a.waiting++
	a.updateGauges()
	a.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		a.mu.Lock()
		select {
		case <-w.ready:
			// the slot was handed over while we were giving up
			a.mu.Unlock()
			a.release()
		default:
			w.abandoned = true
			a.waiting--
			a.updateGauges()
			a.mu.Unlock()
		}
		return ctx.Err()
	}
}

// release hands the slot to the oldest live waiter, or frees it.
func (a *Admission) release() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for a.waiters.Length() > 0 {
		w := a.waiters.Remove()
		if w.abandoned {
			continue
		}
		a.waiting--
		close(w.ready)
		a.updateGauges()
		return
	}
	a.active--
	a.updateGauges()
}

// updateGauges must be called with mu held.
func (a *Admission) updateGauges() {
	if a.metrics == nil {
		return
	}
	a.metrics.ActiveRequests.WithLabelValues("processing").Set(float64(a.active))
	a.metrics.ActiveRequests.WithLabelValues("queued").Set(float64(a.waiting))
}

// Handler admits requests through the queue.
func (a *Admission) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.acquire(r.Context()); err != nil {
			if errors.Is(err, errQueueFull) {
				if a.metrics != nil {
					a.metrics.QueueRejections.Inc()
				}
				_, queued := a.Stats()
				gwerrors.WriteError(w, gwerrors.NewOverloadError(GetRequestID(r.Context()), queued))
			}
			// otherwise the client is gone and nobody reads the response
			return
		}
		defer a.release()

		next.ServeHTTP(w, r)
	})
}

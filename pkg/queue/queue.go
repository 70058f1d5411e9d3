package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/flowcore/pkg/models"
	"github.com/google/uuid"
)

var ErrQueueClosed = errors.New("action queue is closed")

// Runner performs a queued action.
type Runner interface {
	Run(ctx context.Context, action *models.Action) error
}

type RunnerFunc func(ctx context.Context, action *models.Action) error

func (f RunnerFunc) Run(ctx context.Context, action *models.Action) error {
	return f(ctx, action)
}

// Observer is told about lifecycle changes. ActionQueued runs on the
// enqueueing goroutine with the queue locked, so it must not enqueue;
// ActionFinished runs on the drain goroutine. For one action, queued is
// always reported before finished.
type Observer interface {
	ActionQueued(ctx context.Context, action *models.Action)
	ActionFinished(ctx context.Context, action *models.Action, duration time.Duration)
}

type Options struct {
	// Timeout bounds each action run. Zero disables it.
	Timeout  time.Duration
	Observer Observer
}

// Queue drains actions strictly in arrival order, one at a time. At most one
// drain goroutine exists at any moment.
type Queue struct {
	ledger  *Ledger
	runner  Runner
	logger  *slog.Logger
	timeout time.Duration
	obs     Observer

	mu       sync.Mutex
	idle     *sync.Cond
	pending  []string
	draining bool
	closed   bool
}

func New(ledger *Ledger, runner Runner, logger *slog.Logger, opts Options) *Queue {
	q := &Queue{
		ledger:  ledger,
		runner:  runner,
		logger:  logger.With("module", "action_queue"),
		timeout: opts.Timeout,
		obs:     opts.Observer,
	}
	q.idle = sync.NewCond(&q.mu)

	return q
}

// Enqueue records a pending action, appends it to the tail and starts a
// drain unless one is already running.
func (q *Queue) Enqueue(ctx context.Context, kind models.ActionKind, payload map[string]any) (*models.Action, error) {
	if !kind.IsValid() {
		return nil, models.NewValidationError("queue action", fmt.Sprintf("unsupported action kind %q", kind))
	}

	if payload == nil {
		payload = map[string]any{}
	}

	action := &models.Action{
		ID:        uuid.New().String(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
		Status:    models.ActionStatusPending,
	}

	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return nil, ErrQueueClosed
	}

	err := q.ledger.Append(action)
	if err != nil {
		q.mu.Unlock()

		return nil, err
	}

	// ActionQueued must reach the observer before the drain can see the
	// action, so it runs under the lock.
	if q.obs != nil {
		q.obs.ActionQueued(ctx, action.Clone())
	}

	q.pending = append(q.pending, action.ID)
	start := !q.draining
	q.draining = true
	q.mu.Unlock()

	q.logger.DebugContext(ctx, "Action queued", "action_id", action.ID, "kind", kind)

	if start {
		go q.drain(context.WithoutCancel(ctx))
	}

	return action.Clone(), nil
}

func (q *Queue) drain(ctx context.Context) {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.idle.Broadcast()
			q.mu.Unlock()

			return
		}

		id := q.pending[0]
		q.mu.Unlock()

		q.process(ctx, id)

		q.mu.Lock()
		q.pending = q.pending[1:]
		q.mu.Unlock()
	}
}

func (q *Queue) process(ctx context.Context, id string) {
	action, err := q.ledger.Transition(id, models.ActionStatusRunning, nil)
	if err != nil {
		q.logger.ErrorContext(ctx, "Failed to start action", "action_id", id, "error", err)

		return
	}

	logger := q.logger.With("action_id", id, "kind", action.Kind)
	logger.InfoContext(ctx, "Running action")

	start := time.Now()
	runErr := q.run(ctx, action)

	status := models.ActionStatusCompleted
	if runErr != nil {
		status = models.ActionStatusFailed
		logger.ErrorContext(ctx, "Action failed", "error", runErr)
	}

	finished, err := q.ledger.Transition(id, status, runErr)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record action status", "error", err)

		return
	}

	logger.InfoContext(ctx, "Action finished", "status", status, "duration", time.Since(start))

	if q.obs != nil {
		q.obs.ActionFinished(ctx, finished, time.Since(start))
	}
}

// run invokes the runner on the drain goroutine, converting panics and an
// exceeded deadline into errors. It returns only once the runner has.
func (q *Queue) run(ctx context.Context, action *models.Action) (err error) {
	if q.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()

	err = q.runner.Run(ctx, action)

	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		service, _ := action.Payload["service"].(string)

		return models.NewDispatchError(service, string(action.Kind), ctxErr)
	}

	return err
}

func (q *Queue) Status(id string) (models.ActionStatus, error) {
	action, err := q.ledger.Get(id)
	if err != nil {
		return "", err
	}

	return action.Status, nil
}

// Len returns the number of actions waiting or in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

// Wait blocks until the queue is idle or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		q.mu.Lock()
		for q.draining {
			q.idle.Wait()
		}
		q.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close refuses new actions and waits for the queued ones to finish.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	return q.Wait(ctx)
}

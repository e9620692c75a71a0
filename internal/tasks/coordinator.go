// Package tasks runs registry calls in the background so dialogue turns
// can answer within the voice platform's deadline. A submitted task gets
// a handle; the caller either collects the result within a short grace
// period or defers and polls the handle on a later turn.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/zhukovDV72toru/alice/internal/observability/metrics"
	"github.com/zhukovDV72toru/alice/internal/registry"
	"github.com/zhukovDV72toru/alice/pkg/logging"
)

// Kind names a registered task executor.
type Kind string

const (
	KindFindPatient       Kind = "find-patient"
	KindListFacilities    Kind = "list-facilities"
	KindCreateAppointment Kind = "create-appointment"
)

// Executor performs one task. A nil error stores the returned value as
// the ready result; a transient error triggers a retry; any other error
// is terminal and stores a failed result.
type Executor func(ctx context.Context, payload json.RawMessage) (any, error)

// Status of a task record.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Result is the visible state of a task.
type Result struct {
	Status Status          `json:"status"`
	Value  json.RawMessage `json:"value,omitempty"`
	Err    string          `json:"error,omitempty"`
}

// Decode unmarshals a ready result's value into dest.
func (r Result) Decode(dest any) error {
	if r.Status != StatusReady {
		return fmt.Errorf("tasks: cannot decode a %s result", r.Status)
	}
	if err := json.Unmarshal(r.Value, dest); err != nil {
		return fmt.Errorf("tasks: failed to decode result: %w", err)
	}
	return nil
}

// ErrUnknownTask is returned when a handle has expired or was forgotten.
var ErrUnknownTask = errors.New("tasks: unknown task handle")

// ErrQueueFull is returned when the submission queue has no room.
var ErrQueueFull = errors.New("tasks: queue is full")

type job struct {
	handle    string
	kind      Kind
	payload   json.RawMessage
	submitted time.Time
}

type record struct {
	Kind     Kind            `json:"kind"`
	Status   Status          `json:"status"`
	Value    json.RawMessage `json:"value,omitempty"`
	Err      string          `json:"error,omitempty"`
	Attempts int             `json:"attempts"`
}

// Coordinator owns the worker pool and the result store.
type Coordinator struct {
	redis     *redis.Client
	logger    *logging.Logger
	metrics   *metrics.Metrics
	executors map[Kind]Executor

	queue       chan job
	workers     int
	maxAttempts int
	retryDelay  time.Duration
	resultTTL   time.Duration

	mu      sync.Mutex
	waiters map[string]chan struct{}
	wg      sync.WaitGroup
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithRetryPolicy sets the attempt cap and the fixed delay between
// attempts.
func WithRetryPolicy(maxAttempts int, delay time.Duration) Option {
	return func(c *Coordinator) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if delay >= 0 {
			c.retryDelay = delay
		}
	}
}

// WithResultTTL sets how long task records survive in the store.
func WithResultTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.resultTTL = ttl
		}
	}
}

// WithMetrics attaches prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithQueueDepth sets the submission buffer size.
func WithQueueDepth(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.queue = make(chan job, n)
		}
	}
}

// NewCoordinator builds a coordinator over the given redis client.
func NewCoordinator(redisClient *redis.Client, logger *logging.Logger, opts ...Option) *Coordinator {
	if redisClient == nil {
		panic("tasks: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	c := &Coordinator{
		redis:       redisClient,
		logger:      logger,
		executors:   make(map[Kind]Executor),
		queue:       make(chan job, 256),
		workers:     4,
		maxAttempts: 3,
		retryDelay:  60 * time.Second,
		resultTTL:   15 * time.Minute,
		waiters:     make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register binds an executor to a kind. Call before Start.
func (c *Coordinator) Register(kind Kind, ex Executor) {
	if ex == nil {
		panic("tasks: executor cannot be nil")
	}
	c.executors[kind] = ex
}

// Start launches the worker pool. Workers exit when ctx is cancelled;
// Wait blocks until they have drained.
func (c *Coordinator) Start(ctx context.Context) {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.runWorker(ctx, i)
	}
}

// Wait blocks until all workers have stopped.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) taskKey(handle string) string {
	return fmt.Sprintf("task:%s", handle)
}

// Submit queues a task and returns its handle. The payload is stored as
// JSON and handed to the executor verbatim.
func (c *Coordinator) Submit(ctx context.Context, kind Kind, payload any) (string, error) {
	if _, ok := c.executors[kind]; !ok {
		return "", fmt.Errorf("tasks: no executor registered for kind %q", kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("tasks: failed to encode payload: %w", err)
	}

	handle := uuid.NewString()
	if err := c.store(ctx, handle, record{Kind: kind, Status: StatusPending}); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.waiters[handle] = make(chan struct{})
	c.mu.Unlock()

	select {
	case c.queue <- job{handle: handle, kind: kind, payload: raw, submitted: time.Now()}:
	default:
		c.dropWaiter(handle)
		_ = c.redis.Del(ctx, c.taskKey(handle)).Err()
		return "", ErrQueueFull
	}

	c.metrics.ObserveTaskSubmitted(string(kind))
	c.logger.Debug("task submitted", "kind", kind, "handle", handle)
	return handle, nil
}

// AwaitOrDefer waits up to wait for the task to reach a terminal
// status. ready reports whether the returned result is terminal; when
// it is false the caller should poll the handle later.
func (c *Coordinator) AwaitOrDefer(ctx context.Context, handle string, wait time.Duration) (res Result, ready bool, err error) {
	c.mu.Lock()
	done := c.waiters[handle]
	c.mu.Unlock()

	if done != nil {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
		case <-ctx.Done():
			return Result{}, false, ctx.Err()
		}
	}

	res, err = c.Poll(ctx, handle)
	if err != nil {
		return Result{}, false, err
	}
	return res, res.Status != StatusPending, nil
}

// Poll reports the task's current state. Polling is idempotent; a
// terminal result stays readable until its TTL lapses or the handle is
// forgotten.
func (c *Coordinator) Poll(ctx context.Context, handle string) (Result, error) {
	data, err := c.redis.Get(ctx, c.taskKey(handle)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Result{}, ErrUnknownTask
	}
	if err != nil {
		return Result{}, fmt.Errorf("tasks: failed to load task %s: %w", handle, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Result{}, fmt.Errorf("tasks: corrupt record for task %s: %w", handle, err)
	}
	return Result{Status: rec.Status, Value: rec.Value, Err: rec.Err}, nil
}

// Forget discards the task record and stops tracking the handle. A
// running execution is not cancelled; its result is simply dropped.
func (c *Coordinator) Forget(ctx context.Context, handle string) error {
	c.dropWaiter(handle)
	if err := c.redis.Del(ctx, c.taskKey(handle)).Err(); err != nil {
		return fmt.Errorf("tasks: failed to forget task %s: %w", handle, err)
	}
	return nil
}

func (c *Coordinator) dropWaiter(handle string) {
	c.mu.Lock()
	delete(c.waiters, handle)
	c.mu.Unlock()
}

func (c *Coordinator) store(ctx context.Context, handle string, rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("tasks: failed to encode record: %w", err)
	}
	if err := c.redis.Set(ctx, c.taskKey(handle), data, c.resultTTL).Err(); err != nil {
		return fmt.Errorf("tasks: failed to store task %s: %w", handle, err)
	}
	return nil
}

func (c *Coordinator) runWorker(ctx context.Context, id int) {
	defer c.wg.Done()
	log := c.logger.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-c.queue:
			c.execute(ctx, log, j)
		}
	}
}

func (c *Coordinator) execute(ctx context.Context, log *logging.Logger, j job) {
	ex := c.executors[j.kind]

	var value any
	var execErr error
	attempts := 0
	for attempts < c.maxAttempts {
		attempts++
		value, execErr = ex(ctx, j.payload)
		if execErr == nil || !registry.IsTransient(execErr) {
			break
		}
		log.Warn("task attempt failed",
			"kind", j.kind,
			"handle", j.handle,
			"attempt", attempts,
			"error", execErr,
		)
		if attempts == c.maxAttempts {
			break
		}
		c.metrics.ObserveTaskRetry(string(j.kind))
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryDelay):
		}
	}

	rec := record{Kind: j.kind, Attempts: attempts}
	if execErr != nil {
		rec.Status = StatusFailed
		rec.Err = execErr.Error()
	} else {
		raw, err := json.Marshal(value)
		if err != nil {
			rec.Status = StatusFailed
			rec.Err = fmt.Sprintf("encode result: %v", err)
		} else {
			rec.Status = StatusReady
			rec.Value = raw
		}
	}

	if err := c.store(ctx, j.handle, rec); err != nil {
		log.Error("failed to store task result", "handle", j.handle, "error", err)
	}

	c.mu.Lock()
	if done, ok := c.waiters[j.handle]; ok {
		close(done)
		delete(c.waiters, j.handle)
	}
	c.mu.Unlock()

	c.metrics.ObserveTaskCompleted(string(j.kind), string(rec.Status), time.Since(j.submitted))
	log.Debug("task finished", "kind", j.kind, "handle", j.handle, "status", rec.Status, "attempts", attempts)
}

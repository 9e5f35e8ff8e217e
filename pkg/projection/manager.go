package projection

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/auriga-id/auriga/pkg/eventstore"
	"github.com/auriga-id/auriga/pkg/observability"
	"github.com/auriga-id/auriga/pkg/runner"
)

// InstanceLister discovers tenants. The SQLite event store implements it.
type InstanceLister interface {
	Instances(ctx context.Context) ([]string, error)
}

// Manager drives all projections. It runs one worker per (projection,
// instance) pair, discovers new instances periodically, and implements
// runner.Service.
type Manager struct {
	db        *sql.DB
	querier   eventstore.Querier
	instances InstanceLister
	signal    eventstore.LiveSignal
	handlers  []Handler
	logger    runner.Logger
	metrics   *observability.Metrics
	now       func() time.Time

	discoverInterval time.Duration
	pollInterval     time.Duration
	batchSize        uint64

	mu      sync.Mutex
	running map[string]struct{} // handler/instance pairs with a live worker
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithLogger replaces the logger.
func WithLogger(l runner.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics wires the metric instruments.
func WithMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithSignal wires the live wake-up; without it workers poll.
func WithSignal(signal eventstore.LiveSignal) ManagerOption {
	return func(m *Manager) { m.signal = signal }
}

// WithDiscoverInterval sets how often new instances are looked up.
func WithDiscoverInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.discoverInterval = d }
}

// WithPollInterval bounds how long a worker sleeps without a live signal.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.pollInterval = d }
}

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates the projection manager over the shared database.
func NewManager(db *sql.DB, querier eventstore.Querier, instances InstanceLister, handlers []Handler, opts ...ManagerOption) *Manager {
	m := &Manager{
		db:               db,
		querier:          querier,
		instances:        instances,
		handlers:         handlers,
		logger:           runner.NewNoopLogger(),
		now:              time.Now,
		discoverInterval: 15 * time.Second,
		pollInterval:     5 * time.Second,
		batchSize:        200,
		running:          map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements runner.Service.
func (m *Manager) Name() string { return "projections" }

// Start launches the discovery loop. Workers for already known instances are
// started before Start returns.
func (m *Manager) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	if err := m.discover(runCtx); err != nil {
		cancel()
		return fmt.Errorf("discover instances: %w", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.discoverInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := m.discover(runCtx); err != nil {
					m.logger.Error("instance discovery failed", "error", err)
				}
			}
		}
	}()
	return nil
}

// Stop cancels all workers and waits for them to drain.
func (m *Manager) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HealthCheck implements runner.HealthChecker.
func (m *Manager) HealthCheck(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *Manager) discover(ctx context.Context) error {
	instances, err := m.instances.Instances(ctx)
	if err != nil {
		return err
	}
	for _, instanceID := range instances {
		for _, handler := range m.handlers {
			m.startWorker(ctx, handler, instanceID)
		}
	}
	return nil
}

func (m *Manager) startWorker(ctx context.Context, handler Handler, instanceID string) {
	key := handler.Name() + "/" + instanceID
	m.mu.Lock()
	if _, ok := m.running[key]; ok {
		m.mu.Unlock()
		return
	}
	m.running[key] = struct{}{}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.runWorker(ctx, handler, instanceID); err != nil && ctx.Err() == nil {
			m.logger.Error("projection worker stopped",
				"projection", handler.Name(), "instance", instanceID, "error", err)
		}
	}()
}

func (m *Manager) runWorker(ctx context.Context, handler Handler, instanceID string) error {
	cursor, err := LoadCheckpoint(ctx, m.db, handler.Name(), instanceID)
	if err != nil {
		return err
	}

	sub, err := eventstore.Subscribe(ctx, m.querier, m.signal, instanceID, cursor, eventstore.SubscribeOptions{
		PollInterval: m.pollInterval,
		BatchSize:    m.batchSize,
	})
	if err != nil {
		return err
	}
	defer sub.Close()

	for event := range sub.C {
		if err := m.applyWithRetry(ctx, handler, &event); err != nil {
			return err
		}
	}
	return sub.Err()
}

// applyWithRetry keeps the stream ordered: an event is retried with capped
// backoff until it applies or the context ends. Skipping would corrupt the
// read model.
func (m *Manager) applyWithRetry(ctx context.Context, handler Handler, event *eventstore.Event) error {
	backoff := 100 * time.Millisecond
	for {
		err := m.apply(ctx, handler, event)
		if err == nil {
			return nil
		}
		m.metrics.RecordProjectionError(ctx, handler.Name(), fmt.Sprintf("%T", err))
		m.logger.Error("projection apply failed",
			"projection", handler.Name(), "instance", event.InstanceID,
			"event", string(event.Type), "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

func (m *Manager) apply(ctx context.Context, handler Handler, event *eventstore.Event) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	applied, err := loadCheckpointTx(ctx, tx, handler.Name(), event.InstanceID)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	cursor := eventstore.CursorOf(event)
	if !applied.Before(cursor) {
		// Already applied; at-least-once delivery replayed it.
		return nil
	}

	if err := handler.Reduce(ctx, tx, event); err != nil {
		return fmt.Errorf("reduce %s: %w", event.Type, err)
	}
	if err := saveCheckpointTx(ctx, tx, handler.Name(), event.InstanceID, cursor, m.now()); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	m.metrics.RecordProjectionLag(ctx, handler.Name(), m.now().Sub(event.CreatedAt).Seconds())
	return nil
}

// CatchUp synchronously applies all pending events of one instance through
// every projection. Tests and the migrate command use it instead of the
// background workers.
func (m *Manager) CatchUp(ctx context.Context, instanceID string) error {
	for _, handler := range m.handlers {
		if err := m.catchUp(ctx, handler, instanceID); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) catchUp(ctx context.Context, handler Handler, instanceID string) error {
	cursor, err := LoadCheckpoint(ctx, m.db, handler.Name(), instanceID)
	if err != nil {
		return err
	}
	for {
		events, err := m.querier.Query(ctx, eventstore.NewFilter(instanceID).
			After(cursor.Position, cursor.InPositionOrder).
			WithLimit(m.batchSize))
		if err != nil {
			return err
		}
		for i := range events {
			if err := m.apply(ctx, handler, &events[i]); err != nil {
				return err
			}
			cursor = eventstore.CursorOf(&events[i])
		}
		if uint64(len(events)) < m.batchSize {
			return nil
		}
	}
}

// Rebuild clears the named projections for one instance (all of them when
// names is empty), resets their cursors and replays the stream. Run it with
// the background workers stopped; queries during a rebuild see the
// partially rebuilt state.
func (m *Manager) Rebuild(ctx context.Context, instanceID string, names ...string) error {
	selected := m.handlers
	if len(names) > 0 {
		byName := make(map[string]Handler, len(m.handlers))
		for _, handler := range m.handlers {
			byName[handler.Name()] = handler
		}
		selected = make([]Handler, 0, len(names))
		for _, name := range names {
			handler, ok := byName[name]
			if !ok {
				return fmt.Errorf("unknown projection %q", name)
			}
			selected = append(selected, handler)
		}
	}

	for _, handler := range selected {
		resetter, ok := handler.(Resetter)
		if !ok {
			return fmt.Errorf("projection %s cannot be rebuilt", handler.Name())
		}
		if err := m.reset(ctx, handler.Name(), resetter, instanceID); err != nil {
			return err
		}
		if err := m.catchUp(ctx, handler, instanceID); err != nil {
			return err
		}
		m.logger.Info("projection rebuilt", "projection", handler.Name(), "instance", instanceID)
	}
	return nil
}

// reset drops the projection's rows and its cursor in one transaction.
func (m *Manager) reset(ctx context.Context, name string, resetter Resetter, instanceID string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := resetter.Reset(ctx, tx, instanceID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM projection_states
		WHERE projection_name = ? AND instance_id = ?`,
		name, instanceID); err != nil {
		return fmt.Errorf("reset checkpoint %s/%s: %w", name, instanceID, err)
	}
	return tx.Commit()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MKhiriev/go-table-replicator/internal/adapter"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/models"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

const (
	errorsBufferSize   = 64
	inSyncPollInterval = 10 * time.Millisecond
)

// ReplicationOptions configures a Replication.
type ReplicationOptions struct {
	// Identifier names the persisted checkpoint.
	Identifier string
	Table      string

	BatchSize int

	// Live keeps the replication running after the initial catch-up.
	// Without it both directions stop once they are drained.
	Live bool
	// Realtime merges the change stream into the pull side. Only used
	// when Live is set.
	Realtime bool

	Pull bool
	Push bool

	// RetryTime is the delay before a failed pull or push is replayed.
	RetryTime time.Duration

	// InitialCheckpoint is used when no checkpoint has been persisted yet.
	InitialCheckpoint *models.Checkpoint
}

// Replication drives a SyncSource against a LocalStore: it pulls until the
// remote side is drained, pushes local writes one at a time, applies
// realtime changes, and retries transient failures.
type Replication struct {
	source   SyncSource
	store    LocalStore
	resolver ConflictResolver
	opts     ReplicationOptions

	logger *logger.Logger

	errs         chan error
	pushSignal   chan struct{}
	resyncSignal chan struct{}

	initialDone    chan struct{}
	initialPending atomic.Int32

	started  atomic.Bool
	done     chan struct{}
	cancelMu sync.Mutex
	cancel   context.CancelFunc
	canceled bool

	pullsInFlight atomic.Int32
	pushInFlight  atomic.Int32

	pulled    atomic.Int64
	pushed    atomic.Int64
	conflicts atomic.Int64
	failures  atomic.Int64

	mu          sync.Mutex
	checkpoint  *models.Checkpoint
	lastErr     error
	lastErrAt   time.Time
	fatalErr    error
	running     bool
	initialSync bool
}

// NewReplication validates opts and builds an idle replication. A nil
// resolver selects the default remote-wins resolver.
func NewReplication(source SyncSource, store LocalStore, resolver ConflictResolver, codec RowCodec, opts ReplicationOptions, log *logger.Logger) (*Replication, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, opts.BatchSize)
	}
	if opts.RetryTime <= 0 {
		opts.RetryTime = 5 * time.Second
	}
	if resolver == nil {
		resolver = NewDefaultConflictResolver(codec)
	}

	r := &Replication{
		source:       source,
		store:        store,
		resolver:     resolver,
		opts:         opts,
		logger:       log.WithReplication(opts.Identifier, opts.Table),
		errs:         make(chan error, errorsBufferSize),
		pushSignal:   make(chan struct{}, 1),
		resyncSignal: make(chan struct{}, 1),
		initialDone:  make(chan struct{}),
		done:         make(chan struct{}),
	}

	if opts.Pull {
		r.initialPending.Add(1)
	}
	if opts.Push {
		r.initialPending.Add(1)
	}
	if r.initialPending.Load() == 0 {
		r.setInitialSync()
	}

	return r, nil
}

// Start runs the replication in the background. Use Run to block instead.
func (r *Replication) Start(ctx context.Context) error {
	if r.started.Load() {
		return ErrAlreadyStarted
	}
	go func() {
		_ = r.Run(ctx)
	}()
	return nil
}

// Run replicates until ctx is done, Cancel is called, a fatal error
// occurs, or, when not live, both directions are drained. Cancellation is
// not an error.
func (r *Replication) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(r.done)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.cancelMu.Lock()
	if r.canceled {
		r.cancelMu.Unlock()
		return nil
	}
	r.cancel = cancel
	r.cancelMu.Unlock()

	r.setRunning(true)
	defer r.setRunning(false)

	r.logger.Info().
		Str("func", "Replication.Run").
		Int("batch_size", r.opts.BatchSize).
		Bool("live", r.opts.Live).
		Bool("realtime", r.opts.Realtime).
		Msg("replication started")

	err := r.run(runCtx)
	if err != nil && runCtx.Err() != nil && errors.Is(err, context.Canceled) {
		err = nil
	}

	if err != nil {
		r.setFatal(err)
		r.logger.Err(err).Str("func", "Replication.Run").Msg("replication stopped")
		return err
	}

	r.logger.Info().Str("func", "Replication.Run").Msg("replication finished")
	return nil
}

func (r *Replication) run(ctx context.Context) error {
	if err := r.withRetry(ctx, "load checkpoint", r.loadCheckpoint); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if r.opts.Pull {
		g.Go(func() error { return r.downstream(gctx) })
		if r.opts.Live && r.opts.Realtime {
			g.Go(func() error { return r.stream(gctx) })
		}
	}
	if r.opts.Push {
		g.Go(func() error { return r.upstream(gctx) })
	}

	return g.Wait()
}

// Cancel stops the replication and waits for it to shut down. In-flight
// requests finish or fail without advancing the checkpoint.
func (r *Replication) Cancel() {
	r.cancelMu.Lock()
	r.canceled = true
	cancel := r.cancel
	r.cancelMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if r.started.Load() {
		<-r.done
	}
}

// Errors delivers every failure the replication ran into. Errors are
// dropped when nobody reads the channel fast enough.
func (r *Replication) Errors() <-chan error {
	return r.errs
}

// NotifyLocalWrite wakes the push side. It never blocks.
func (r *Replication) NotifyLocalWrite() {
	select {
	case r.pushSignal <- struct{}{}:
	default:
	}
}

// ReSync schedules a catch-up pull from the current checkpoint. It never
// blocks.
func (r *Replication) ReSync() {
	select {
	case r.resyncSignal <- struct{}{}:
	default:
	}
}

// AwaitInitialReplication blocks until the first pull has drained the
// remote side and the first push has drained the local queue.
func (r *Replication) AwaitInitialReplication(ctx context.Context) error {
	select {
	case <-r.initialDone:
		return nil
	case <-r.done:
		select {
		case <-r.initialDone:
			return nil
		default:
		}
		if err := r.fatal(); err != nil {
			return err
		}
		return ErrReplicationStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitInSync blocks until the initial replication is done and no pull,
// push or pending local write is left.
func (r *Replication) AwaitInSync(ctx context.Context) error {
	if err := r.AwaitInitialReplication(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(inSyncPollInterval)
	defer ticker.Stop()

	for {
		idle, err := r.idle(ctx)
		if err != nil {
			return err
		}
		if idle {
			return nil
		}

		select {
		case <-ticker.C:
		case <-r.done:
			if err := r.fatal(); err != nil {
				return err
			}
			return ErrReplicationStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Replication) idle(ctx context.Context) (bool, error) {
	if r.pullsInFlight.Load() > 0 || r.pushInFlight.Load() > 0 ||
		len(r.resyncSignal) > 0 || len(r.pushSignal) > 0 {
		return false, nil
	}
	if !r.opts.Push {
		return true, nil
	}

	pending, err := r.store.PendingWrites(ctx, 1)
	if err != nil {
		return false, fmt.Errorf("check pending writes: %w", err)
	}
	return len(pending) == 0, nil
}

// Status implements ReplicationService.
func (r *Replication) Status() models.ReplicationStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := models.ReplicationStatus{
		ReplicationID:   r.opts.Identifier,
		Table:           r.opts.Table,
		Running:         r.running,
		Live:            r.opts.Live,
		InitialSyncDone: r.initialSync,
		PulledTotal:     r.pulled.Load(),
		PushedTotal:     r.pushed.Load(),
		ConflictsTotal:  r.conflicts.Load(),
		ErrorsTotal:     r.failures.Load(),
	}
	if r.checkpoint != nil {
		cp := *r.checkpoint
		status.Checkpoint = &cp
	}
	if r.lastErr != nil {
		at := r.lastErrAt
		status.LastError = r.lastErr.Error()
		status.LastErrorAt = &at
	}
	if r.fatalErr != nil {
		status.FatalError = r.fatalErr.Error()
	}
	return status
}

// ── pull side ───────────────────────────────────────────────────────────────

func (r *Replication) loadCheckpoint(ctx context.Context) error {
	cp, err := r.store.LoadCheckpoint(ctx, r.opts.Identifier)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if cp == nil {
		cp = r.opts.InitialCheckpoint
	}
	r.setCheckpoint(cp)
	return nil
}

func (r *Replication) downstream(ctx context.Context) error {
	var first sync.Once
	for {
		if err := r.withRetry(ctx, "pull", r.pullUntilDrained); err != nil {
			return err
		}
		first.Do(r.markInitial)

		if !r.opts.Live {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.resyncSignal:
		}
	}
}

// pullUntilDrained pulls batches until one comes back short. The
// checkpoint is saved only after a batch has been applied.
func (r *Replication) pullUntilDrained(ctx context.Context) error {
	r.pullsInFlight.Add(1)
	defer r.pullsInFlight.Add(-1)

	for {
		cp := r.currentCheckpoint()

		res, err := r.source.Pull(ctx, cp, r.opts.BatchSize)
		if err != nil {
			return err
		}

		if len(res.Documents) > 0 {
			if err = r.store.ApplyRemote(ctx, res.Documents); err != nil {
				return fmt.Errorf("apply pulled documents: %w", err)
			}
			if res.Checkpoint != nil {
				if err = r.store.SaveCheckpoint(ctx, r.opts.Identifier, *res.Checkpoint); err != nil {
					return fmt.Errorf("save checkpoint: %w", err)
				}
				r.setCheckpoint(res.Checkpoint)
			}
			r.pulled.Add(int64(len(res.Documents)))
		}

		if len(res.Documents) < r.opts.BatchSize {
			return nil
		}
	}
}

// stream applies realtime changes as they arrive. Their checkpoints are
// not persisted: a realtime event may overtake rows that an ongoing pull
// has not reached yet. A catch-up pull is scheduled instead.
func (r *Replication) stream(ctx context.Context) error {
	var items <-chan models.PullResult
	err := r.withRetry(ctx, "subscribe", func(ctx context.Context) error {
		var err error
		items, err = r.source.ChangeStream(ctx)
		return err
	})
	if errors.Is(err, ErrChangeFeedDisabled) {
		r.logger.Info().Str("func", "Replication.stream").Msg("no change feed configured, relying on pulls")
		return nil
	}
	if err != nil {
		return err
	}

	for item := range items {
		if err := r.store.ApplyRemote(ctx, item.Documents); err != nil {
			if ctx.Err() != nil {
				continue
			}
			r.reportError("realtime", err)
		}
		r.ReSync()
	}

	return nil
}

// ── push side ───────────────────────────────────────────────────────────────

func (r *Replication) upstream(ctx context.Context) error {
	var first sync.Once
	for {
		if err := r.withRetry(ctx, "push", r.drainPushQueue); err != nil {
			return err
		}
		first.Do(r.markInitial)

		if !r.opts.Live {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.pushSignal:
		}
	}
}

// drainPushQueue pushes pending local writes one at a time until none is
// left. A conflict goes through the resolver and the outcome is stored, so
// the next round pushes the resolved document against the fetched row.
func (r *Replication) drainPushQueue(ctx context.Context) error {
	r.pushInFlight.Add(1)
	defer r.pushInFlight.Add(-1)

	for {
		writes, err := r.store.PendingWrites(ctx, 1)
		if err != nil {
			return fmt.Errorf("read pending writes: %w", err)
		}
		if len(writes) == 0 {
			return nil
		}
		write := writes[0]

		conflicts, err := r.source.Push(ctx, []models.WriteRow{write.Row})
		if err != nil {
			return err
		}

		if len(conflicts) == 0 {
			if err = r.store.AckWrite(ctx, write); err != nil {
				return fmt.Errorf("acknowledge write: %w", err)
			}
			r.pushed.Add(1)
			continue
		}

		master := conflicts[0]
		resolution, err := r.resolver.Resolve(ctx, models.ConflictInput{
			NewDocumentState: write.Row.NewDocumentState,
			RealMasterState:  master,
		})
		if err != nil {
			return fmt.Errorf("resolve conflict: %w", err)
		}

		if err = r.store.ResolveConflict(ctx, write, master, resolution); err != nil {
			return fmt.Errorf("store conflict resolution: %w", err)
		}
		r.conflicts.Add(1)

		r.logger.Info().
			Str("func", "Replication.drainPushQueue").
			Bool("equal", resolution.IsEqual).
			Msg("write conflict resolved")
	}
}

// ── helpers ─────────────────────────────────────────────────────────────────

// withRetry runs op until it succeeds, fails with a fatal error, or ctx is
// done. Every failure is reported on the error channel.
func (r *Replication) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	return retry.Do(ctx, retry.NewConstant(r.opts.RetryTime), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.reportError(op, err)
		if IsFatal(err) || errors.Is(err, ErrChangeFeedDisabled) {
			return err
		}
		return retry.RetryableError(err)
	})
}

func (r *Replication) reportError(op string, err error) {
	if errors.Is(err, ErrChangeFeedDisabled) {
		return
	}

	r.failures.Add(1)
	r.mu.Lock()
	r.lastErr = err
	r.lastErrAt = time.Now()
	r.mu.Unlock()

	event := r.logger.Error()
	if adapter.IsRetryable(err) {
		event = r.logger.Warn()
	}
	event.Err(err).
		Str("func", "Replication.reportError").
		Str("op", op).
		Bool("fatal", IsFatal(err)).
		Msg("replication error")

	select {
	case r.errs <- fmt.Errorf("%s: %w", op, err):
	default:
	}
}

// markInitial is called once per enabled direction after its first pass.
func (r *Replication) markInitial() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialPending.Add(-1) == 0 {
		r.initialSync = true
		close(r.initialDone)
	}
}

// setInitialSync is markInitial for a replication with nothing to do.
func (r *Replication) setInitialSync() {
	r.initialSync = true
	close(r.initialDone)
}

func (r *Replication) currentCheckpoint() *models.Checkpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkpoint
}

func (r *Replication) setCheckpoint(cp *models.Checkpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkpoint = cp
}

func (r *Replication) setRunning(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = running
}

func (r *Replication) setFatal(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatalErr = err
}

func (r *Replication) fatal() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatalErr
}

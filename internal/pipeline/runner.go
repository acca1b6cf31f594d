package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/StockScanner/internal/domain"
	"github.com/shaiso/StockScanner/internal/engine"
	"github.com/shaiso/StockScanner/internal/lock"
	"github.com/shaiso/StockScanner/internal/repo"
	"github.com/shaiso/StockScanner/internal/stages"
	"github.com/shaiso/StockScanner/internal/telemetry"
)

// Store — история runs и стадий.
type Store interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	UpdateRun(ctx context.Context, run *domain.Run) error
	GetRunByIdempotencyKey(ctx context.Context, key string) (*domain.Run, error)
	CreateStage(ctx context.Context, stage *domain.Stage) error
	UpdateStage(ctx context.Context, stage *domain.Stage) error
}

// Notifier сообщает о завершённых run.
type Notifier interface {
	PublishRunFinished(ctx context.Context, run *domain.Run) error
}

// Runner выполняет run по trigger.
type Runner struct {
	def      *domain.Definition
	order    []*domain.StageDef
	registry *stages.Registry
	store    Store
	gate     lock.Gate
	lockKey  string
	policy   lock.Policy
	poll     time.Duration
	secrets  domain.SecretBindings
	workDir  string
	notifier Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	active  map[uuid.UUID]domain.TriggerKind
	stopped bool
	wg      sync.WaitGroup
}

// Config — конфигурация Runner.
type Config struct {
	Definition *domain.Definition // default: engine.DefaultDefinition()
	Registry   *stages.Registry
	Store      Store

	Gate    lock.Gate   // default: lock.NewMemoryGate()
	LockKey string      // default: lock.DefaultKey
	Policy  lock.Policy // default: lock.PolicySkip
	Poll    time.Duration

	Secrets domain.SecretBindings

	// WorkDir — корень каталогов run (<WorkDir>/<run_id>).
	WorkDir string

	Notifier Notifier
	Logger   *slog.Logger
}

// New создаёт Runner и проверяет определение pipeline.
func New(cfg Config) (*Runner, error) {
	def := cfg.Definition
	if def == nil {
		def = engine.DefaultDefinition()
	}
	if err := engine.Validate(def); err != nil {
		return nil, fmt.Errorf("invalid pipeline definition: %w", err)
	}
	order, err := engine.Order(def)
	if err != nil {
		return nil, err
	}

	if cfg.Registry == nil {
		return nil, errors.New("stage registry is required")
	}
	for _, sd := range order {
		if _, err := cfg.Registry.Get(sd.Type); err != nil {
			return nil, fmt.Errorf("stage %s: %w", sd.ID, err)
		}
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}

	gate := cfg.Gate
	if gate == nil {
		gate = lock.NewMemoryGate()
	}
	lockKey := cfg.LockKey
	if lockKey == "" {
		lockKey = lock.DefaultKey
	}
	policy := cfg.Policy
	if policy == "" {
		policy = lock.PolicySkip
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		def:      def,
		order:    order,
		registry: cfg.Registry,
		store:    cfg.Store,
		gate:     gate,
		lockKey:  lockKey,
		policy:   policy,
		poll:     cfg.Poll,
		secrets:  cfg.Secrets,
		workDir:  cfg.WorkDir,
		notifier: cfg.Notifier,
		logger:   logger,
		active:   make(map[uuid.UUID]domain.TriggerKind),
	}, nil
}

// Definition возвращает определение pipeline.
func (r *Runner) Definition() *domain.Definition {
	return r.def
}

// Launch запускает run в фоне и сразу возвращается.
// Реализует trigger.Launcher и mq.Launcher.
func (r *Runner) Launch(ctx context.Context, t domain.Trigger) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return ErrRunnerStopped
	}
	r.wg.Add(1)
	r.mu.Unlock()

	// run не должен прерываться вместе с HTTP запросом или сообщением
	runCtx := context.WithoutCancel(ctx)

	go func() {
		defer r.wg.Done()
		if _, err := r.Execute(runCtx, t); err != nil {
			if errors.Is(err, ErrDuplicateTrigger) {
				r.logger.Debug("trigger already handled", "idempotency_key", t.IdempotencyKey)
				return
			}
			r.logger.Error("run execution failed",
				"trigger", t.Kind,
				"idempotency_key", t.IdempotencyKey,
				"error", err,
			)
		}
	}()
	return nil
}

// Shutdown перестаёт принимать run и ждёт завершения активных
// или отмены ctx.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveRuns возвращает количество выполняющихся run.
func (r *Runner) ActiveRuns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Execute синхронно выполняет один run.
//
// Провал стадии не является ошибкой Execute: он отражается в статусе run.
// Ошибка возвращается только при сбое хранилища или повторном trigger.
func (r *Runner) Execute(ctx context.Context, t domain.Trigger) (*domain.Run, error) {
	if t.IdempotencyKey != "" {
		existing, err := r.store.GetRunByIdempotencyKey(ctx, t.IdempotencyKey)
		if err == nil {
			return existing, fmt.Errorf("%w: %s", ErrDuplicateTrigger, t.IdempotencyKey)
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("check idempotency: %w", err)
		}
	}

	run := domain.NewRun(t)
	run.ManifestDigest = r.def.Manifest.Digest()

	if err := r.store.CreateRun(ctx, run); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTrigger, t.IdempotencyKey)
		}
		return nil, fmt.Errorf("create run: %w", err)
	}

	logger := telemetry.WithRunID(r.logger, run.ID.String())
	logger.Info("run created",
		"trigger", run.Trigger,
		"actor", run.Actor,
		"idempotency_key", run.IdempotencyKey,
	)

	r.track(run.ID, run.Trigger)
	defer r.untrack(run.ID)

	lease, err := lock.Acquire(ctx, r.gate, r.lockKey, r.policy, r.poll)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			run.MarkSkipped(reasonOverlap)
			logger.Warn("run skipped", "reason", reasonOverlap)
		} else {
			run.MarkFailed("acquire lock: " + err.Error())
			logger.Error("lock failed", "error", err)
		}
		return run, r.finish(ctx, logger, run)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release lock failed", "error", err)
		}
	}()

	// потеря блокировки останавливает стадии, история пишется через ctx
	stageCtx, stopStages := context.WithCancelCause(ctx)
	defer stopStages(nil)
	go func() {
		select {
		case <-lease.Lost():
			logger.Error("run lock lost, cancelling stages")
			stopStages(ErrLockLost)
		case <-stageCtx.Done():
		}
	}()

	records, err := r.createStages(ctx, run)
	if err != nil {
		run.MarkFailed(err.Error())
		return run, errors.Join(err, r.finish(ctx, logger, run))
	}

	run.MarkRunning()
	if err := r.store.UpdateRun(ctx, run); err != nil {
		err = fmt.Errorf("update run: %w", err)
		r.abandonStages(ctx, logger, records, err.Error())
		run.MarkFailed(err.Error())
		return run, errors.Join(err, r.finish(ctx, logger, run))
	}
	logger.Info("run started", "stages", len(records))

	state := newRunState()
	workDir := r.runDir(run.ID)

	for i, sd := range r.order {
		stage := records[i]

		if cause := context.Cause(stageCtx); errors.Is(cause, ErrLockLost) {
			stage.MarkNotRun(ErrLockLost.Error())
			logger.Info("stage not run", "stage", sd.ID, "reason", ErrLockLost)
		} else if ok, blocked := state.ready(sd); !ok {
			stage.MarkNotRun(reasonNeeds + strings.Join(blocked, ", "))
			logger.Info("stage not run", "stage", sd.ID, "blocked_by", blocked)
		} else {
			r.runStage(stageCtx, telemetry.WithStage(logger, sd.ID, sd.Type), run, sd, stage, workDir)
		}

		state.record(stage)
		if err := r.store.UpdateStage(ctx, stage); err != nil {
			logger.Error("update stage failed", "stage", sd.ID, "error", err)
		}
	}

	switch {
	case errors.Is(context.Cause(stageCtx), ErrLockLost):
		run.MarkFailed(ErrLockLost.Error())
	case state.succeeded():
		run.MarkSucceeded()
	default:
		run.MarkFailed(state.failure())
	}
	return run, r.finish(ctx, logger, run)
}

// abandonStages закрывает ещё не начатые стадии, когда run не может стартовать.
func (r *Runner) abandonStages(ctx context.Context, logger *slog.Logger, records []*domain.Stage, reason string) {
	for _, stage := range records {
		if stage.Status != domain.StageStatusPending {
			continue
		}
		stage.MarkNotRun(reason)
		if err := r.store.UpdateStage(ctx, stage); err != nil {
			logger.Error("update stage failed", "stage", stage.Name, "error", err)
		}
	}
}

// createStages создаёт PENDING записи для всех стадий до начала выполнения.
func (r *Runner) createStages(ctx context.Context, run *domain.Run) ([]*domain.Stage, error) {
	records := make([]*domain.Stage, len(r.order))
	for i, sd := range r.order {
		records[i] = domain.NewStage(run.ID, sd.ID, sd.Type, i)
		if err := r.store.CreateStage(ctx, records[i]); err != nil {
			return nil, fmt.Errorf("create stage %s: %w", sd.ID, err)
		}
	}
	return records, nil
}

// runStage выполняет одну стадию и фиксирует её результат в stage.
func (r *Runner) runStage(ctx context.Context, logger *slog.Logger, run *domain.Run, sd *domain.StageDef, stage *domain.Stage, workDir string) {
	stage.MarkRunning()
	if err := r.store.UpdateStage(ctx, stage); err != nil {
		logger.Warn("update stage failed", "error", err)
	}
	logger.Info("stage started")

	impl, err := r.registry.Get(sd.Type)
	if err != nil {
		stage.MarkFailed(err.Error(), nil)
		return
	}

	stageCtx := ctx
	if sd.TimeoutSec > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, time.Duration(sd.TimeoutSec)*time.Second)
		defer cancel()
	}

	res, err := impl.Execute(stageCtx, &stages.Request{
		RunID:    run.ID,
		StageID:  sd.ID,
		Config:   sd.Config,
		Secrets:  r.secrets,
		Manifest: r.def.Manifest,
		WorkDir:  workDir,
		Logger:   logger,
	})

	var outputs map[string]any
	if res != nil {
		outputs = res.Outputs
	}

	if err != nil {
		stage.MarkFailed(err.Error(), outputs)
		logger.Error("stage failed", "duration", stage.Duration().String(), "error", err)
	} else {
		stage.MarkSucceeded(outputs)
		logger.Info("stage succeeded", "duration", stage.Duration().String())
	}
	telemetry.ObserveStage(sd.ID, string(stage.Status), stage.Duration())
}

// finish сохраняет терминальный run, обновляет метрики и уведомляет подписчиков.
func (r *Runner) finish(ctx context.Context, logger *slog.Logger, run *domain.Run) error {
	if !run.IsFinished() {
		return fmt.Errorf("finish run in status %s", run.Status)
	}
	telemetry.ObserveRun(string(run.Trigger), string(run.Status), run.Duration())

	logger.Info("run finished",
		"status", run.Status,
		"duration", run.Duration().String(),
		"error", run.Error,
	)

	if err := r.store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	if r.notifier != nil {
		if err := r.notifier.PublishRunFinished(ctx, run); err != nil {
			// история уже записана, событие не критично
			logger.Warn("publish run.finished failed", "error", err)
		}
	}
	return nil
}

func (r *Runner) runDir(id uuid.UUID) string {
	if r.workDir == "" {
		return ""
	}
	return filepath.Join(r.workDir, id.String())
}

func (r *Runner) track(id uuid.UUID, kind domain.TriggerKind) {
	r.mu.Lock()
	r.active[id] = kind
	r.mu.Unlock()
}

func (r *Runner) untrack(id uuid.UUID) {
	r.mu.Lock()
	delete(r.active, id)
	r.mu.Unlock()
}

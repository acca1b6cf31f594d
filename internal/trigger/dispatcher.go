package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/StockScanner/internal/domain"
	"github.com/shaiso/StockScanner/internal/lock"
	"github.com/shaiso/StockScanner/internal/telemetry"
)

// DefaultCatchUp — насколько поздно ещё допустимо выполнить пропущенное срабатывание.
const DefaultCatchUp = time.Hour

// Launcher запускает run по trigger.
type Launcher interface {
	Launch(ctx context.Context, t domain.Trigger) error
}

// Dispatcher — источник trigger по расписанию и вручную.
type Dispatcher struct {
	schedule  *Schedule
	launcher  Launcher
	leader    lock.Gate
	leaderKey string
	catchUp   time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	nextDue time.Time
}

// Config — конфигурация Dispatcher.
type Config struct {
	Schedule *Schedule
	Launcher Launcher

	// Leader — если задан, тики обрабатывает только держатель ключа LeaderKey.
	Leader    lock.Gate
	LeaderKey string // default: "stock-scanner-dispatcher"

	CatchUp  time.Duration // default: 1h
	Interval time.Duration // default: 1s
	Now      func() time.Time
	Logger   *slog.Logger
}

// New создаёт Dispatcher.
func New(cfg Config) *Dispatcher {
	catchUp := cfg.CatchUp
	if catchUp <= 0 {
		catchUp = DefaultCatchUp
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	leaderKey := cfg.LeaderKey
	if leaderKey == "" {
		leaderKey = lock.DefaultKey + "-dispatcher"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		schedule:  cfg.Schedule,
		launcher:  cfg.Launcher,
		leader:    cfg.Leader,
		leaderKey: leaderKey,
		catchUp:   catchUp,
		interval:  interval,
		now:       now,
		logger:    logger,
	}
}

// Schedule возвращает расписание Dispatcher.
func (d *Dispatcher) Schedule() *Schedule {
	return d.schedule
}

// NextDue возвращает время следующего планового срабатывания.
// До первого Tick вычисляется от текущего времени.
func (d *Dispatcher) NextDue() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.nextDue.IsZero() {
		return d.firstDue(d.now())
	}
	return d.nextDue
}

// firstDue — ближайшее срабатывание, включая текущую минуту.
func (d *Dispatcher) firstDue(now time.Time) time.Time {
	return d.schedule.Next(now.Truncate(time.Minute).Add(-time.Second))
}

// Tick проверяет расписание на момент now.
//
// Если наступило время nextDue, запускает schedule trigger и
// сдвигает nextDue на следующее срабатывание после now.
// Срабатывание, опоздавшее больше чем на catch-up окно, пропускается.
// За один тик запускается не больше одного run.
//
// Возвращает true, если trigger был отправлен в Launcher.
func (d *Dispatcher) Tick(ctx context.Context, now time.Time) (bool, error) {
	if d.launcher == nil {
		return false, ErrNoLauncher
	}

	d.mu.Lock()
	if d.nextDue.IsZero() {
		d.nextDue = d.firstDue(now)
		d.logger.Info("schedule armed",
			"cron", d.schedule.String(),
			"next_due", d.nextDue.Format(time.RFC3339),
		)
	}
	if now.Before(d.nextDue) {
		d.mu.Unlock()
		return false, nil
	}
	due := d.nextDue
	d.nextDue = d.schedule.Next(now)
	next := d.nextDue
	d.mu.Unlock()

	if late := now.Sub(due); late > d.catchUp {
		d.logger.Warn("missed schedule fire dropped",
			"scheduled_at", due.Format(time.RFC3339),
			"late", late.String(),
			"next_due", next.Format(time.RFC3339),
		)
		return false, nil
	}

	t := domain.NewScheduleTrigger(due, now)
	d.logger.Info("schedule fired",
		"scheduled_at", due.Format(time.RFC3339),
		"idempotency_key", t.IdempotencyKey,
		"next_due", next.Format(time.RFC3339),
	)
	telemetry.IncTrigger(string(domain.TriggerSchedule))

	if err := d.launcher.Launch(ctx, t); err != nil {
		return true, fmt.Errorf("launch scheduled run: %w", err)
	}
	return true, nil
}

// Manual запускает run вручную. Расписание не проверяется.
func (d *Dispatcher) Manual(ctx context.Context, actor string) (domain.Trigger, error) {
	if d.launcher == nil {
		return domain.Trigger{}, ErrNoLauncher
	}

	t := domain.NewManualTrigger(actor, d.now())
	d.logger.Info("manual dispatch",
		"actor", t.Actor,
		"idempotency_key", t.IdempotencyKey,
	)
	telemetry.IncTrigger(string(domain.TriggerManual))

	if err := d.launcher.Launch(ctx, t); err != nil {
		return t, fmt.Errorf("launch manual run: %w", err)
	}
	return t, nil
}

// Dispatch реализует ручной запуск для HTTP API и очереди.
func (d *Dispatcher) Dispatch(ctx context.Context, actor string) (domain.Trigger, error) {
	return d.Manual(ctx, actor)
}

// Run запускает цикл тиков до отмены ctx.
//
// Если задан Leader, тик выполняется только после захвата
// лидерского ключа; lease удерживается до выхода из Run.
// Потерянный lease снимает лидерство, ключ захватывается заново.
func (d *Dispatcher) Run(ctx context.Context) error {
	tk := time.NewTicker(d.interval)
	defer tk.Stop()

	var lease lock.Lease
	var lost <-chan struct{}
	defer func() {
		if lease != nil {
			_ = lease.Release(context.Background())
		}
	}()

	resign := func() {
		d.logger.Error("leader lock lost", "key", d.leaderKey)
		_ = lease.Release(context.Background())
		lease, lost = nil, nil
	}

	d.logger.Info("dispatcher started",
		"cron", d.schedule.String(),
		"timezone", d.schedule.Location().String(),
		"catch_up", d.catchUp.String(),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return nil
		case <-lost:
			resign()
		case <-tk.C:
			if lease != nil {
				select {
				case <-lost:
					resign()
				default:
				}
			}
			if d.leader != nil && lease == nil {
				l, ok, err := d.leader.TryAcquire(ctx, d.leaderKey)
				if err != nil {
					d.logger.Warn("leader lock failed", "error", err)
					continue
				}
				if !ok {
					// не лидер
					continue
				}
				lease, lost = l, l.Lost()
				d.logger.Info("became leader", "key", d.leaderKey)
			}

			if _, err := d.Tick(ctx, d.now()); err != nil {
				d.logger.Error("tick failed", "error", err)
			}
		}
	}
}

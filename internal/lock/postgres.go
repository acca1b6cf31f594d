package lock

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSessionCheck — интервал проверки сессии, которая держит advisory lock.
const DefaultSessionCheck = 10 * time.Second

// PostgresGate — advisory lock в PostgreSQL.
//
// Advisory lock принадлежит сессии, поэтому соединение
// удерживается из пула до Release. Пока lease жив, сессия
// периодически проверяется; разрыв означает потерю блокировки.
type PostgresGate struct {
	pool  *pgxpool.Pool
	check time.Duration
}

// NewPostgresGate создаёт PostgresGate.
func NewPostgresGate(pool *pgxpool.Pool) *PostgresGate {
	return &PostgresGate{pool: pool, check: DefaultSessionCheck}
}

// AdvisoryKey преобразует строковый ключ в int64 для pg_advisory_lock.
func AdvisoryKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

// TryAcquire реализует Gate.
func (g *PostgresGate) TryAcquire(ctx context.Context, key string) (Lease, bool, error) {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	id := AdvisoryKey(key)

	var ok bool
	if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", id).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("pg_try_advisory_lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}

	l := &postgresLease{
		conn: conn,
		id:   id,
		stop: make(chan struct{}),
		done: make(chan struct{}),
		lost: make(chan struct{}),
	}
	go l.watch(g.check)

	return l, true, nil
}

type postgresLease struct {
	conn *pgxpool.Conn
	id   int64
	stop chan struct{}
	done chan struct{}
	lost chan struct{}
	once sync.Once
	err  error
}

// watch пингует сессию. Соединение не используется конкурентно:
// Release ждёт выхода watch.
func (l *postgresLease) watch(every time.Duration) {
	defer close(l.done)

	tk := time.NewTicker(every)
	defer tk.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-tk.C:
			ctx, cancel := context.WithTimeout(context.Background(), every)
			err := l.conn.Ping(ctx)
			cancel()
			if err != nil {
				close(l.lost)
				return
			}
		}
	}
}

func (l *postgresLease) Lost() <-chan struct{} {
	return l.lost
}

func (l *postgresLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		close(l.stop)
		<-l.done
		defer l.conn.Release()
		if _, err := l.conn.Exec(ctx, "select pg_advisory_unlock($1)", l.id); err != nil {
			l.err = fmt.Errorf("pg_advisory_unlock: %w", err)
		}
	})
	return l.err
}

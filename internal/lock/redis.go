package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLeaseTTL — время жизни lease в Redis.
const DefaultLeaseTTL = 30 * time.Second

// Снимает ключ, только если им владеет ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
else
	return 0
end`)

// Продлевает ключ, только если им владеет ARGV[1].
var renewScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
else
	return 0
end`)

// RedisGate — lease в Redis.
//
// Пока lease удерживается, фоновая горутина продлевает TTL
// каждые TTL/3. Если процесс упал, ключ истечёт сам.
// Lease считается потерянным, если ключ перехвачен или продлить
// его не удаётся дольше TTL.
type RedisGate struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// RedisConfig — конфигурация RedisGate.
type RedisConfig struct {
	Client *redis.Client
	TTL    time.Duration // default: 30s
	Logger *slog.Logger
}

// NewRedisGate создаёт RedisGate.
func NewRedisGate(cfg RedisConfig) *RedisGate {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisGate{rdb: cfg.Client, ttl: ttl, logger: logger}
}

// LeaseKey возвращает ключ Redis для ресурса.
func LeaseKey(key string) string {
	return "lease:" + key
}

// TryAcquire реализует Gate.
func (g *RedisGate) TryAcquire(ctx context.Context, key string) (Lease, bool, error) {
	owner := uuid.NewString()

	ok, err := g.rdb.SetNX(ctx, LeaseKey(key), owner, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	l := &redisLease{
		gate:  g,
		key:   LeaseKey(key),
		owner: owner,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		lost:  make(chan struct{}),
	}
	go l.keepAlive()

	return l, true, nil
}

type redisLease struct {
	gate  *RedisGate
	key   string
	owner string
	stop  chan struct{}
	done  chan struct{}
	lost  chan struct{}
	once  sync.Once
	err   error
}

func (l *redisLease) keepAlive() {
	defer close(l.done)

	tk := time.NewTicker(l.gate.ttl / 3)
	defer tk.Stop()

	renewed := time.Now()
	for {
		select {
		case <-l.stop:
			return
		case <-tk.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.gate.ttl/3)
			n, err := renewScript.Run(ctx, l.gate.rdb, []string{l.key}, l.owner, l.gate.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				l.gate.logger.Warn("lease renew failed", "key", l.key, "error", err)
				if time.Since(renewed) >= l.gate.ttl {
					l.gate.logger.Error("lease lost: not renewed within ttl", "key", l.key)
					close(l.lost)
					return
				}
				continue
			}
			if n != 1 {
				l.gate.logger.Error("lease lost", "key", l.key)
				close(l.lost)
				return
			}
			renewed = time.Now()
		}
	}
}

func (l *redisLease) Lost() <-chan struct{} {
	return l.lost
}

func (l *redisLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		close(l.stop)
		<-l.done
		if err := releaseScript.Run(ctx, l.gate.rdb, []string{l.key}, l.owner).Err(); err != nil {
			l.err = fmt.Errorf("redis release: %w", err)
		}
	})
	return l.err
}

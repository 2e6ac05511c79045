package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ saga.Locker = (*RedisSagaLocker)(nil)

// releaseScript deletes the lock only if this owner still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript pushes the expiry out only while this owner holds the lock.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisSagaLocker serializes saga operations across processes with SET NX
// leases. The holder renews its lease every renew interval until release, so
// a slow step keeps the lock. A lease expires after ttl if its holder dies.
type RedisSagaLocker struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	renew  time.Duration
}

type RedisLockerConfig struct {
	Prefix        string
	TTL           time.Duration
	Wait          time.Duration
	RetryInterval time.Duration
	// RenewInterval defaults to a third of TTL.
	RenewInterval time.Duration
}

func NewRedisSagaLocker(client redis.Cmdable, cfg RedisLockerConfig) *RedisSagaLocker {
	if cfg.Prefix == "" {
		cfg.Prefix = "saga:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 25 * time.Millisecond
	}
	if cfg.RenewInterval <= 0 || cfg.RenewInterval >= cfg.TTL {
		cfg.RenewInterval = cfg.TTL / 3
	}
	if cfg.RenewInterval <= 0 {
		cfg.RenewInterval = cfg.TTL
	}
	return &RedisSagaLocker{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		wait:   cfg.Wait,
		retry:  cfg.RetryInterval,
		renew:  cfg.RenewInterval,
	}
}

// Lock polls until the lease is acquired, the wait budget runs out or ctx is
// done. Giving up is reported as saga.ErrConcurrentUpdate.
func (l *RedisSagaLocker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	lockKey := l.prefix + key
	token := models.GenerateUUID().String()

	var deadline time.Time
	if l.wait > 0 {
		deadline = time.Now().Add(l.wait)
	}

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to acquire lock %s", lockKey)
		}
		if ok {
			break
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, errors.Wrapf(saga.ErrConcurrentUpdate, "lock %s is held", key)
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrapf(saga.ErrConcurrentUpdate, "lock %s: %v", key, ctx.Err())
		case <-timer.C:
		}
	}

	stop := make(chan struct{})
	renewed := make(chan struct{})
	go l.keepAlive(lockKey, token, stop, renewed)

	var once sync.Once
	var releaseErr error
	release := func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			<-renewed
			if err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
				releaseErr = errors.Wrapf(err, "failed to release lock %s", lockKey)
			}
		})
		return releaseErr
	}

	return release, nil
}

// keepAlive extends the lease until stop is closed or the lease is lost.
func (l *RedisSagaLocker) keepAlive(lockKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.renew)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.renew)
		held, err := renewScript.Run(ctx, l.client, []string{lockKey}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err == nil && held == 0 {
			return
		}
	}
}

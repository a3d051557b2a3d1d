package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when the database does not answer a ping.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// PoolStat reports acquired and maximum connections.
type PoolStat func() (acquired, total int32)

// PgxPoolStat adapts a pgx pool to PoolStat.
func PgxPoolStat(pool *pgxpool.Pool) PoolStat {
	return func() (int32, int32) {
		s := pool.Stat()
		return s.AcquiredConns(), s.MaxConns()
	}
}

// PoolSaturationCheck fails when the share of acquired connections reaches
// limit (0..1).
func PoolSaturationCheck(stat PoolStat, limit float64) CheckFunc {
	return func(context.Context) error {
		acquired, total := stat()
		if total <= 0 {
			return nil
		}
		if ratio := float64(acquired) / float64(total); ratio >= limit {
			return errors.Errorf("pool saturated: %d of %d connections acquired", acquired, total)
		}
		return nil
	}
}

package jobs

import (
	"context"
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// TokenCleaner deletes expired API tokens; auth.TokenManager implements it
type TokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// TokenCleanup removes expired tokens and adds the count to expired, which may be nil
func TokenCleanup(tokens TokenCleaner, expired prometheus.Counter, logger *logrus.Logger) Job {
	return func(ctx context.Context) error {
		n, err := tokens.CleanupExpiredTokens(ctx)
		if err != nil {
			return err
		}
		if expired != nil {
			expired.Add(float64(n))
		}
		if n > 0 && logger != nil {
			logger.Infof("Deleted %d expired API tokens", n)
		}
		return nil
	}
}

// PoolStats samples connection pool statistics into record
func PoolStats(db *sql.DB, record func(sql.DBStats)) Job {
	return func(ctx context.Context) error {
		record(db.Stats())
		return nil
	}
}

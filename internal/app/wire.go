package app

import (
	"context"
	"fmt"

	"tablet-tracker/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewServices builds the PostgreSQL-backed core services that share one pool.
func NewServices(pool *pgxpool.Pool, tolerance int, log logrus.FieldLogger) Services {
	matcher := core.NewBagMatcher()
	agg := core.NewAggregationEngine(pool, log)
	return Services{
		Employees:     core.NewEmployeeService(pool),
		Submissions:   core.NewSubmissionService(pool, matcher, agg, log),
		Receiving:     core.NewReceivingService(pool, agg, log),
		PurchaseOrder: core.NewPurchaseOrderService(pool),
		Aggregation:   agg,
		Reconcile:     core.NewReconciliationService(pool, matcher, agg, log),
		Reporting:     core.NewReportingService(pool, tolerance),
		Products:      core.NewProductService(pool),
	}
}

// NewJobLockerFromURL returns a Redis-backed JobLocker when redisURL is set and a
// process-local one otherwise. The returned close func releases the Redis client.
func NewJobLockerFromURL(ctx context.Context, redisURL string, log logrus.FieldLogger) (JobLocker, func(), error) {
	if redisURL == "" {
		log.Warn("REDIS_URL not set; job locks only guard this process")
		return NewLocalJobLocker(), func() {}, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	log.WithField("addr", opts.Addr).Info("redis connected")
	return NewRedisJobLocker(rdb, log), func() { rdb.Close() }, nil
}

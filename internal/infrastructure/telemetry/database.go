package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig controls database instrumentation
type DBConfig struct {
	// Tracing registers otelgorm so every statement becomes a span
	Tracing bool
	// LogFullSQL keeps bound values in span statements. Development only,
	// they include password hashes and wallet addresses.
	LogFullSQL         bool
	DBSystem           string
	SlowQueryThreshold time.Duration
	PoolStatsInterval  time.Duration
}

func (c DBConfig) withDefaults() DBConfig {
	if c.DBSystem == "" {
		c.DBSystem = "postgresql"
	}
	if c.SlowQueryThreshold <= 0 {
		c.SlowQueryThreshold = 200 * time.Millisecond
	}
	if c.PoolStatsInterval <= 0 {
		c.PoolStatsInterval = 15 * time.Second
	}
	return c
}

// InstrumentDatabase traces statements when cfg.Tracing is set, logs slow
// statements, and records query and pool metrics when meters is enabled.
// The returned func stops pool collection.
func InstrumentDatabase(ctx context.Context, db *gorm.DB, cfg DBConfig, meters *MeterProvider, logger *zap.Logger) (func(), error) {
	cfg = cfg.withDefaults()
	if cfg.Tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
		if !cfg.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return nil, err
		}
	}

	obs := &queryObserver{threshold: cfg.SlowQueryThreshold, logger: logger.Named("db")}
	if meters != nil && meters.IsEnabled() {
		m, err := newDBMetrics(meters.Meter("db.client"))
		if err != nil {
			return nil, err
		}
		obs.metrics = m
	}
	if err := db.Use(obs); err != nil {
		return nil, err
	}
	logger.Info("Database instrumentation registered",
		zap.Bool("tracing", cfg.Tracing),
		zap.Bool("metrics", obs.metrics != nil),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold))

	if obs.metrics == nil {
		return func() {}, nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return obs.metrics.collectPool(ctx, sqlDB, cfg.PoolStatsInterval), nil
}

type dbMetrics struct {
	queries     *Counter
	duration    *Histogram
	slowQueries *Counter
	pool        *Gauge
	poolMax     *Gauge
}

func newDBMetrics(meter metric.Meter) (*dbMetrics, error) {
	m := &dbMetrics{}
	var err error
	if m.queries, err = NewCounter(meter, "db_query_total", "Database statements by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database statement latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.slowQueries, err = NewCounter(meter, "db_slow_query_total", "Statements over the slow query threshold", "{query}"); err != nil {
		return nil, err
	}
	if m.pool, err = NewGauge(meter, "db_pool_connections", "Pool connections by state", "{connection}"); err != nil {
		return nil, err
	}
	if m.poolMax, err = NewGauge(meter, "db_pool_connections_max", "Pool connection limit", "{connection}"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *dbMetrics) collectPool(ctx context.Context, sqlDB *sql.DB, interval time.Duration) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			stats := sqlDB.Stats()
			m.poolMax.Record(ctx, int64(stats.MaxOpenConnections))
			m.pool.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
			m.pool.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
			m.pool.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
			select {
			case <-ticker.C:
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

type startedAtKey struct{}

// queryObserver times every GORM statement
type queryObserver struct {
	threshold time.Duration
	metrics   *dbMetrics
	logger    *zap.Logger
}

func (o *queryObserver) Name() string { return "cnx:query_observer" }

func (o *queryObserver) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("cnx:before_create", o.start),
		cb.Query().Before("gorm:query").Register("cnx:before_query", o.start),
		cb.Update().Before("gorm:update").Register("cnx:before_update", o.start),
		cb.Delete().Before("gorm:delete").Register("cnx:before_delete", o.start),
		cb.Row().Before("gorm:row").Register("cnx:before_row", o.start),
		cb.Raw().Before("gorm:raw").Register("cnx:before_raw", o.start),
		cb.Create().After("gorm:create").Register("cnx:after_create", o.finish("INSERT")),
		cb.Query().After("gorm:query").Register("cnx:after_query", o.finish("SELECT")),
		cb.Update().After("gorm:update").Register("cnx:after_update", o.finish("UPDATE")),
		cb.Delete().After("gorm:delete").Register("cnx:after_delete", o.finish("DELETE")),
		cb.Row().After("gorm:row").Register("cnx:after_row", o.finish("")),
		cb.Raw().After("gorm:raw").Register("cnx:after_raw", o.finish("")),
	)
}

func (o *queryObserver) start(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, startedAtKey{}, time.Now())
}

func (o *queryObserver) finish(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		startedAt, ok := ctx.Value(startedAtKey{}).(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(startedAt)
		op := operation
		if op == "" {
			op = statementOperation(db.Statement.SQL.String())
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		slow := elapsed > o.threshold
		if slow {
			o.logger.Warn("Slow query",
				zap.String("operation", op),
				zap.String("table", table),
				zap.Duration("elapsed", elapsed),
				zap.Int64("rows", db.Statement.RowsAffected))
		}
		if o.metrics == nil {
			return
		}
		o.metrics.queries.Inc(ctx, AttrDBOperation.String(op))
		o.metrics.duration.RecordDuration(ctx, elapsed, AttrDBOperation.String(op))
		if slow {
			o.metrics.slowQueries.Inc(ctx, AttrDBTable.String(table))
		}
	}
}

// statementOperation classifies raw SQL, e.g. the row locks taken with
// SELECT ... FOR UPDATE
func statementOperation(stmt string) string {
	stmt = strings.ToUpper(strings.TrimSpace(stmt))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(stmt, op) {
			return op
		}
	}
	return "OTHER"
}

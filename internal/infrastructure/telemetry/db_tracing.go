package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/clubledger/backend/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include bound variables in db.statement (dev only)
	SlowQueryThresh time.Duration // default 200ms
	DBName          string
}

// DBTracingConfigFromApp builds the db tracing config from the application config
func DBTracingConfigFromApp(cfg config.TelemetryConfig, dbName string) DBTracingConfig {
	return DBTracingConfig{
		Enabled:         cfg.Enabled && cfg.DBTraceEnabled,
		LogFullSQL:      cfg.DBLogFullSQL,
		SlowQueryThresh: cfg.DBSlowQueryThresh,
		DBName:          dbName,
	}
}

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm on db plus callbacks that tag spans
// with the table, rows affected, errors and a slow-query event.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled")
		return nil
	}
	if cfg.SlowQueryThresh == 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	var opts []otelgorm.Option
	if cfg.DBName != "" {
		opts = append(opts, otelgorm.WithDBName(cfg.DBName))
	}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { annotateSpan(tx, cfg.SlowQueryThresh) }

	// registered ahead of otelgorm so the after hooks still see its span open
	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("clubledger:before_create", before); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("clubledger:after_create", after); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("clubledger:before_query", before); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("clubledger:after_query", after); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("clubledger:before_update", before); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("clubledger:after_update", after); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("clubledger:before_delete", before); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("clubledger:after_delete", after); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("clubledger:before_raw", before); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("clubledger:after_raw", after); err != nil {
		return err
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh))
	return nil
}

func annotateSpan(tx *gorm.DB, slow time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if tx.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	}
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, tx.Error.Error())
		span.RecordError(tx.Error)
	}
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		if elapsed := time.Since(start); elapsed > slow {
			span.SetAttributes(attribute.Bool("db.slow_query", true))
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", slow.Milliseconds())))
		}
	}
}

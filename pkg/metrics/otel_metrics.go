package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics 价格检查流程的指标集合
type OTelMetrics struct {
	PriceChecksTotal    metric.Int64Counter
	PriceCheckDuration  metric.Float64Histogram
	LegFetchTotal       metric.Int64Counter
	LegFetchDuration    metric.Float64Histogram
	SnapshotsTotal      metric.Int64Counter
	RefreshRunsTotal    metric.Int64Counter
	RefreshLockConflict metric.Int64Counter
	ActivePriceChecks   metric.Int64UpDownCounter
}

var (
	metrics *OTelMetrics
	meter   = otel.Meter("farewatch")
)

// InitMetrics 初始化 OpenTelemetry 指标
func InitMetrics() error {
	var err error

	metrics = &OTelMetrics{}

	metrics.PriceChecksTotal, err = meter.Int64Counter(
		"price_checks_total",
		metric.WithDescription("Total number of price check workflow runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	metrics.PriceCheckDuration, err = meter.Float64Histogram(
		"price_check_duration_seconds",
		metric.WithDescription("Duration of price check workflow runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	metrics.LegFetchTotal, err = meter.Int64Counter(
		"leg_fetch_total",
		metric.WithDescription("Total number of flight/hotel fetch activities"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	metrics.LegFetchDuration, err = meter.Float64Histogram(
		"leg_fetch_duration_seconds",
		metric.WithDescription("Duration of flight/hotel fetch activities in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	metrics.SnapshotsTotal, err = meter.Int64Counter(
		"price_snapshots_total",
		metric.WithDescription("Total number of price snapshots persisted"),
		metric.WithUnit("{snapshot}"),
	)
	if err != nil {
		return err
	}

	metrics.RefreshRunsTotal, err = meter.Int64Counter(
		"refresh_runs_total",
		metric.WithDescription("Total number of refresh-all workflow runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	metrics.RefreshLockConflict, err = meter.Int64Counter(
		"refresh_lock_conflict_total",
		metric.WithDescription("Total number of refresh runs rejected because the lock was held"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		return err
	}

	metrics.ActivePriceChecks, err = meter.Int64UpDownCounter(
		"active_price_checks",
		metric.WithDescription("Number of price check workflows currently executing"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// RecordPriceCheck 记录一次价格检查的结果与耗时。
func RecordPriceCheck(ctx context.Context, status string, elapsed time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	metrics.PriceChecksTotal.Add(ctx, 1, attrs)
	metrics.PriceCheckDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordLegFetch 记录一条腿的抓取结果与耗时。
func RecordLegFetch(ctx context.Context, leg, outcome string, elapsed time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("leg", leg),
		attribute.String("outcome", outcome),
	)
	metrics.LegFetchTotal.Add(ctx, 1, attrs)
	metrics.LegFetchDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordSnapshot 记录一次快照落库。
func RecordSnapshot(ctx context.Context) {
	if metrics == nil {
		return
	}
	metrics.SnapshotsTotal.Add(ctx, 1)
}

// RecordRefreshRun 记录一次全量刷新。
func RecordRefreshRun(ctx context.Context, status string) {
	if metrics == nil {
		return
	}
	metrics.RefreshRunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// AddActivePriceChecks 调整执行中的价格检查数量，delta 为 +1/-1。
func AddActivePriceChecks(ctx context.Context, delta int64) {
	if metrics == nil {
		return
	}
	metrics.ActivePriceChecks.Add(ctx, delta)
}

// RecordLockConflict 记录一次刷新锁冲突。
func RecordLockConflict(ctx context.Context) {
	if metrics == nil {
		return
	}
	metrics.RefreshLockConflict.Add(ctx, 1)
}

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	entryCounter       metric.Int64Counter
	reactionCounter    metric.Int64Counter
	commentCounter     metric.Int64Counter
	accountCounter     metric.Int64Counter
	migrationCounter   metric.Int64Counter
	commitFetchCounter metric.Int64Counter
	commitFetchLatency metric.Float64Histogram
)

// InitLedgerMetrics registers the domain counters on the global meter
// provider. Before it runs (or when metrics are disabled) every Record*
// helper is a no-op.
func InitLedgerMetrics() error {
	meter := otel.Meter("devlog.ledger")

	var err error
	if entryCounter, err = meter.Int64Counter(
		"devlog.entries",
		metric.WithDescription("Log entries created or deleted"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return err
	}
	if reactionCounter, err = meter.Int64Counter(
		"devlog.reactions",
		metric.WithDescription("Reaction toggles by resulting state"),
		metric.WithUnit("{toggle}"),
	); err != nil {
		return err
	}
	if commentCounter, err = meter.Int64Counter(
		"devlog.comments",
		metric.WithDescription("Comments and forum replies created"),
		metric.WithUnit("{comment}"),
	); err != nil {
		return err
	}
	if accountCounter, err = meter.Int64Counter(
		"devlog.accounts",
		metric.WithDescription("Account lifecycle events"),
		metric.WithUnit("{event}"),
	); err != nil {
		return err
	}
	if migrationCounter, err = meter.Int64Counter(
		"devlog.credentials.migrated",
		metric.WithDescription("Legacy credential columns migrated"),
		metric.WithUnit("{column}"),
	); err != nil {
		return err
	}
	if commitFetchCounter, err = meter.Int64Counter(
		"devlog.commits.fetch",
		metric.WithDescription("Commit history lookups by outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}
	commitFetchLatency, err = meter.Float64Histogram(
		"devlog.commits.fetch.duration",
		metric.WithDescription("Upstream commit history latency"),
		metric.WithUnit("ms"),
	)
	return err
}

func add(ctx context.Context, c metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if c == nil || n == 0 {
		return
	}
	c.Add(ctx, n, metric.WithAttributes(attrs...))
}

func RecordEntry(ctx context.Context, op string) {
	add(ctx, entryCounter, 1, attribute.String("op", op))
}

// RecordReaction counts a toggle by the state the user ended up in.
func RecordReaction(ctx context.Context, result string) {
	add(ctx, reactionCounter, 1, attribute.String("result", result))
}

func RecordComment(ctx context.Context, kind string) {
	add(ctx, commentCounter, 1, attribute.String("kind", kind))
}

func RecordAccount(ctx context.Context, event string) {
	add(ctx, accountCounter, 1, attribute.String("event", event))
}

func RecordMigration(ctx context.Context, column string, n int64) {
	add(ctx, migrationCounter, n, attribute.String("column", column))
}

func RecordCommitFetch(ctx context.Context, outcome string, durationMs float64) {
	add(ctx, commitFetchCounter, 1, attribute.String("outcome", outcome))
	if commitFetchLatency != nil && durationMs > 0 {
		commitFetchLatency.Record(ctx, durationMs, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesTotal       = "textdedup.pipeline.files.total"
	metricBatchesTotal     = "textdedup.pipeline.batches.total"
	metricBatchDuration    = "textdedup.pipeline.batch.duration.seconds"
	metricCacheHitsTotal   = "textdedup.pipeline.prefilter.hits.total"
	metricCacheMissesTotal = "textdedup.pipeline.prefilter.misses.total"

	attrCache = "prefilter"
)

// PipelineMetrics holds OTel instruments for file-pipeline metrics.
type PipelineMetrics struct {
	filesTotal    metric.Int64Counter
	batchesTotal  metric.Int64Counter
	batchDuration metric.Float64Histogram
	prefilterHits metric.Int64Counter
	prefilterMiss metric.Int64Counter
}

// PipelineRunStats holds the statistics for a single pipeline invocation,
// decoupled from pipeline.Stats so the metrics package has no import cycle
// on internal/dedup/pipeline.
type PipelineRunStats struct {
	FilesWritten    int64
	Batches         int
	BatchDurations  []time.Duration
	BloomHits       int64
	BloomMisses     int64
	CuckooHits      int64
	CuckooMisses    int64
}

// NewPipelineMetrics creates pipeline metric instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	files, err := mt.Int64Counter(metricFilesTotal,
		metric.WithDescription("Total files processed"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesTotal, err)
	}

	batches, err := mt.Int64Counter(metricBatchesTotal,
		metric.WithDescription("Total batches processed"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBatchesTotal, err)
	}

	batchDur, err := mt.Float64Histogram(metricBatchDuration,
		metric.WithDescription("Per-batch processing duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBatchDuration, err)
	}

	hits, err := mt.Int64Counter(metricCacheHitsTotal,
		metric.WithDescription("Pre-filter accelerator hits by kind"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHitsTotal, err)
	}

	misses, err := mt.Int64Counter(metricCacheMissesTotal,
		metric.WithDescription("Pre-filter accelerator misses by kind"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMissesTotal, err)
	}

	return &PipelineMetrics{
		filesTotal:    files,
		batchesTotal:  batches,
		batchDuration: batchDur,
		prefilterHits: hits,
		prefilterMiss: misses,
	}, nil
}

// RecordRun records pipeline statistics for a completed run.
// Safe to call on a nil receiver (no-op).
func (pm *PipelineMetrics) RecordRun(ctx context.Context, stats PipelineRunStats) {
	if pm == nil {
		return
	}

	pm.filesTotal.Add(ctx, stats.FilesWritten)
	pm.batchesTotal.Add(ctx, int64(stats.Batches))

	for _, d := range stats.BatchDurations {
		pm.batchDuration.Record(ctx, d.Seconds())
	}

	bloomAttrs := metric.WithAttributes(attribute.String(attrCache, "bloom"))
	pm.prefilterHits.Add(ctx, stats.BloomHits, bloomAttrs)
	pm.prefilterMiss.Add(ctx, stats.BloomMisses, bloomAttrs)

	cuckooAttrs := metric.WithAttributes(attribute.String(attrCache, "cuckoo"))
	pm.prefilterHits.Add(ctx, stats.CuckooHits, cuckooAttrs)
	pm.prefilterMiss.Add(ctx, stats.CuckooMisses, cuckooAttrs)
}

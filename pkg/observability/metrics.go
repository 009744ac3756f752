package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "astrule.requests.total"
	metricRequestDuration  = "astrule.request.duration.seconds"
	metricErrorsTotal      = "astrule.errors.total"
	metricInflightRequests = "astrule.inflight.requests"

	metricFilesScanned = "astrule.scan.files.total"
	metricFilesSkipped = "astrule.scan.skipped.total"
	metricBytesScanned = "astrule.scan.bytes.total"
	metricFindings     = "astrule.scan.findings.total"
	metricFileDuration = "astrule.scan.file.duration.seconds"

	attrOp       = "op"
	attrStatus   = "status"
	attrLanguage = "language"
	attrReason   = "reason"
	attrRule     = "rule"
	attrSeverity = "severity"

	// StatusOK and StatusError label RED measurements.
	StatusOK    = "ok"
	StatusError = "error"
)

// requestBuckets covers quick single-snippet searches up to whole-tree scans.
var requestBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// fileBuckets covers parsing and matching a single file.
var fileBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1}

// REDMetrics holds Rate, Error and Duration instruments for MCP tool calls.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED instruments from mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	reqTotal, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Total number of requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	reqDuration, err := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(requestBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestDuration, err)
	}

	errTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of failed requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightRequests,
		metric.WithDescription("Number of in-flight requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightRequests, err)
	}

	return &REDMetrics{
		requestsTotal:    reqTotal,
		requestDuration:  reqDuration,
		errorsTotal:      errTotal,
		inflightRequests: inflight,
	}, nil
}

// RecordRequest records a completed request.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight gauge and returns its decrement.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// ScanMetrics counts the work done by the scanner.
type ScanMetrics struct {
	filesScanned metric.Int64Counter
	filesSkipped metric.Int64Counter
	bytesScanned metric.Int64Counter
	findings     metric.Int64Counter
	fileDuration metric.Float64Histogram
}

// NewScanMetrics creates scanner instruments from mt.
func NewScanMetrics(mt metric.Meter) (*ScanMetrics, error) {
	filesScanned, err := mt.Int64Counter(metricFilesScanned,
		metric.WithDescription("Files parsed and matched"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesScanned, err)
	}

	filesSkipped, err := mt.Int64Counter(metricFilesSkipped,
		metric.WithDescription("Files not scanned, by reason"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesSkipped, err)
	}

	bytesScanned, err := mt.Int64Counter(metricBytesScanned,
		metric.WithDescription("Source bytes parsed"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBytesScanned, err)
	}

	findings, err := mt.Int64Counter(metricFindings,
		metric.WithDescription("Rule matches reported"),
		metric.WithUnit("{finding}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFindings, err)
	}

	fileDuration, err := mt.Float64Histogram(metricFileDuration,
		metric.WithDescription("Time to parse and match one file"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(fileBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFileDuration, err)
	}

	return &ScanMetrics{
		filesScanned: filesScanned,
		filesSkipped: filesSkipped,
		bytesScanned: bytesScanned,
		findings:     findings,
		fileDuration: fileDuration,
	}, nil
}

// RecordFile records one scanned file.
func (sm *ScanMetrics) RecordFile(ctx context.Context, language string, size int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrLanguage, language))

	sm.filesScanned.Add(ctx, 1, attrs)
	sm.bytesScanned.Add(ctx, int64(size), attrs)
	sm.fileDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSkip records a file left out of the scan.
func (sm *ScanMetrics) RecordSkip(ctx context.Context, reason string) {
	sm.filesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordFindings records count matches of one rule.
func (sm *ScanMetrics) RecordFindings(ctx context.Context, ruleID, severity string, count int) {
	if count == 0 {
		return
	}

	sm.findings.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(attrRule, ruleID),
		attribute.String(attrSeverity, severity),
	))
}

// Package scan runs compiled rules over source files and directories.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/src-d/enry/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/astrule/pkg/observability"
	"github.com/Sumatoshi-tech/astrule/pkg/ruleset"
	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

// DefaultMaxFileSize is the largest file scanned unless configured otherwise.
const DefaultMaxFileSize = 1 << 20

// Reasons a file is left out of a scan.
const (
	SkipTooLarge        = "too_large"
	SkipBinary          = "binary"
	SkipUnknownLanguage = "unknown_language"
	SkipNoRules         = "no_rules"
	SkipUnreadable      = "unreadable"
)

// ErrNoRules is returned when a scanner is built without rules.
var ErrNoRules = errors.New("scanner has no rules")

// Scanner matches a fixed rule set against files. It is safe for
// concurrent use.
type Scanner struct {
	rules       map[syntax.Language][]*ruleset.Rule
	logger      *slog.Logger
	metrics     *observability.ScanMetrics
	tracer      trace.Tracer
	language    syntax.Language
	maxFileSize int64
	workers     int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWorkers bounds the number of files scanned concurrently. Values below
// one use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxFileSize skips files larger than size bytes. Zero disables the limit.
func WithMaxFileSize(size int64) Option {
	return func(s *Scanner) {
		s.maxFileSize = size
	}
}

// WithLanguage parses every file with lang instead of detecting it.
func WithLanguage(lang syntax.Language) Option {
	return func(s *Scanner) {
		s.language = lang
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records scan metrics.
func WithMetrics(metrics *observability.ScanMetrics) Option {
	return func(s *Scanner) {
		s.metrics = metrics
	}
}

// WithTracer records a span per scan and per file.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Scanner) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// New creates a scanner for rules.
func New(rules []*ruleset.Rule, opts ...Option) (*Scanner, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}

	s := &Scanner{
		rules:       make(map[syntax.Language][]*ruleset.Rule),
		logger:      slog.Default(),
		tracer:      nooptrace.NewTracerProvider().Tracer(""),
		maxFileSize: DefaultMaxFileSize,
		workers:     runtime.GOMAXPROCS(0),
	}

	for _, r := range rules {
		s.rules[r.Language] = append(s.rules[r.Language], r)
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// ScanSource parses src as lang and reports the matches of every rule for
// that language, sorted by position.
func (s *Scanner) ScanSource(ctx context.Context, path string, lang syntax.Language, src []byte) ([]Finding, error) {
	root, err := syntax.Parse(ctx, lang, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var findings []Finding

	for _, r := range s.rules[lang] {
		matches := r.Find(root.Node())

		for _, m := range matches {
			findings = append(findings, newFinding(path, r, m))
		}

		if s.metrics != nil {
			s.metrics.RecordFindings(ctx, r.ID, string(r.Severity), len(matches))
		}
	}

	sortFindings(findings)

	return findings, nil
}

// ScanPaths scans files and directory trees. Directories are walked
// recursively, skipping hidden and vendored entries; files named explicitly
// are always considered. Unreadable, oversized, binary and unrecognized
// files are counted as skipped.
func (s *Scanner) ScanPaths(ctx context.Context, paths ...string) (*Report, error) {
	ctx, span := s.tracer.Start(ctx, "astrule.scan.paths",
		trace.WithAttributes(attribute.Int("scan.roots", len(paths))))
	defer span.End()

	files, err := collectFiles(paths)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	var (
		mu     sync.Mutex
		report = &Report{}
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	for _, path := range files {
		group.Go(func() error {
			result, err := s.scanFile(groupCtx, path)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()

			if result.skipped {
				report.FilesSkipped++
			} else {
				report.FilesScanned++
				report.BytesScanned += result.size
				report.Findings = append(report.Findings, result.findings...)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	sortFindings(report.Findings)

	span.SetAttributes(
		attribute.Int("scan.files", report.FilesScanned),
		attribute.Int("scan.skipped", report.FilesSkipped),
		attribute.Int("scan.findings", len(report.Findings)),
	)

	s.logger.DebugContext(ctx, "scan finished",
		"files", report.FilesScanned,
		"skipped", report.FilesSkipped,
		"findings", len(report.Findings))

	return report, nil
}

type fileResult struct {
	findings []Finding
	size     int64
	skipped  bool
}

// scanFile only returns an error when the scan must stop; per-file problems
// are logged and reported as skips.
func (s *Scanner) scanFile(ctx context.Context, path string) (fileResult, error) {
	if err := ctx.Err(); err != nil {
		return fileResult{}, fmt.Errorf("scan %s: %w", path, err)
	}

	ctx, span := s.tracer.Start(ctx, "astrule.scan.file", trace.WithAttributes(attribute.String("file.path", path)))
	defer span.End()

	info, err := os.Stat(path)
	if err != nil {
		return s.skip(ctx, path, SkipUnreadable, err), nil
	}

	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return s.skip(ctx, path, SkipTooLarge, nil), nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return s.skip(ctx, path, SkipUnreadable, err), nil
	}

	if enry.IsBinary(src) {
		return s.skip(ctx, path, SkipBinary, nil), nil
	}

	lang := s.language
	if lang == "" {
		detected, ok := syntax.DetectLanguage(path, src)
		if !ok {
			return s.skip(ctx, path, SkipUnknownLanguage, nil), nil
		}

		lang = detected
	}

	if len(s.rules[lang]) == 0 {
		return s.skip(ctx, path, SkipNoRules, nil), nil
	}

	span.SetAttributes(attribute.String("file.language", string(lang)))

	start := time.Now()

	findings, err := s.ScanSource(ctx, path, lang, src)
	if err != nil {
		if ctx.Err() != nil {
			return fileResult{}, fmt.Errorf("scan %s: %w", path, ctx.Err())
		}

		span.RecordError(err)

		return s.skip(ctx, path, SkipUnreadable, err), nil
	}

	if s.metrics != nil {
		s.metrics.RecordFile(ctx, string(lang), len(src), time.Since(start))
	}

	return fileResult{findings: findings, size: int64(len(src))}, nil
}

func (s *Scanner) skip(ctx context.Context, path, reason string, err error) fileResult {
	attrs := []any{"path", path, "reason", reason}
	if err != nil {
		s.logger.WarnContext(ctx, "skipping file", append(attrs, "error", err)...)
	} else {
		s.logger.DebugContext(ctx, "skipping file", attrs...)
	}

	if s.metrics != nil {
		s.metrics.RecordSkip(ctx, reason)
	}

	return fileResult{skipped: true}
}

func collectFiles(paths []string) ([]string, error) {
	var files []string

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}

		if !info.IsDir() {
			files = append(files, root)

			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if path == root {
				return nil
			}

			if ignored(root, path, d) {
				if d.IsDir() {
					return filepath.SkipDir
				}

				return nil
			}

			if d.Type().IsRegular() {
				files = append(files, path)
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	return files, nil
}

func ignored(root, path string, d fs.DirEntry) bool {
	if enry.IsDotFile(d.Name()) {
		return true
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	rel = filepath.ToSlash(rel)
	if d.IsDir() {
		rel += "/"
	}

	return enry.IsVendor(rel)
}

// Package scan runs catalog scans: it reads routine rows for a container,
// maps them in parallel, and reports every row that could not be mapped
// without aborting the rest.
package scan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/markb/routinecat/internal/catalog"
	"github.com/markb/routinecat/internal/log"
	"github.com/markb/routinecat/internal/observability"
	"github.com/markb/routinecat/internal/routine"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds the goroutines mapping rows of one scan.
const DefaultWorkers = 8

// Source returns the catalog rows owned by a container.
type Source interface {
	RoutineRecords(ctx context.Context, container catalog.Container) ([]catalog.Record, error)
}

// RowFailure is a row that could not be mapped.
type RowFailure struct {
	Index int    `json:"index"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// Result is the outcome of one scan. Routines and Failures keep row order.
type Result struct {
	ScanID    string                `json:"scan_id"`
	Container string                `json:"container"`
	Routines  []*routine.Descriptor `json:"routines"`
	Failures  []RowFailure          `json:"failures"`
	Duration  time.Duration         `json:"duration_ns"`
}

// Scanner maps catalog rows for a container.
type Scanner struct {
	source  Source
	mapper  *routine.Mapper
	tel     *observability.Telemetry
	workers int
}

// NewScanner creates a Scanner. tel may be nil.
func NewScanner(source Source, mapper *routine.Mapper, tel *observability.Telemetry) *Scanner {
	return &Scanner{source: source, mapper: mapper, tel: tel, workers: DefaultWorkers}
}

// SetWorkers changes the mapping parallelism; n < 1 means one worker.
func (s *Scanner) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	s.workers = n
}

// Mapper returns the mapper used by the scanner.
func (s *Scanner) Mapper() *routine.Mapper { return s.mapper }

// Scan reads and maps every routine row of container. Errors reading rows
// fail the scan; errors mapping a row are reported in Result.Failures.
func (s *Scanner) Scan(ctx context.Context, container catalog.Container) (*Result, error) {
	start := time.Now()
	scanID := uuid.NewString()
	name := catalog.DisplayName(container)

	ctx, span := s.tracer().Start(ctx, "catalog.scan",
		trace.WithAttributes(
			observability.AttrScanID.String(scanID),
			observability.AttrContainer.String(name),
		),
	)
	defer span.End()

	logger := log.With("scan_id", scanID, "container", name)
	logger.Debug("scan started")

	records, err := s.source.RoutineRecords(ctx, container)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read routines")
		logger.Error("scan failed", "error", err)
		return nil, err
	}

	descriptors := make([]*routine.Descriptor, len(records))
	errs := make([]error, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			descriptors[i], errs[i] = s.mapper.Map(rec, container)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")
		return nil, err
	}

	res := &Result{
		ScanID:    scanID,
		Container: name,
		Routines:  make([]*routine.Descriptor, 0, len(records)),
	}
	for i, d := range descriptors {
		if errs[i] != nil {
			rowName, _ := records[i].String(routine.ColRoutineName)
			res.Failures = append(res.Failures, RowFailure{Index: i, Name: rowName, Error: errs[i].Error(), Err: errs[i]})
			logger.Warn("skipping catalog row", "row", i, "routine", rowName, "error", errs[i])
			continue
		}
		res.Routines = append(res.Routines, d)
	}
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("catalog.rows", len(records)),
		attribute.Int("catalog.failures", len(res.Failures)),
	)
	s.record(ctx, res, len(records))

	logger.Info("scan finished",
		"rows", len(records),
		"routines", len(res.Routines),
		"failures", len(res.Failures),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (s *Scanner) tracer() trace.Tracer {
	if s.tel == nil {
		return observability.NoopTracer()
	}
	return s.tel.TracerProvider().Tracer("routinecat/scan")
}

func (s *Scanner) record(ctx context.Context, res *Result, rows int) {
	if s.tel == nil || s.tel.Metrics() == nil {
		return
	}
	m := s.tel.Metrics()
	attrs := metric.WithAttributes(observability.AttrContainer.String(res.Container))
	m.ScanRows.Add(ctx, int64(rows), attrs)
	m.ScanFailures.Add(ctx, int64(len(res.Failures)), attrs)
	m.ScanDuration.Record(ctx, float64(res.Duration.Milliseconds()), attrs)
}

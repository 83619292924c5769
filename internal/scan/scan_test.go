package scan

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/markb/routinecat/internal/catalog"
	"github.com/markb/routinecat/internal/db"
	"github.com/markb/routinecat/internal/observability"
	"github.com/markb/routinecat/internal/routine"
	"github.com/markb/routinecat/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeSource struct {
	records []catalog.Record
	err     error
	calls   int32
	// before runs on every read with the 1-based call number.
	before func(call int32)
}

func (f *fakeSource) RoutineRecords(ctx context.Context, c catalog.Container) ([]catalog.Record, error) {
	call := atomic.AddInt32(&f.calls, 1)
	if f.before != nil {
		f.before(call)
	}
	return f.records, f.err
}

// blockFirstRead makes the first read of src wait for release after
// signalling started.
func blockFirstRead(src *fakeSource) (started, release chan struct{}) {
	started = make(chan struct{})
	release = make(chan struct{})
	src.before = func(call int32) {
		if call == 1 {
			close(started)
			<-release
		}
	}
	return started, release
}

func row(name, routineType string) catalog.Record {
	return catalog.NewRecord(map[string]any{
		"ROUTINENAME":  name,
		"SPECIFICNAME": "S_" + name,
		"ROUTINETYPE":  routineType,
		"LANGUAGE":     "SQL",
		"VALID":        "Y",
	})
}

var app = &catalog.Schema{Name: "APP"}

func TestScan_CollectsPerRowFailures(t *testing.T) {
	src := &fakeSource{records: []catalog.Record{
		row("A", "P"),
		row("B", "Z"),
		row("C", "F"),
		catalog.NewRecord(map[string]any{"ROUTINETYPE": "P"}),
	}}
	s := NewScanner(src, &routine.Mapper{Caps: catalog.AllCapabilities()}, nil)

	res, err := s.Scan(context.Background(), app)
	require.NoError(t, err)

	require.Len(t, res.Routines, 2)
	assert.Equal(t, "A", res.Routines[0].Name)
	assert.Equal(t, "C", res.Routines[1].Name)

	require.Len(t, res.Failures, 2)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Equal(t, "B", res.Failures[0].Name)
	assert.ErrorIs(t, res.Failures[0].Err, routine.ErrUnknownEnumLiteral)
	assert.Contains(t, res.Failures[0].Error, "ROUTINETYPE")
	assert.Equal(t, 3, res.Failures[1].Index)
	assert.ErrorIs(t, res.Failures[1].Err, routine.ErrMissingColumn)

	assert.NotEmpty(t, res.ScanID)
	assert.Equal(t, "APP", res.Container)
}

func TestScan_LenientMapper(t *testing.T) {
	src := &fakeSource{records: []catalog.Record{row("A", "P"), row("B", "Z")}}
	s := NewScanner(src, (&routine.Mapper{}).Lenient(), nil)

	res, err := s.Scan(context.Background(), app)
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Routines, 2)
	assert.Equal(t, routine.KindUnknown, res.Routines[1].Kind)
}

func TestScan_PreservesOrderWithManyRows(t *testing.T) {
	var records []catalog.Record
	for i := 0; i < 200; i++ {
		records = append(records, row(fmt.Sprintf("R%03d", i), "P"))
	}
	s := NewScanner(&fakeSource{records: records}, &routine.Mapper{}, nil)
	s.SetWorkers(4)

	res, err := s.Scan(context.Background(), app)
	require.NoError(t, err)
	require.Len(t, res.Routines, 200)
	for i, d := range res.Routines {
		assert.Equal(t, fmt.Sprintf("R%03d", i), d.Name)
	}
}

func TestScan_SourceError(t *testing.T) {
	boom := errors.New("catalog offline")
	s := NewScanner(&fakeSource{err: boom}, &routine.Mapper{}, nil)

	_, err := s.Scan(context.Background(), app)
	assert.ErrorIs(t, err, boom)
}

func TestScan_Cancelled(t *testing.T) {
	s := NewScanner(&fakeSource{records: []catalog.Record{row("A", "P")}}, &routine.Mapper{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scan(ctx, app)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCatalog_ScansOncePerContainer(t *testing.T) {
	src := &fakeSource{records: []catalog.Record{row("A", "P")}}
	c := NewCatalog(NewScanner(src, &routine.Mapper{}, nil), nil, nil)

	first, err := c.Routines(context.Background(), app)
	require.NoError(t, err)
	second, err := c.Routines(context.Background(), app)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))

	c.RefreshContainer(app)
	third, err := c.Routines(context.Background(), app)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))
}

func TestCatalog_RefreshDuringScanIsNotUndone(t *testing.T) {
	src := &fakeSource{records: []catalog.Record{row("A", "P")}}
	started, release := blockFirstRead(src)
	c := NewCatalog(NewScanner(src, &routine.Mapper{}, nil), nil, nil)

	inFlight := make(chan *Result, 1)
	go func() {
		res, err := c.Routines(context.Background(), app)
		assert.NoError(t, err)
		inFlight <- res
	}()

	<-started
	c.RefreshContainer(app)
	close(release)
	stale := <-inFlight
	require.NotNil(t, stale)

	fresh, err := c.Routines(context.Background(), app)
	require.NoError(t, err)
	assert.NotSame(t, stale, fresh)
	assert.NotEqual(t, stale.ScanID, fresh.ScanID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))

	again, err := c.Routines(context.Background(), app)
	require.NoError(t, err)
	assert.Same(t, fresh, again)
}

func TestCatalog_CancelledCallerDoesNotFailOthers(t *testing.T) {
	src := &fakeSource{records: []catalog.Record{row("A", "P")}}
	started, release := blockFirstRead(src)
	c := NewCatalog(NewScanner(src, &routine.Mapper{}, nil), nil, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Routines(ctxA, app)
		errA <- err
	}()
	<-started

	resB := make(chan *Result, 1)
	go func() {
		res, err := c.Routines(context.Background(), app)
		assert.NoError(t, err)
		resB <- res
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NotNil(t, b)
	require.Len(t, b.Routines, 1)
	assert.Equal(t, "A", b.Routines[0].Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))
}

func TestCatalog_RoutineLookup(t *testing.T) {
	src := &fakeSource{records: []catalog.Record{row("ADD_CUSTOMER", "P")}}
	c := NewCatalog(NewScanner(src, &routine.Mapper{}, nil), nil, nil)

	d, err := c.Routine(context.Background(), app, "add_customer")
	require.NoError(t, err)
	assert.Equal(t, "ADD_CUSTOMER", d.Name)

	d, err = c.Routine(context.Background(), app, "S_ADD_CUSTOMER")
	require.NoError(t, err)
	assert.Equal(t, "ADD_CUSTOMER", d.Name)

	_, err = c.Routine(context.Background(), app, "NOPE")
	assert.ErrorIs(t, err, ErrRoutineNotFound)
}

func TestCatalog_ParametersAndRefresh(t *testing.T) {
	src := &fakeSource{records: []catalog.Record{row("A", "P")}}
	var fetches int32
	fetch := func(ctx context.Context, d *routine.Descriptor) ([]routine.Parameter, error) {
		atomic.AddInt32(&fetches, 1)
		return []routine.Parameter{{Name: "X", Ordinal: 1}}, nil
	}
	c := NewCatalog(NewScanner(src, &routine.Mapper{}, nil), fetch, nil)

	d, err := c.Routine(context.Background(), app, "A")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		params, err := c.Parameters(context.Background(), d)
		require.NoError(t, err)
		require.Len(t, params, 1)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))

	require.NoError(t, c.RefreshRoutine(context.Background(), d))
	_, err = c.Parameters(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}

func TestCatalog_WithSampleStore(t *testing.T) {
	database, err := db.New(t.TempDir() + "/catalog.db")
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.RunMigrations())

	st := store.New(database)
	require.NoError(t, st.SeedSample(context.Background()))

	mapper := routine.NewMapper(store.SampleVersion)
	c := NewCatalog(NewScanner(st, mapper, nil), st.ParameterFetcher(mapper), nil)

	legacy := &catalog.Schema{Name: "LEGACY"}
	res, err := c.Routines(context.Background(), legacy)
	require.NoError(t, err)
	require.Len(t, res.Routines, 1)
	assert.Equal(t, "OLD_REPORT", res.Routines[0].Name)
	assert.Equal(t, routine.ValidityInoperative, res.Routines[0].Validity)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "MYSTERY", res.Failures[0].Name)

	fn, err := c.Routine(context.Background(), app, "CUSTOMER_ORDERS")
	require.NoError(t, err)
	assert.Equal(t, routine.FunctionTypeTable, fn.FunctionType)

	params, err := c.Parameters(context.Background(), fn)
	require.NoError(t, err)
	require.Len(t, params, 3)
	assert.Equal(t, routine.ParamModeIn, params[0].Mode)
}

func TestScan_RecordsTelemetry(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	tel, err := observability.FromProviders(tp, mp)
	require.NoError(t, err)

	src := &fakeSource{records: []catalog.Record{row("A", "P"), row("B", "Z")}}
	fetch := func(ctx context.Context, d *routine.Descriptor) ([]routine.Parameter, error) {
		return nil, nil
	}
	c := NewCatalog(NewScanner(src, &routine.Mapper{}, tel), fetch, tel)

	d, err := c.Routine(context.Background(), app, "A")
	require.NoError(t, err)
	_, err = c.Parameters(context.Background(), d)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	sums := make(map[string]int64)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range sum.DataPoints {
				sums[m.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), sums["catalog.scan.rows"])
	assert.Equal(t, int64(1), sums["catalog.scan.failures"])
	assert.Equal(t, int64(1), sums["catalog.params.fetches"])

	var names []string
	for _, s := range spans.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"catalog.scan", "catalog.parameters"}, names)
}

package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// TestMetricsIntegrationFull drives the middleware through a chi router and
// checks the recorded HTTP instruments carry the route template.
func TestMetricsIntegrationFull(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	tel, err := FromProviders(nil, mp)
	if err != nil {
		t.Fatalf("failed to init telemetry: %v", err)
	}

	r := chi.NewRouter()
	r.Use(HTTPMiddleware(tel, "test"))
	r.Get("/api/schemas/{schema}/routines", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	for _, schema := range []string{"APP", "LEGACY", "APP"} {
		req := httptest.NewRequest("GET", "/api/schemas/"+schema+"/routines", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", schema, rec.Code)
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected scope metrics to be recorded")
	}

	var count int64
	names := make(map[string]bool)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
		if m.Name != "http.server.request_count" {
			continue
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok {
			t.Fatalf("unexpected data type %T", m.Data)
		}
		for _, dp := range sum.DataPoints {
			route, _ := dp.Attributes.Value(attribute.Key("http.route"))
			if route.AsString() != "/api/schemas/{schema}/routines" {
				t.Errorf("unexpected route attribute %q", route.AsString())
			}
			count += dp.Value
		}
	}

	if count != 3 {
		t.Errorf("expected 3 requests, got %d", count)
	}
	for _, name := range []string{"http.server.request_duration", "http.server.response_size"} {
		if !names[name] {
			t.Errorf("expected metric %s to be recorded", name)
		}
	}
}

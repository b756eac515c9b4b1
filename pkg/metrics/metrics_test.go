package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
)

func TestHTTPMetricsExportsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("/v1/products/{productID}", "GET", 200, 120*time.Millisecond)
	m.Observe("", "GET", 404, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "http_requests_total", "route", "/v1/products/{productID}"); err != nil || got != 1 {
		t.Fatalf("expected one product request, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "http_requests_total", "route", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown route to be labelled, got %f (%v)", got, err)
	}
}

func TestMarketplaceMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMarketplaceMetrics(reg)
	m.Purchase(OutcomeSuccess)
	m.Purchase(OutcomeConflict)
	m.Purchase(OutcomeConflict)
	m.UploadCompleted(OutcomeRejected)
	m.ChatMessage("IMAGE")
	m.WSConnected(1)
	m.WSConnected(1)
	m.WSConnected(-1)
	m.AICache(true)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, _ := fetchCounterValue(mfs, "purchases_total", "outcome", OutcomeConflict); got != 2 {
		t.Fatalf("expected 2 conflicts, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "asset_upload_completions_total", "outcome", OutcomeRejected); got != 1 {
		t.Fatalf("expected 1 rejected upload, got %f", got)
	}
	mf := findMetricFamily(mfs, "chat_ws_connections")
	if mf == nil || mf.GetMetric()[0].GetGauge().GetValue() != 1 {
		t.Fatalf("expected one open connection")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var h *HTTPMetrics
	h.Observe("/", "GET", 200, time.Second)
	var m *MarketplaceMetrics
	m.Purchase(OutcomeSuccess)
	m.WSConnected(1)
	NewMarketplaceMetrics(nil).ChatMessage("TEXT")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q with %s=%s not found", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, lp := range labels {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeSuccess},
		{pkgerrors.New(pkgerrors.CodeConflict, "dup"), OutcomeConflict},
		{pkgerrors.New(pkgerrors.CodeStateConflict, "wrong state"), OutcomeConflict},
		{pkgerrors.New(pkgerrors.CodeForbidden, "self purchase"), OutcomeRejected},
		{pkgerrors.New(pkgerrors.CodeNotFound, "missing"), OutcomeRejected},
		{errors.New("boom"), OutcomeError},
	}
	for _, tt := range tests {
		if got := OutcomeOf(tt.err); got != tt.want {
			t.Fatalf("%v: expected %s got %s", tt.err, tt.want, got)
		}
	}
}

func TestMaintenanceMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMaintenanceMetrics(reg)
	m.Observe("idempotency-retention", time.Second, nil)
	m.Observe("idempotency-retention", time.Second, errors.New("boom"))
	m.RowsDeleted("idempotency-retention", 3)
	m.RowsDeleted("idempotency-retention", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "maintenance_job_runs_total", "outcome", OutcomeError); err != nil || got != 1 {
		t.Fatalf("expected one failed run, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "maintenance_rows_deleted_total", "job", "idempotency-retention"); err != nil || got != 3 {
		t.Fatalf("expected three deleted rows, got %f (%v)", got, err)
	}

	var nilMetrics *MaintenanceMetrics
	nilMetrics.Observe("x", time.Second, nil)
	nilMetrics.RowsDeleted("x", 1)
}

package observability

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMetrics_StagesAndOutcomes(t *testing.T) {
	metrics := NewMetrics()

	span := metrics.Start("validate")
	span.End(nil)

	span = metrics.Start("charge")
	span.End(errors.New("declined"))

	metrics.CountOutcome("PAID")
	metrics.CountOutcome("PAID")
	metrics.CountOutcome("REJECTED")

	snap := metrics.Snapshot()
	if snap.TotalRequests != 2 {
		t.Fatalf("total requests = %d", snap.TotalRequests)
	}
	if snap.TotalErrors != 1 {
		t.Fatalf("total errors = %d", snap.TotalErrors)
	}
	if snap.InFlight != 0 {
		t.Fatalf("in flight = %d", snap.InFlight)
	}
	if snap.Outcomes["PAID"] != 2 || snap.Outcomes["REJECTED"] != 1 {
		t.Fatalf("outcomes = %v", snap.Outcomes)
	}

	validate, ok := snap.Stages["validate"]
	if !ok {
		t.Fatalf("missing validate stage")
	}
	if validate.Count != 1 || validate.Errors != 0 {
		t.Fatalf("validate stage = %+v", validate)
	}

	charge := snap.Stages["charge"]
	if charge.Errors != 1 {
		t.Fatalf("charge stage = %+v", charge)
	}
}

func TestMetrics_InFlight(t *testing.T) {
	metrics := NewMetrics()

	span := metrics.Start("charge")
	if got := metrics.Snapshot().InFlight; got != 1 {
		t.Fatalf("in flight during call = %d", got)
	}
	span.End(nil)
	if got := metrics.Snapshot().InFlight; got != 0 {
		t.Fatalf("in flight after call = %d", got)
	}
}

func TestMetrics_RateLimitWaits(t *testing.T) {
	metrics := NewMetrics()

	metrics.AddRateLimitWait(30 * time.Millisecond)
	metrics.AddRateLimitWait(20 * time.Millisecond)
	metrics.AddRateLimitWait(0)

	snap := metrics.Snapshot()
	if snap.RateLimitWaits != 2 {
		t.Fatalf("waits = %d", snap.RateLimitWaits)
	}
	if snap.RateLimitWaitMs != 50 {
		t.Fatalf("wait ms = %d", snap.RateLimitWaitMs)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var metrics *Metrics

	span := metrics.Start("charge")
	span.End(nil)
	metrics.CountOutcome("PAID")
	metrics.AddRateLimitWait(time.Millisecond)

	if snap := metrics.Snapshot(); snap.TotalRequests != 0 {
		t.Fatalf("nil metrics must be inert")
	}
}

func TestHandler_ServesSnapshot(t *testing.T) {
	metrics := NewMetrics()
	metrics.Start("validate").End(nil)
	metrics.CountOutcome("PAID")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler(metrics).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %s", ct)
	}

	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.TotalRequests != 1 || snap.Outcomes["PAID"] != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

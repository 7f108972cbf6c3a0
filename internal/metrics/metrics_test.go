package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	reporterJobsTotal = nil
	reporterImagesTotal = nil
	reporterUploadsTotal = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if reporterJobsTotal == nil || reporterImagesTotal == nil || reporterUploadsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveJob("COMPLETED")
	if val := testutil.ToFloat64(reporterJobsTotal.WithLabelValues("COMPLETED")); val != 1 {
		t.Errorf("Expected reporterJobsTotal{COMPLETED} to be 1, got %f", val)
	}

	// ToFloat64 only reads single-child collectors, so each label set is
	// checked on its own child.
	ObserveUpload("telegraph", "ok")
	ObserveUpload("catbox", "failed")
	if val := testutil.ToFloat64(reporterUploadsTotal.WithLabelValues("telegraph", "ok")); val != 1 {
		t.Errorf("Expected reporterUploadsTotal{telegraph,ok} to be 1, got %f", val)
	}
	if val := testutil.ToFloat64(reporterUploadsTotal.WithLabelValues("catbox", "failed")); val != 1 {
		t.Errorf("Expected reporterUploadsTotal{catbox,failed} to be 1, got %f", val)
	}
	if n := testutil.CollectAndCount(reporterUploadsTotal); n != 2 {
		t.Errorf("Expected 2 upload series, got %d", n)
	}

	IncActiveWorkers()
	if val := testutil.ToFloat64(reporterActiveWorkers); val != 1 {
		t.Errorf("Expected reporterActiveWorkers to be 1, got %f", val)
	}
	DecActiveWorkers()
}

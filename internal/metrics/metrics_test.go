package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hwuu/ftpsync/internal/metrics"
)

func TestRecorder_Counts(t *testing.T) {
	r := metrics.New()

	r.RecordUpload(metrics.StatusSuccess, 100)
	r.RecordUpload(metrics.StatusSuccess, 20)
	r.RecordUpload(metrics.StatusFailed, 999)
	r.RecordMkdir(metrics.MkdirCreated)
	r.RecordMkdir(metrics.MkdirExists)
	r.RecordMkdir(metrics.MkdirExists)

	count, err := testutil.GatherAndCount(r.Registry(), "ftpsync_uploads_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 status series, got %d", count)
	}

	mf, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	values := map[string]float64{}
	for _, f := range mf {
		for _, m := range f.GetMetric() {
			key := f.GetName()
			for _, l := range m.GetLabel() {
				key += "/" + l.GetValue()
			}
			if c := m.GetCounter(); c != nil {
				values[key] = c.GetValue()
			}
		}
	}

	want := map[string]float64{
		"ftpsync_uploads_total/success": 2,
		"ftpsync_uploads_total/failed":  1,
		"ftpsync_uploaded_bytes_total":  120,
		"ftpsync_mkdir_total/created":   1,
		"ftpsync_mkdir_total/exists":    2,
	}
	for k, v := range want {
		if values[k] != v {
			t.Errorf("%s = %v, want %v", k, values[k], v)
		}
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *metrics.Recorder
	r.RecordUpload(metrics.StatusSuccess, 1)
	r.RecordMkdir(metrics.MkdirFailed)
	r.ObserveSync("all", time.Second)
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := metrics.New()
	r.RecordUpload(metrics.StatusSuccess, 42)
	r.ObserveSync("all", 250*time.Millisecond)

	out := filepath.Join(t.TempDir(), "ftpsync.prom")
	if err := r.WriteTextfile(out); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, want := range []string{
		`ftpsync_uploads_total{status="success"} 1`,
		`ftpsync_uploaded_bytes_total 42`,
		`ftpsync_sync_duration_seconds_count{operation="all"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q:\n%s", want, data)
		}
	}
}

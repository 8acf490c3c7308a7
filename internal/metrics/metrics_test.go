package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"reaper-go/internal/reaper"
)

func TestRegistry_Counters(t *testing.T) {
	r := New()

	r.FilesScanned(40)
	r.FilesScanned(2)
	r.ScanErrors(3)
	r.Classified(reaper.Ghost)
	r.Classified(reaper.Ghost)
	r.Classified(reaper.Zombie)
	r.Banished()
	r.Restored()
	r.Restored()
	r.UndoResult("executed")
	r.UndoResult("expired")
	r.UndoResult("expired")
	r.LogRecovered()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"files scanned", testutil.ToFloat64(r.scanned), 42},
		{"scan errors", testutil.ToFloat64(r.scanErrors), 3},
		{"ghost labels", testutil.ToFloat64(r.classified.WithLabelValues("ghost")), 2},
		{"zombie labels", testutil.ToFloat64(r.classified.WithLabelValues("zombie")), 1},
		{"demon labels", testutil.ToFloat64(r.classified.WithLabelValues("demon")), 0},
		{"banished", testutil.ToFloat64(r.banished), 1},
		{"restored", testutil.ToFloat64(r.restored), 2},
		{"undo executed", testutil.ToFloat64(r.undoResults.WithLabelValues("executed")), 1},
		{"undo expired", testutil.ToFloat64(r.undoResults.WithLabelValues("expired")), 2},
		{"log recoveries", testutil.ToFloat64(r.logRecoveries), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestRegistry_IsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.Banished()
	if got := testutil.ToFloat64(b.banished); got != 0 {
		t.Errorf("second registry saw %v banishes, want 0", got)
	}
}

func TestRegistry_Gatherer(t *testing.T) {
	r := New()
	r.Banished()

	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var found *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "reaper_banished_total" {
			found = mf
		}
	}
	if found == nil {
		t.Fatal("reaper_banished_total not gathered")
	}
	if found.GetType() != dto.MetricType_COUNTER {
		t.Errorf("type = %v, want counter", found.GetType())
	}
	if v := found.GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("value = %v, want 1", v)
	}
}

func TestRegistry_WriteTextfile(t *testing.T) {
	r := New()
	r.FilesScanned(7)
	r.Classified(reaper.Demon)

	path := filepath.Join(t.TempDir(), "reaper.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"reaper_files_scanned_total 7",
		`reaper_classified_total{label="demon"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q:\n%s", want, data)
		}
	}
}

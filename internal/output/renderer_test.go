package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"worldpanel/internal/metrics"
	"worldpanel/internal/models"
)

func TestJSONRendererLog(t *testing.T) {
	var buf bytes.Buffer
	renderer := NewJSONRenderer(&buf)

	record := models.LogRecord{
		Timestamp: "12:00:00",
		Source:    "Server thread",
		Level:     models.LevelError,
		Message:   "Can't keep up! <lag>",
		Raw:       "[12:00:00] [Server thread/ERROR]: Can't keep up! <lag>",
	}
	if err := renderer.Log(record); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), `<`) {
		t.Errorf("expected HTML characters to stay unescaped: %s", buf.String())
	}

	var got models.LogRecord
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\nraw: %s", err, buf.String())
	}
	if got != record {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestTextRendererLog(t *testing.T) {
	var buf bytes.Buffer
	renderer := NewTextRenderer(&buf)

	if err := renderer.Log(models.LogRecord{Timestamp: "08:15:00", Source: "main", Level: "WARN", Message: "disk almost full"}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"08:15:00", "WARN", "main", "disk almost full"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestTextRendererMetrics(t *testing.T) {
	desc, err := metrics.Describe(metrics.CategoryNetwork, metrics.SubMetricBandwidth)
	if err != nil {
		t.Fatal(err)
	}
	rng, _ := metrics.LookupRange("1h")
	snap := metrics.Snapshot{
		Range:      rng,
		Descriptor: desc,
		State:      metrics.StateSeeded,
		Points: []models.MetricPoint{
			{Time: "14:05", Values: map[string]float64{"in": 1.5, "out": 0.25}},
		},
		Error: "Failed to fetch network metrics. Please check your API key and server ID.",
	}

	var buf bytes.Buffer
	if err := NewTextRenderer(&buf).Metrics(snap); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"MB/s", "14:05", "Bandwidth In=1.5", "Bandwidth Out=0.25", "Failed to fetch network metrics"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestTextRendererWorlds(t *testing.T) {
	var buf bytes.Buffer
	worlds := []models.World{
		{ID: "w1", Name: "Survival", IsActive: true, Port: 25565},
		{ID: "w2", Name: "Creative"},
	}
	if err := NewTextRenderer(&buf).Worlds(worlds); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "running") || !strings.Contains(lines[1], "25565") {
		t.Errorf("unexpected first row %q", lines[1])
	}
	if !strings.Contains(lines[2], "stopped") {
		t.Errorf("unexpected second row %q", lines[2])
	}
}

func TestTextRendererValueSortsMaps(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextRenderer(&buf).Value(map[string]string{"pvp": "true", "difficulty": "hard"}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "difficulty=hard\npvp=true\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New("yaml", &bytes.Buffer{}); err == nil {
		t.Fatal("expected unknown format to fail")
	}
	if r, err := New("JSON", &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	} else if _, ok := r.(*JSONRenderer); !ok {
		t.Fatalf("expected JSON renderer, got %T", r)
	}
}

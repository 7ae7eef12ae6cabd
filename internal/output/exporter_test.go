package output

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sensornet-gateway/internal/model"
)

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.json")
	fwType := uint16(2)
	snaps := []model.NodeSnapshot{{
		ID:           5,
		Protocol:     "1.4",
		FirmwareType: &fwType,
		Sensors:      []int{6, 17},
		Battery:      "96",
		Values:       []model.LatestValue{{NodeID: 5, SensorID: 1, Value: "21.0"}},
	}}
	if err := WriteJSON(path, snaps); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 node, got %d", len(got))
	}
	sensors, ok := got[0]["sensors"].([]any)
	if !ok || len(sensors) != 2 || sensors[1].(float64) != 17 {
		t.Fatalf("sensors not rendered as numbers: %v", got[0]["sensors"])
	}
	if _, ok := got[0]["sketch_name"]; ok {
		t.Fatalf("empty sketch_name should be omitted")
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.csv")
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	values := []model.SensorValue{
		{NodeID: 5, SensorID: 1, SubType: 0, Value: "21.0", Timestamp: ts},
		{NodeID: 5, SensorID: 2, SubType: 1, Value: "55", Timestamp: ts},
	}
	if err := WriteCSV(path, values); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	want := []string{"5", "1", "0", "V_TEMP", "21.0", "2026-01-02T03:04:05Z"}
	for i, v := range want {
		if rows[1][i] != v {
			t.Fatalf("row 1 column %d = %q, want %q", i, rows[1][i], v)
		}
	}
	if rows[2][3] != "V_HUM" {
		t.Fatalf("row 2 sub_type_name = %q", rows[2][3])
	}
}

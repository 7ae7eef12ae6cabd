package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"sensornet-gateway/internal/model"
	"sensornet-gateway/internal/protocol"
)

// WriteJSON writes node snapshots to a JSON file with pretty formatting.
func WriteJSON(path string, snaps []model.NodeSnapshot) error {
	b, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// WriteCSV writes the raw value history to a CSV file.
// Columns: node_id,sensor_id,sub_type,sub_type_name,value,timestamp
func WriteCSV(path string, values []model.SensorValue) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	headers := []string{"node_id", "sensor_id", "sub_type", "sub_type_name", "value", "timestamp"}
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, v := range values {
		rec := []string{
			strconv.Itoa(int(v.NodeID)),
			strconv.Itoa(int(v.SensorID)),
			strconv.Itoa(int(v.SubType)),
			protocol.SubTypeName(protocol.CommandSet, v.SubType),
			v.Value,
			timeToRFC3339(v.Timestamp),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func timeToRFC3339(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

package nodedb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	dbpkg "sensornet-gateway/internal/db"
	"sensornet-gateway/internal/model"
)

func TestClientReadsGatewayData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gateway.sqlite")

	// seed through the store the gateway writes with
	store, err := dbpkg.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	name := "Weather"
	if err := store.UpsertNode(ctx, 4, model.NodePatch{SketchName: &name}); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}
	if err := store.AddSensorToNode(ctx, 4, 6); err != nil {
		t.Fatalf("AddSensorToNode failed: %v", err)
	}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, v := range []string{"19.5", "20.0"} {
		if err := store.AppendValue(ctx, 4, 1, 0, v, ts.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("AppendValue failed: %v", err)
		}
	}
	if err := store.AppendBatteryLevel(ctx, 4, "81", ts); err != nil {
		t.Fatalf("AppendBatteryLevel failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	nodes, err := c.ListNodes(ctx)
	if err != nil {
		t.Fatalf("ListNodes failed: %v", err)
	}
	if len(nodes) != 1 || nodes[0].SketchName != "Weather" || len(nodes[0].SensorTypes) != 1 {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}

	latest, err := c.LatestValues(ctx)
	if err != nil {
		t.Fatalf("LatestValues failed: %v", err)
	}
	if len(latest) != 1 || latest[0].Value != "20.0" || latest[0].SubTypeName != "V_TEMP" {
		t.Fatalf("unexpected latest values: %+v", latest)
	}

	hist, err := c.History(ctx, 4, 1, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(hist) != 2 || hist[0].Value != "20.0" {
		t.Fatalf("unexpected history: %+v", hist)
	}

	battery, err := c.Battery(ctx, 4)
	if err != nil || battery != "81" {
		t.Fatalf("Battery = %q, %v", battery, err)
	}

	if err := c.RequestReboot(ctx, 4); err != nil {
		t.Fatalf("RequestReboot failed: %v", err)
	}
	n, err := c.GetNode(ctx, 4)
	if err != nil || n == nil || !n.RebootRequested {
		t.Fatalf("expected reboot flag, got %+v, %v", n, err)
	}
	missing, err := c.GetNode(ctx, 9)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown node, got %+v, %v", missing, err)
	}
}

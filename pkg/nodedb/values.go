package nodedb

import (
	"context"
	"time"

	"sensornet-gateway/internal/model"
	"sensornet-gateway/internal/protocol"
)

// --------------------
// Value DTOs
// --------------------

type Value struct {
	NodeID      uint8     `json:"node_id"`
	SensorID    uint8     `json:"sensor_id"`
	SubType     uint8     `json:"sub_type"`
	SubTypeName string    `json:"sub_type_name"`
	Value       string    `json:"value"`
	Timestamp   time.Time `json:"timestamp"`
}

func fromModelValue(v model.SensorValue) Value {
	return Value{
		NodeID:      v.NodeID,
		SensorID:    v.SensorID,
		SubType:     v.SubType,
		SubTypeName: protocol.SubTypeName(protocol.CommandSet, v.SubType),
		Value:       v.Value,
		Timestamp:   v.Timestamp,
	}
}

func fromLatestValue(v model.LatestValue) Value {
	return Value{
		NodeID:      v.NodeID,
		SensorID:    v.SensorID,
		SubType:     v.SubType,
		SubTypeName: protocol.SubTypeName(protocol.CommandSet, v.SubType),
		Value:       v.Value,
		Timestamp:   v.Timestamp,
	}
}

// --------------------
// Value queries
// --------------------

// LatestValues returns the newest reading of every (node, sensor, sub-type) series.
func (c *Client) LatestValues(ctx context.Context) ([]Value, error) {
	list, err := c.db.LatestValues(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Value, 0, len(list))
	for _, v := range list {
		out = append(out, fromLatestValue(v))
	}
	return out, nil
}

// History returns up to limit readings of one sensor, newest first.
func (c *Client) History(ctx context.Context, nodeID, sensorID uint8, limit int) ([]Value, error) {
	list, err := c.db.SensorValues(ctx, nodeID, sensorID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Value, 0, len(list))
	for _, v := range list {
		out = append(out, fromModelValue(v))
	}
	return out, nil
}

// Battery returns the last reported battery level, or "" when none was reported.
func (c *Client) Battery(ctx context.Context, nodeID uint8) (string, error) {
	bl, err := c.db.LatestBatteryLevel(ctx, nodeID)
	if err != nil || bl == nil {
		return "", err
	}
	return bl.Value, nil
}

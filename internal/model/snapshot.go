package model

import "time"

// LatestValue is the most recent reading of one (node, sensor, sub-type) series.
type LatestValue struct {
	NodeID    uint8     `json:"node_id"`
	SensorID  uint8     `json:"sensor_id"`
	SubType   uint8     `json:"sub_type"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// NodeSnapshot aggregates a node and its latest readings for export.
type NodeSnapshot struct {
	ID              uint8         `json:"id"`
	Protocol        string        `json:"protocol,omitempty"`
	SketchName      string        `json:"sketch_name,omitempty"`
	SketchVersion   string        `json:"sketch_version,omitempty"`
	FirmwareType    *uint16       `json:"firmware_type,omitempty"`
	FirmwareVersion *uint16       `json:"firmware_version,omitempty"`
	Sensors         []int         `json:"sensors"` // []uint8 would marshal as base64
	Battery         string        `json:"battery,omitempty"`
	Values          []LatestValue `json:"values"`
}

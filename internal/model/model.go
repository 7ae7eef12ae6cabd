package model

import (
	"slices"
	"time"
)

// Node represents a device on the sensor network.
type Node struct {
	ID              uint8     `gorm:"column:id;primaryKey;autoIncrement:false"`
	Protocol        string    `gorm:"column:protocol"`
	SketchName      string    `gorm:"column:sketch_name"`
	SketchVersion   string    `gorm:"column:sketch_version"`
	FirmwareType    *uint16   `gorm:"column:firmware_type"`
	FirmwareVersion *uint16   `gorm:"column:firmware_version"`
	RebootRequested bool      `gorm:"column:reboot_requested"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`

	Sensors []NodeSensor `gorm:"foreignKey:NodeID;references:ID"`
}

func (Node) TableName() string { return "nodes" }

// SensorTypes returns the presented sensor types in ascending order.
func (n Node) SensorTypes() []uint8 {
	out := make([]uint8, 0, len(n.Sensors))
	for _, s := range n.Sensors {
		out = append(out, s.SensorType)
	}
	slices.Sort(out)
	return out
}

// NodeSensor is one entry of a node's presented sensor-type set.
type NodeSensor struct {
	ID         uint  `gorm:"column:id;primaryKey;autoIncrement"`
	NodeID     uint8 `gorm:"column:node_id;uniqueIndex:idx_node_sensor"`
	SensorType uint8 `gorm:"column:sensor_type;uniqueIndex:idx_node_sensor"`
}

func (NodeSensor) TableName() string { return "node_sensors" }

// NodePatch lists the node fields to merge; nil fields are left untouched.
type NodePatch struct {
	Protocol        *string
	SketchName      *string
	SketchVersion   *string
	FirmwareType    *uint16
	FirmwareVersion *uint16
	RebootRequested *bool
}

// Columns returns the patched columns and their values.
func (p NodePatch) Columns() map[string]any {
	cols := make(map[string]any, 6)
	if p.Protocol != nil {
		cols["protocol"] = *p.Protocol
	}
	if p.SketchName != nil {
		cols["sketch_name"] = *p.SketchName
	}
	if p.SketchVersion != nil {
		cols["sketch_version"] = *p.SketchVersion
	}
	if p.FirmwareType != nil {
		cols["firmware_type"] = *p.FirmwareType
	}
	if p.FirmwareVersion != nil {
		cols["firmware_version"] = *p.FirmwareVersion
	}
	if p.RebootRequested != nil {
		cols["reboot_requested"] = *p.RebootRequested
	}
	return cols
}

// Apply copies the patched fields onto n.
func (p NodePatch) Apply(n *Node) {
	if p.Protocol != nil {
		n.Protocol = *p.Protocol
	}
	if p.SketchName != nil {
		n.SketchName = *p.SketchName
	}
	if p.SketchVersion != nil {
		n.SketchVersion = *p.SketchVersion
	}
	if p.FirmwareType != nil {
		v := *p.FirmwareType
		n.FirmwareType = &v
	}
	if p.FirmwareVersion != nil {
		v := *p.FirmwareVersion
		n.FirmwareVersion = &v
	}
	if p.RebootRequested != nil {
		n.RebootRequested = *p.RebootRequested
	}
}

// SensorValue is one append-only reading of a node's child sensor.
type SensorValue struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	NodeID    uint8     `gorm:"column:node_id;index:idx_value_series"`
	SensorID  uint8     `gorm:"column:sensor_id;index:idx_value_series"`
	SubType   uint8     `gorm:"column:sub_type"`
	Value     string    `gorm:"column:value"`
	Timestamp time.Time `gorm:"column:timestamp;index"`
}

func (SensorValue) TableName() string { return "sensor_values" }

// BatteryLevel is one battery report of a node.
type BatteryLevel struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	NodeID    uint8     `gorm:"column:node_id;index"`
	Value     string    `gorm:"column:value"`
	Timestamp time.Time `gorm:"column:timestamp;index"`
}

func (BatteryLevel) TableName() string { return "battery_levels" }

// Firmware stores a loaded image keyed by (type, version).
type Firmware struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Type       uint16    `gorm:"column:type;uniqueIndex:idx_firmware_type_version"`
	Version    uint16    `gorm:"column:version;uniqueIndex:idx_firmware_type_version"`
	Filename   string    `gorm:"column:filename"`
	BlockCount uint32    `gorm:"column:block_count"`
	CRC        uint16    `gorm:"column:crc"`
	Data       []byte    `gorm:"column:data"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (Firmware) TableName() string { return "firmwares" }

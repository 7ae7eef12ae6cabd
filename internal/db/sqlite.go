package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"sensornet-gateway/internal/firmware"
	"sensornet-gateway/internal/model"
)

// DB wraps sqlite connection
type DB struct {
	ORM *gorm.DB
}

// Open opens the SQLite database using GORM and runs migrations. gorm warnings go to stderr.
func Open(path string) (*DB, error) {
	return OpenWithLogger(path, zerolog.New(os.Stderr).With().Timestamp().Logger())
}

// OpenWithLogger is Open with gorm's warnings sent to log.
func OpenWithLogger(path string, log zerolog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	g, err := openORM(path, log)
	if err != nil {
		return nil, err
	}
	if err := migrateORM(g); err != nil {
		_ = closeORM(g)
		return nil, err
	}
	return &DB{ORM: g}, nil
}

func (d *DB) Close() error { return closeORM(d.ORM) }

// UpsertNode merges patch into the node document, creating it if absent.
func (d *DB) UpsertNode(ctx context.Context, id uint8, patch model.NodePatch) error {
	return upsertNode(ctx, d.ORM, id, patch)
}

// AddSensorToNode inserts sensorType into the node's sensor set.
func (d *DB) AddSensorToNode(ctx context.Context, id uint8, sensorType uint8) error {
	if err := ensureNode(ctx, d.ORM, id); err != nil {
		return err
	}
	return d.ORM.WithContext(ctx).
		Clauses(onConflictNothing).
		Create(&model.NodeSensor{NodeID: id, SensorType: sensorType}).Error
}

// FindNode returns the node with its sensors, or nil if unknown.
func (d *DB) FindNode(ctx context.Context, id uint8) (*model.Node, error) {
	n, err := firstOrNil[model.Node](d.ORM.WithContext(ctx).Where("id = ?", id).Order("id"))
	if err != nil || n == nil {
		return nil, err
	}
	nodes := []model.Node{*n}
	if err := attachSensors(ctx, d.ORM, nodes); err != nil {
		return nil, err
	}
	return &nodes[0], nil
}

// FindNodesSortedByID returns all nodes in ascending id order.
func (d *DB) FindNodesSortedByID(ctx context.Context) ([]model.Node, error) {
	var nodes []model.Node
	if err := d.ORM.WithContext(ctx).Order("id").Find(&nodes).Error; err != nil {
		return nil, err
	}
	if err := attachSensors(ctx, d.ORM, nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// RequestReboot flags a node so the next frame it sends is answered with a reboot.
func (d *DB) RequestReboot(ctx context.Context, id uint8) error {
	v := true
	return d.UpsertNode(ctx, id, model.NodePatch{RebootRequested: &v})
}

// AppendValue adds a reading to the (nodeID, sensorID) series.
func (d *DB) AppendValue(ctx context.Context, nodeID, sensorID, subType uint8, value string, ts time.Time) error {
	return insertValue(ctx, d.ORM, &model.SensorValue{
		NodeID:    nodeID,
		SensorID:  sensorID,
		SubType:   subType,
		Value:     value,
		Timestamp: ts,
	})
}

// AppendBatteryLevel adds a battery report for nodeID.
func (d *DB) AppendBatteryLevel(ctx context.Context, nodeID uint8, value string, ts time.Time) error {
	return insertValue(ctx, d.ORM, &model.BatteryLevel{NodeID: nodeID, Value: value, Timestamp: ts})
}

// SensorValues returns the readings of one series, newest first. limit <= 0 returns all rows.
func (d *DB) SensorValues(ctx context.Context, nodeID, sensorID uint8, limit int) ([]model.SensorValue, error) {
	q := d.ORM.WithContext(ctx).
		Where("node_id = ? AND sensor_id = ?", nodeID, sensorID).
		Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []model.SensorValue
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// AllSensorValues returns every reading ordered by node, sensor and time.
func (d *DB) AllSensorValues(ctx context.Context) ([]model.SensorValue, error) {
	var rows []model.SensorValue
	if err := d.ORM.WithContext(ctx).Order("node_id, sensor_id, timestamp, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LatestBatteryLevel returns the newest battery report of nodeID, or nil.
func (d *DB) LatestBatteryLevel(ctx context.Context, nodeID uint8) (*model.BatteryLevel, error) {
	return firstOrNil[model.BatteryLevel](d.ORM.WithContext(ctx).
		Where("node_id = ?", nodeID).
		Order("timestamp DESC, id DESC"))
}

// LatestValues returns, for each (node, sensor, sub-type) series, the newest row.
func (d *DB) LatestValues(ctx context.Context) ([]model.LatestValue, error) {
	// subquery: newest id per series
	sub := d.ORM.Model(&model.SensorValue{}).
		Select("MAX(id) AS id").
		Group("node_id, sensor_id, sub_type")
	var out []model.LatestValue
	err := d.ORM.WithContext(ctx).
		Model(&model.SensorValue{}).
		Select("node_id, sensor_id, sub_type, value, timestamp").
		Where("id IN (?)", sub).
		Order("node_id, sensor_id, sub_type").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertFirmware stores img under (type, version), replacing any earlier load.
func (d *DB) UpsertFirmware(ctx context.Context, img *firmware.Image) error {
	return upsertFirmware(ctx, d.ORM, &model.Firmware{
		Type:       img.Type,
		Version:    img.Version,
		Filename:   img.Filename,
		BlockCount: img.BlockCount,
		CRC:        img.CRC,
		Data:       img.Data,
	})
}

// FindLatestFirmware returns the highest version stored for typ, or nil.
func (d *DB) FindLatestFirmware(ctx context.Context, typ uint16) (*firmware.Image, error) {
	fw, err := firstOrNil[model.Firmware](d.ORM.WithContext(ctx).Where("type = ?", typ).Order("version DESC"))
	return toImage(fw), err
}

// FindFirmwareExact returns the image stored under (typ, version), or nil.
func (d *DB) FindFirmwareExact(ctx context.Context, typ, version uint16) (*firmware.Image, error) {
	fw, err := firstOrNil[model.Firmware](d.ORM.WithContext(ctx).Where("type = ? AND version = ?", typ, version))
	return toImage(fw), err
}

// Snapshot aggregates every node with its latest readings.
func (d *DB) Snapshot(ctx context.Context) ([]model.NodeSnapshot, error) {
	nodes, err := d.FindNodesSortedByID(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := d.LatestValues(ctx)
	if err != nil {
		return nil, err
	}
	byNode := make(map[uint8][]model.LatestValue)
	for _, v := range latest {
		byNode[v.NodeID] = append(byNode[v.NodeID], v)
	}
	out := make([]model.NodeSnapshot, 0, len(nodes))
	for _, n := range nodes {
		snap := model.NodeSnapshot{
			ID:              n.ID,
			Protocol:        n.Protocol,
			SketchName:      n.SketchName,
			SketchVersion:   n.SketchVersion,
			FirmwareType:    n.FirmwareType,
			FirmwareVersion: n.FirmwareVersion,
			Sensors:         make([]int, 0, len(n.Sensors)),
			Values:          byNode[n.ID],
		}
		for _, st := range n.SensorTypes() {
			snap.Sensors = append(snap.Sensors, int(st))
		}
		bl, err := d.LatestBatteryLevel(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		if bl != nil {
			snap.Battery = bl.Value
		}
		out = append(out, snap)
	}
	return out, nil
}

func toImage(fw *model.Firmware) *firmware.Image {
	if fw == nil {
		return nil
	}
	return &firmware.Image{
		Type:       fw.Type,
		Version:    fw.Version,
		Filename:   fw.Filename,
		BlockCount: fw.BlockCount,
		CRC:        fw.CRC,
		Data:       fw.Data,
	}
}

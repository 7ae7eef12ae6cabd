package db

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"sensornet-gateway/internal/model"
)

var onConflictNothing = clause.OnConflict{DoNothing: true}

// gormWriter forwards gorm's log lines to zerolog.
type gormWriter struct{ log zerolog.Logger }

func (w gormWriter) Printf(format string, args ...any) { w.log.Warn().Msgf(format, args...) }

// openORM opens a GORM SQLite connection with sane defaults.
func openORM(path string, log zerolog.Logger) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.New(gormWriter{log: log.With().Str("component", "gorm").Logger()}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
}

// migrateORM ensures the schema for all models exists.
func migrateORM(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Node{},
		&model.NodeSensor{},
		&model.SensorValue{},
		&model.BatteryLevel{},
		&model.Firmware{},
	)
}

// closeORM closes the underlying SQL DB associated with the GORM connection.
func closeORM(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ensureNode inserts an empty node row unless one already exists.
func ensureNode(ctx context.Context, db *gorm.DB, id uint8) error {
	return db.WithContext(ctx).
		Clauses(onConflictNothing).
		Create(&model.Node{ID: id}).Error
}

// upsertNode inserts the node or merges the patched columns into the existing row.
func upsertNode(ctx context.Context, db *gorm.DB, id uint8, patch model.NodePatch) error {
	cols := patch.Columns()
	if len(cols) == 0 {
		return ensureNode(ctx, db, id)
	}
	names := make([]string, 0, len(cols)+1)
	for k := range cols {
		names = append(names, k)
	}
	names = append(names, "updated_at")

	n := model.Node{ID: id}
	patch.Apply(&n)
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(names),
		}).
		Create(&n).Error
}

// insertValue appends a row to an append-only series table.
func insertValue(ctx context.Context, db *gorm.DB, v any) error {
	return db.WithContext(ctx).Create(v).Error
}

// upsertFirmware replaces the image stored under (type, version).
func upsertFirmware(ctx context.Context, db *gorm.DB, fw *model.Firmware) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "type"}, {Name: "version"}},
			DoUpdates: clause.AssignmentColumns([]string{"filename", "block_count", "crc", "data", "updated_at"}),
		}).
		Create(fw).Error
}

// attachSensors loads the sensor sets of nodes in one query. gorm's Preload skips parents keyed 0,
// and node 0 is the gateway.
func attachSensors(ctx context.Context, db *gorm.DB, nodes []model.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	// []uint8 would bind as a single blob
	ids := make([]int, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, int(n.ID))
	}
	var rows []model.NodeSensor
	if err := db.WithContext(ctx).Where("node_id IN ?", ids).Order("node_id, sensor_type").Find(&rows).Error; err != nil {
		return err
	}
	byNode := make(map[uint8][]model.NodeSensor, len(nodes))
	for _, r := range rows {
		byNode[r.NodeID] = append(byNode[r.NodeID], r)
	}
	for i := range nodes {
		nodes[i].Sensors = byNode[nodes[i].ID]
	}
	return nil
}

// firstOrNil returns the first row of q, or nil when q matches nothing.
func firstOrNil[T any](q *gorm.DB) (*T, error) {
	var out T
	res := q.Limit(1).Find(&out)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &out, nil
}

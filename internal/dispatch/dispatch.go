package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"sensornet-gateway/internal/firmware"
	"sensornet-gateway/internal/metrics"
	"sensornet-gateway/internal/model"
	"sensornet-gateway/internal/protocol"
	"sensornet-gateway/internal/utils"
)

const (
	firstNodeID uint8 = 1
	lastNodeID  uint8 = 254

	configMetric = "M"
)

var (
	ErrUnknownFirmware   = errors.New("dispatch: no matching firmware")
	ErrNoDefaultFirmware = errors.New("dispatch: node has no firmware type and no default is configured")
)

// StoreError wraps a failed persistence call.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Store is the persistence the dispatcher needs.
type Store interface {
	UpsertNode(ctx context.Context, id uint8, patch model.NodePatch) error
	AddSensorToNode(ctx context.Context, id uint8, sensorType uint8) error
	FindNode(ctx context.Context, id uint8) (*model.Node, error)
	FindNodesSortedByID(ctx context.Context) ([]model.Node, error)
	AppendValue(ctx context.Context, nodeID, sensorID, subType uint8, value string, ts time.Time) error
	AppendBatteryLevel(ctx context.Context, nodeID uint8, value string, ts time.Time) error
	FindLatestFirmware(ctx context.Context, typ uint16) (*firmware.Image, error)
	FindFirmwareExact(ctx context.Context, typ, version uint16) (*firmware.Image, error)
}

// Sender writes an outbound frame to the gateway.
type Sender interface {
	Send(f protocol.Frame) error
}

// TimeUnit selects the resolution of I_TIME payloads.
type TimeUnit int

const (
	Seconds TimeUnit = iota
	Milliseconds
)

// Options configures a Dispatcher.
type Options struct {
	// DefaultFirmwareType is served to nodes reporting firmware.UnknownType.
	// firmware.UnknownType disables the fallback.
	DefaultFirmwareType uint16
	TimeUnit            TimeUnit
	CacheTTL            time.Duration
}

// Dispatcher routes decoded frames by command and sub-type. Handle must not be called
// concurrently: node id allocation is a read-then-write sequence.
type Dispatcher struct {
	store Store
	log   zerolog.Logger
	opts  Options
	cache *utils.FirmwareCache
	now   func() time.Time
}

func New(store Store, log zerolog.Logger, opts Options) *Dispatcher {
	return &Dispatcher{
		store: store,
		log:   log.With().Str("component", "dispatch").Logger(),
		opts:  opts,
		cache: utils.NewFirmwareCache(opts.CacheTTL),
		now:   time.Now,
	}
}

// ForgetFirmware drops a cached image after it has been reloaded.
func (d *Dispatcher) ForgetFirmware(typ, version uint16) {
	d.cache.Invalidate(utils.FirmwareKey{Type: typ, Version: version})
}

// Handle runs the handler for f, then delivers a pending reboot to the sender.
func (d *Dispatcher) Handle(ctx context.Context, f protocol.Frame, out Sender) error {
	var err error
	switch f.Command {
	case protocol.CommandPresentation:
		err = d.handlePresentation(ctx, f)
	case protocol.CommandSet:
		err = storeErr("append value", d.store.AppendValue(ctx, f.Sender, f.SensorID, f.SubType, f.Payload, d.now()))
	case protocol.CommandReq:
	case protocol.CommandInternal:
		err = d.handleInternal(ctx, f, out)
	case protocol.CommandStream:
		err = d.handleStream(ctx, f, out)
	}
	if err != nil {
		metrics.HandlerError(f.Command.String())
		err = fmt.Errorf("%s: %w", f, err)
	}
	if rerr := d.deliverReboot(ctx, f.Sender, out); rerr != nil {
		err = errors.Join(err, rerr)
	}
	return err
}

func (d *Dispatcher) handlePresentation(ctx context.Context, f protocol.Frame) error {
	if f.IsNode() {
		p := f.Payload
		if err := d.store.UpsertNode(ctx, f.Sender, model.NodePatch{Protocol: &p}); err != nil {
			return storeErr("save protocol", err)
		}
	}
	return storeErr("add sensor", d.store.AddSensorToNode(ctx, f.Sender, f.SubType))
}

// TimeFrame builds an I_TIME frame carrying the current epoch time.
func (d *Dispatcher) TimeFrame(destination, sensor uint8) protocol.Frame {
	now := d.now()
	v := now.Unix()
	if d.opts.TimeUnit == Milliseconds {
		v = now.UnixMilli()
	}
	return protocol.Frame{
		Sender:   destination,
		SensorID: sensor,
		Command:  protocol.CommandInternal,
		SubType:  protocol.InternalTime,
		Payload:  strconv.FormatInt(v, 10),
	}
}

// deliverReboot sends I_REBOOT to a node flagged for reboot and clears the flag.
func (d *Dispatcher) deliverReboot(ctx context.Context, id uint8, out Sender) error {
	n, err := d.store.FindNode(ctx, id)
	if err != nil {
		return storeErr("check reboot", err)
	}
	if n == nil || !n.RebootRequested {
		return nil
	}
	if err := out.Send(protocol.Frame{
		Sender:   id,
		SensorID: protocol.NodeSensorID,
		Command:  protocol.CommandInternal,
		SubType:  protocol.InternalReboot,
	}); err != nil {
		return fmt.Errorf("send reboot to %d: %w", id, err)
	}
	d.log.Info().Uint8("node", id).Msg("reboot sent")
	off := false
	return storeErr("clear reboot", d.store.UpsertNode(ctx, id, model.NodePatch{RebootRequested: &off}))
}

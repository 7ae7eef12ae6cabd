package dispatch

import (
	"context"
	"strconv"

	"sensornet-gateway/internal/model"
	"sensornet-gateway/internal/protocol"
)

func (d *Dispatcher) handleInternal(ctx context.Context, f protocol.Frame, out Sender) error {
	switch f.SubType {
	case protocol.InternalBatteryLevel:
		return storeErr("append battery level", d.store.AppendBatteryLevel(ctx, f.Sender, f.Payload, d.now()))
	case protocol.InternalTime:
		return out.Send(d.TimeFrame(f.Sender, f.SensorID))
	case protocol.InternalIDRequest:
		return d.assignID(ctx, out)
	case protocol.InternalConfig:
		return out.Send(protocol.Frame{
			Sender:   f.Sender,
			SensorID: protocol.NodeSensorID,
			Command:  protocol.CommandInternal,
			SubType:  protocol.InternalConfig,
			Payload:  configMetric,
		})
	case protocol.InternalSketchName:
		p := f.Payload
		return storeErr("save sketch name", d.store.UpsertNode(ctx, f.Sender, model.NodePatch{SketchName: &p}))
	case protocol.InternalSketchVersion:
		p := f.Payload
		return storeErr("save sketch version", d.store.UpsertNode(ctx, f.Sender, model.NodePatch{SketchVersion: &p}))
	case protocol.InternalLogMessage:
		d.log.Info().Uint8("node", f.Sender).Str("payload", f.Payload).Msg("node log")
	}
	// I_REBOOT, I_VERSION, I_PING and the rest need no action from the controller.
	return nil
}

// assignID allocates the lowest unused id and broadcasts it. Running out of ids is not
// answered; the requesting node keeps asking.
func (d *Dispatcher) assignID(ctx context.Context, out Sender) error {
	nodes, err := d.store.FindNodesSortedByID(ctx)
	if err != nil {
		return storeErr("find nodes", err)
	}
	id, ok := nextFreeID(nodes)
	if !ok {
		d.log.Warn().Int("nodes", len(nodes)).Msg("no free node id")
		return nil
	}
	if err := d.store.UpsertNode(ctx, id, model.NodePatch{}); err != nil {
		return storeErr("save node", err)
	}
	d.log.Info().Uint8("node", id).Msg("assigned node id")
	return out.Send(protocol.Frame{
		Sender:   protocol.BroadcastAddress,
		SensorID: protocol.NodeSensorID,
		Command:  protocol.CommandInternal,
		SubType:  protocol.InternalIDResponse,
		Payload:  strconv.Itoa(int(id)),
	})
}

// nextFreeID scans nodes sorted by id for the first gap in [1,254].
func nextFreeID(nodes []model.Node) (uint8, bool) {
	next := int(firstNodeID)
	for _, n := range nodes {
		id := int(n.ID)
		if id < next {
			continue
		}
		if id > next {
			break
		}
		next++
	}
	if next > int(lastNodeID) {
		return 0, false
	}
	return uint8(next), true
}

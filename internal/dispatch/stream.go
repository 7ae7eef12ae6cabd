package dispatch

import (
	"context"
	"fmt"

	"sensornet-gateway/internal/firmware"
	"sensornet-gateway/internal/metrics"
	"sensornet-gateway/internal/model"
	"sensornet-gateway/internal/protocol"
	"sensornet-gateway/internal/utils"
)

func (d *Dispatcher) handleStream(ctx context.Context, f protocol.Frame, out Sender) error {
	switch f.SubType {
	case protocol.StreamFirmwareConfigRequest:
		return d.firmwareConfig(ctx, f, out)
	case protocol.StreamFirmwareRequest:
		return d.firmwareBlock(ctx, f, out)
	}
	return nil
}

// firmwareConfig answers a node announcing its firmware with the newest image of its type.
func (d *Dispatcher) firmwareConfig(ctx context.Context, f protocol.Frame, out Sender) error {
	w, err := protocol.Words(f.Data, 2)
	if err != nil {
		return err
	}
	typ, version := w[0], w[1]
	off := false
	if err := d.store.UpsertNode(ctx, f.Sender, model.NodePatch{
		FirmwareType:    &typ,
		FirmwareVersion: &version,
		RebootRequested: &off,
	}); err != nil {
		d.log.Error().Err(err).Uint8("node", f.Sender).Msg("save node firmware")
	}

	if typ == firmware.UnknownType {
		if d.opts.DefaultFirmwareType == firmware.UnknownType {
			return ErrNoDefaultFirmware
		}
		typ = d.opts.DefaultFirmwareType
	}
	img, err := d.store.FindLatestFirmware(ctx, typ)
	if err != nil {
		return storeErr("find firmware", err)
	}
	if img == nil {
		return fmt.Errorf("%w: type %d", ErrUnknownFirmware, typ)
	}
	return out.Send(protocol.Frame{
		Sender:   f.Sender,
		SensorID: protocol.NodeSensorID,
		Command:  protocol.CommandStream,
		SubType:  protocol.StreamFirmwareConfigResponse,
		Data:     protocol.PutWords(img.Type, img.Version, uint16(img.BlockCount), img.CRC),
	})
}

// firmwareBlock sends one 16 byte block of an exact (type, version) image.
func (d *Dispatcher) firmwareBlock(ctx context.Context, f protocol.Frame, out Sender) error {
	w, err := protocol.Words(f.Data, 3)
	if err != nil {
		return err
	}
	typ, version, block := w[0], w[1], w[2]
	img, err := d.firmware(ctx, typ, version)
	if err != nil {
		return err
	}
	data, err := img.Block(block)
	if err != nil {
		return err
	}
	payload := append(protocol.PutWords(img.Type, img.Version, block), data...)
	if err := out.Send(protocol.Frame{
		Sender:   f.Sender,
		SensorID: protocol.NodeSensorID,
		Command:  protocol.CommandStream,
		SubType:  protocol.StreamFirmwareResponse,
		Data:     payload,
	}); err != nil {
		return err
	}
	metrics.BlockServed()
	return nil
}

func (d *Dispatcher) firmware(ctx context.Context, typ, version uint16) (*firmware.Image, error) {
	key := utils.FirmwareKey{Type: typ, Version: version}
	if img, ok := d.cache.Get(key); ok {
		return img, nil
	}
	img, err := d.store.FindFirmwareExact(ctx, typ, version)
	if err != nil {
		return nil, storeErr("find firmware", err)
	}
	if img == nil {
		return nil, fmt.Errorf("%w: type %d version %d", ErrUnknownFirmware, typ, version)
	}
	d.cache.Set(img)
	return img, nil
}

package protocol

import "fmt"

const (
	// BroadcastAddress addresses every node on the network.
	BroadcastAddress uint8 = 255
	// NodeSensorID denotes the node itself rather than one of its child sensors.
	NodeSensorID uint8 = 255
	// GatewayAddress is the node id of the upstream gateway.
	GatewayAddress uint8 = 0
)

// Command is the top-level message category.
type Command uint8

const (
	CommandPresentation Command = 0
	CommandSet          Command = 1
	CommandReq          Command = 2
	CommandInternal     Command = 3
	CommandStream       Command = 4
)

var commandNames = map[Command]string{
	CommandPresentation: "PRESENTATION",
	CommandSet:          "SET",
	CommandReq:          "REQ",
	CommandInternal:     "INTERNAL",
	CommandStream:       "STREAM",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("COMMAND(%d)", uint8(c))
}

// ParseCommand maps a wire integer to a Command.
func ParseCommand(v uint64) (Command, error) {
	c := Command(v)
	if _, ok := commandNames[c]; !ok || v > 255 {
		return 0, fmt.Errorf("%w: %d", ErrUnknownCommand, v)
	}
	return c, nil
}

// Internal message sub-types.
const (
	InternalBatteryLevel  uint8 = 0
	InternalTime          uint8 = 1
	InternalVersion       uint8 = 2
	InternalIDRequest     uint8 = 3
	InternalIDResponse    uint8 = 4
	InternalInclusionMode uint8 = 5
	InternalConfig        uint8 = 6
	InternalPing          uint8 = 7
	InternalPingAck       uint8 = 8
	InternalLogMessage    uint8 = 9
	InternalChildren      uint8 = 10
	InternalSketchName    uint8 = 11
	InternalSketchVersion uint8 = 12
	InternalReboot        uint8 = 13
)

var internalNames = map[uint8]string{
	InternalBatteryLevel:  "I_BATTERY_LEVEL",
	InternalTime:          "I_TIME",
	InternalVersion:       "I_VERSION",
	InternalIDRequest:     "I_ID_REQUEST",
	InternalIDResponse:    "I_ID_RESPONSE",
	InternalInclusionMode: "I_INCLUSION_MODE",
	InternalConfig:        "I_CONFIG",
	InternalPing:          "I_PING",
	InternalPingAck:       "I_PING_ACK",
	InternalLogMessage:    "I_LOG_MESSAGE",
	InternalChildren:      "I_CHILDREN",
	InternalSketchName:    "I_SKETCH_NAME",
	InternalSketchVersion: "I_SKETCH_VERSION",
	InternalReboot:        "I_REBOOT",
}

// Stream message sub-types.
const (
	StreamFirmwareConfigRequest  uint8 = 0
	StreamFirmwareConfigResponse uint8 = 1
	StreamFirmwareRequest        uint8 = 2
	StreamFirmwareResponse       uint8 = 3
	StreamSound                  uint8 = 4
	StreamImage                  uint8 = 5
)

var streamNames = map[uint8]string{
	StreamFirmwareConfigRequest:  "ST_FIRMWARE_CONFIG_REQUEST",
	StreamFirmwareConfigResponse: "ST_FIRMWARE_CONFIG_RESPONSE",
	StreamFirmwareRequest:        "ST_FIRMWARE_REQUEST",
	StreamFirmwareResponse:       "ST_FIRMWARE_RESPONSE",
	StreamSound:                  "ST_SOUND",
	StreamImage:                  "ST_IMAGE",
}

// Sensor presentation types (S_*).
const (
	SensorDoor            uint8 = 0
	SensorMotion          uint8 = 1
	SensorSmoke           uint8 = 2
	SensorLight           uint8 = 3
	SensorDimmer          uint8 = 4
	SensorCover           uint8 = 5
	SensorTemp            uint8 = 6
	SensorHum             uint8 = 7
	SensorBaro            uint8 = 8
	SensorWind            uint8 = 9
	SensorRain            uint8 = 10
	SensorUV              uint8 = 11
	SensorWeight          uint8 = 12
	SensorPower           uint8 = 13
	SensorHeater          uint8 = 14
	SensorDistance        uint8 = 15
	SensorLightLevel      uint8 = 16
	SensorArduinoNode     uint8 = 17
	SensorArduinoRepeater uint8 = 18
	SensorLock            uint8 = 19
	SensorIR              uint8 = 20
	SensorWater           uint8 = 21
	SensorAirQuality      uint8 = 22
)

// Variable types carried by SET and REQ (V_*).
const (
	ValueTemp       uint8 = 0
	ValueHum        uint8 = 1
	ValueLight      uint8 = 2
	ValueDimmer     uint8 = 3
	ValuePressure   uint8 = 4
	ValueForecast   uint8 = 5
	ValueRain       uint8 = 6
	ValueRainRate   uint8 = 7
	ValueWind       uint8 = 8
	ValueGust       uint8 = 9
	ValueDirection  uint8 = 10
	ValueUV         uint8 = 11
	ValueWeight     uint8 = 12
	ValueDistance   uint8 = 13
	ValueImpedance  uint8 = 14
	ValueArmed      uint8 = 15
	ValueTripped    uint8 = 16
	ValueWatt       uint8 = 17
	ValueKWh        uint8 = 18
	ValueSceneOn    uint8 = 19
	ValueSceneOff   uint8 = 20
	ValueHeater     uint8 = 21
	ValueHeaterSw   uint8 = 22
	ValueLightLevel uint8 = 23
	ValueVar1       uint8 = 24
	ValueVar2       uint8 = 25
	ValueVar3       uint8 = 26
	ValueVar4       uint8 = 27
	ValueVar5       uint8 = 28
	ValueUp         uint8 = 29
	ValueDown       uint8 = 30
	ValueStop       uint8 = 31
	ValueIRSend     uint8 = 32
	ValueIRReceive  uint8 = 33
	ValueFlow       uint8 = 34
	ValueVolume     uint8 = 35
	ValueLockStatus uint8 = 36
)

var sensorNames = map[uint8]string{
	SensorDoor: "S_DOOR", SensorMotion: "S_MOTION", SensorSmoke: "S_SMOKE", SensorLight: "S_LIGHT",
	SensorDimmer: "S_DIMMER", SensorCover: "S_COVER", SensorTemp: "S_TEMP", SensorHum: "S_HUM",
	SensorBaro: "S_BARO", SensorWind: "S_WIND", SensorRain: "S_RAIN", SensorUV: "S_UV",
	SensorWeight: "S_WEIGHT", SensorPower: "S_POWER", SensorHeater: "S_HEATER", SensorDistance: "S_DISTANCE",
	SensorLightLevel: "S_LIGHT_LEVEL", SensorArduinoNode: "S_ARDUINO_NODE",
	SensorArduinoRepeater: "S_ARDUINO_REPEATER_NODE", SensorLock: "S_LOCK", SensorIR: "S_IR",
	SensorWater: "S_WATER", SensorAirQuality: "S_AIR_QUALITY",
}

var valueNames = map[uint8]string{
	ValueTemp: "V_TEMP", ValueHum: "V_HUM", ValueLight: "V_LIGHT", ValueDimmer: "V_DIMMER",
	ValuePressure: "V_PRESSURE", ValueForecast: "V_FORECAST", ValueRain: "V_RAIN", ValueRainRate: "V_RAINRATE",
	ValueWind: "V_WIND", ValueGust: "V_GUST", ValueDirection: "V_DIRECTION", ValueUV: "V_UV",
	ValueWeight: "V_WEIGHT", ValueDistance: "V_DISTANCE", ValueImpedance: "V_IMPEDANCE", ValueArmed: "V_ARMED",
	ValueTripped: "V_TRIPPED", ValueWatt: "V_WATT", ValueKWh: "V_KWH", ValueSceneOn: "V_SCENE_ON",
	ValueSceneOff: "V_SCENE_OFF", ValueHeater: "V_HEATER", ValueHeaterSw: "V_HEATER_SW",
	ValueLightLevel: "V_LIGHT_LEVEL", ValueVar1: "V_VAR1", ValueVar2: "V_VAR2", ValueVar3: "V_VAR3",
	ValueVar4: "V_VAR4", ValueVar5: "V_VAR5", ValueUp: "V_UP", ValueDown: "V_DOWN", ValueStop: "V_STOP",
	ValueIRSend: "V_IR_SEND", ValueIRReceive: "V_IR_RECEIVE", ValueFlow: "V_FLOW", ValueVolume: "V_VOLUME",
	ValueLockStatus: "V_LOCK_STATUS",
}

// SubTypeName returns a readable name for a sub-type in the context of its command.
// Unknown codes are rendered numerically; they are valid on the wire.
func SubTypeName(c Command, subType uint8) string {
	var names map[uint8]string
	switch c {
	case CommandPresentation:
		names = sensorNames
	case CommandSet, CommandReq:
		names = valueNames
	case CommandInternal:
		names = internalNames
	case CommandStream:
		names = streamNames
	}
	if s, ok := names[subType]; ok {
		return s
	}
	return fmt.Sprintf("%d", subType)
}

// Frame is one decoded protocol message.
// Payload holds the text payload for every command except STREAM, whose bytes live in Data.
type Frame struct {
	Sender   uint8
	SensorID uint8
	Command  Command
	Ack      bool
	SubType  uint8
	Payload  string
	Data     []byte
}

// IsNode reports whether the frame addresses the node itself.
func (f Frame) IsNode() bool { return f.SensorID == NodeSensorID }

func (f Frame) String() string {
	return fmt.Sprintf("%d/%d %s %s", f.Sender, f.SensorID, f.Command, SubTypeName(f.Command, f.SubType))
}

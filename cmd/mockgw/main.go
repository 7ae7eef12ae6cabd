package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"sensornet-gateway/internal/firmware"
	"sensornet-gateway/internal/gateway"
	"sensornet-gateway/internal/logging"
	"sensornet-gateway/internal/protocol"
)

// Config for the mock gateway device. Either listen_address (ethernet gateway)
// or serial_port (serial gateway, optionally a socat pty pair) is served.
type Config struct {
	ListenAddress string         `yaml:"listen_address"`
	SerialPort    string         `yaml:"serial_port"`
	BaudRate      int            `yaml:"baud_rate"`
	SpawnSocat    bool           `yaml:"spawn_socat"`
	SocatPeer     string         `yaml:"socat_peer"` // the controller opens this end
	Interval      time.Duration  `yaml:"interval"`
	NodeID        uint8          `yaml:"node_id"`
	Script        []string       `yaml:"script"`
	Log           logging.Config `yaml:"log"`
}

var defaultScript = []string{
	"0;0;3;0;9;gateway started",
	"0;255;0;0;18;1.4",
	"255;255;3;0;3;",
	"{node};255;0;0;17;1.4",
	"{node};255;3;0;11;Mock Node",
	"{node};255;3;0;12;1.0",
	"{node};1;0;0;6;",
	"{node};255;3;0;6;0",
	"{node};255;3;0;1;",
	"{node};255;4;0;0;FFFFFFFF",
}

func loadConfig(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	if cfg.ListenAddress == "" && cfg.SerialPort == "" {
		cfg.ListenAddress = "127.0.0.1:5003"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.NodeID == 0 {
		cfg.NodeID = 1
	}
	if len(cfg.Script) == 0 {
		cfg.Script = defaultScript
	}
	return cfg, nil
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to YAML config (optional)")
	flag.Parse()

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New("mockgw", cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SerialPort != "" {
		err = runSerial(ctx, cfg, log)
	} else {
		err = runTCP(ctx, cfg, log)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("mockgw exited")
	}
}

func runTCP(ctx context.Context, cfg Config, log zerolog.Logger) error {
	ln, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	log.Info().Str("address", cfg.ListenAddress).Msg("mockgw listening (tcp)")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		l := log.With().Str("peer", conn.RemoteAddr().String()).Logger()
		l.Info().Msg("controller connected")
		go func() {
			defer conn.Close()
			newDevice(cfg, conn, l).run(ctx)
			l.Info().Msg("controller disconnected")
		}()
	}
}

func runSerial(ctx context.Context, cfg Config, log zerolog.Logger) error {
	if cfg.SpawnSocat {
		if cfg.SocatPeer == "" {
			return fmt.Errorf("spawn_socat requires socat_peer")
		}
		cmd := buildSocatPairCmd(ctx, cfg.SerialPort, cfg.SocatPeer)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start socat: %w", err)
		}
		log.Info().Str("link", cfg.SerialPort).Str("peer", cfg.SocatPeer).Int("pid", cmd.Process.Pid).Msg("spawned socat pair")
		defer func() { _ = cmd.Wait() }()
		// Wait a moment for device creation
		time.Sleep(400 * time.Millisecond)
	}
	tr := gateway.SerialTransport{Params: gateway.SerialParams{Address: cfg.SerialPort, BaudRate: cfg.BaudRate}}
	port, err := tr.Open(ctx)
	if err != nil {
		return err
	}
	defer port.Close()
	go func() {
		<-ctx.Done()
		_ = port.Close()
	}()
	log.Info().Str("port", cfg.SerialPort).Msg("mockgw listening (serial)")
	newDevice(cfg, port, log).run(ctx)
	return ctx.Err()
}

func buildSocatPairCmd(ctx context.Context, link, peer string) *exec.Cmd {
	return exec.CommandContext(ctx, "socat",
		"-d", "-d",
		"pty,raw,echo=0,link="+link,
		"pty,raw,echo=0,link="+peer,
	)
}

// device plays a gateway with one node behind it. The node follows firmware offers
// by requesting blocks from the last down to 0, then checks the CRC.
type device struct {
	cfg Config
	rw  io.ReadWriter
	log zerolog.Logger

	mu sync.Mutex

	otaType, otaVersion uint16
	otaCRC              uint16
	otaData             []byte
}

func newDevice(cfg Config, rw io.ReadWriter, log zerolog.Logger) *device {
	return &device{cfg: cfg, rw: rw, log: log}
}

func (d *device) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go d.emit(ctx)

	dec := &protocol.Decoder{}
	buf := make([]byte, 512)
	for {
		n, err := d.rw.Read(buf)
		for _, r := range dec.Accumulate(buf[:n]) {
			if r.Err != nil {
				d.log.Warn().Err(r.Err).Msg("bad frame from controller")
				continue
			}
			d.log.Info().Str("frame", r.Frame.String()).Msg("<- " + trimLine(protocol.Encode(r.Frame)))
			d.react(r.Frame)
		}
		if err != nil {
			return
		}
	}
}

func (d *device) emit(ctx context.Context) {
	t := time.NewTicker(d.cfg.Interval)
	defer t.Stop()
	node := strconv.Itoa(int(d.cfg.NodeID))
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		var line string
		if i < len(d.cfg.Script) {
			line = strings.ReplaceAll(d.cfg.Script[i], "{node}", node)
		} else {
			line = fmt.Sprintf("%s;1;1;0;0;%.1f", node, 18+rand.Float64()*6)
		}
		if err := d.writeLine(line); err != nil {
			d.log.Warn().Err(err).Msg("write")
			return
		}
	}
}

func (d *device) writeLine(line string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := io.WriteString(d.rw, line+"\n"); err != nil {
		return err
	}
	d.log.Info().Msg("-> " + line)
	return nil
}

func (d *device) send(f protocol.Frame) {
	if err := d.writeLine(trimLine(protocol.Encode(f))); err != nil {
		d.log.Warn().Err(err).Msg("write")
	}
}

func (d *device) react(f protocol.Frame) {
	if f.Command != protocol.CommandStream || f.Sender != d.cfg.NodeID {
		return
	}
	switch f.SubType {
	case protocol.StreamFirmwareConfigResponse:
		w, err := protocol.Words(f.Data, 4)
		if err != nil {
			d.log.Warn().Err(err).Msg("firmware config response")
			return
		}
		blocks := int(w[2])
		if blocks == 0 {
			return
		}
		d.otaType, d.otaVersion, d.otaCRC = w[0], w[1], w[3]
		d.otaData = make([]byte, blocks*firmware.BlockSize)
		d.log.Info().Uint16("type", w[0]).Uint16("version", w[1]).Int("blocks", blocks).Msg("firmware offered")
		d.requestBlock(uint16(blocks - 1))
	case protocol.StreamFirmwareResponse:
		w, err := protocol.Words(f.Data, 3)
		if err != nil || len(f.Data) < 6+firmware.BlockSize || d.otaData == nil {
			return
		}
		block := int(w[2])
		if off := block * firmware.BlockSize; off+firmware.BlockSize <= len(d.otaData) {
			copy(d.otaData[off:], f.Data[6:6+firmware.BlockSize])
		}
		if block > 0 {
			d.requestBlock(uint16(block - 1))
			return
		}
		if crc := firmware.CRC16(d.otaData); crc != d.otaCRC {
			d.log.Error().Str("want", fmt.Sprintf("%04X", d.otaCRC)).Str("got", fmt.Sprintf("%04X", crc)).Msg("firmware crc mismatch")
		} else {
			d.log.Info().Uint16("type", d.otaType).Uint16("version", d.otaVersion).Msg("firmware transfer complete")
		}
		d.otaData = nil
	}
}

func (d *device) requestBlock(block uint16) {
	d.send(protocol.Frame{
		Sender:   d.cfg.NodeID,
		SensorID: protocol.NodeSensorID,
		Command:  protocol.CommandStream,
		SubType:  protocol.StreamFirmwareRequest,
		Data:     protocol.PutWords(d.otaType, d.otaVersion, block),
	})
}

func trimLine(s string) string { return strings.TrimSuffix(s, "\n") }

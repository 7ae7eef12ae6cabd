package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte("gateway:\n  type: tcp\n  address: 10.0.1.99:9999\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML failed: %v", err)
	}
	g := cfg.Gateway
	if g.BaudRate != 115200 || g.ReadTimeout != time.Second || *g.HeartbeatInterval != 5*time.Minute {
		t.Fatalf("gateway defaults not applied: %+v", g)
	}
	r := g.Reconnect
	if r.InitialDelay != time.Second || r.MaxDelay != time.Minute || r.Multiplier != 2 || !*r.Jitter {
		t.Fatalf("reconnect defaults not applied: %+v", r)
	}
	if cfg.Storage.DBPath != "data/gateway.sqlite" {
		t.Fatalf("db_path = %q", cfg.Storage.DBPath)
	}
	if *cfg.Firmware.DefaultType != 0xFFFF || cfg.Firmware.CacheTTL != 10*time.Minute {
		t.Fatalf("firmware defaults not applied: %+v", cfg.Firmware)
	}
	if cfg.TimeUnit != TimeSeconds || cfg.Log.Level != "info" {
		t.Fatalf("unexpected time_unit %q or log level %q", cfg.TimeUnit, cfg.Log.Level)
	}
}

func TestParseFull(t *testing.T) {
	doc := `
gateway:
  type: serial
  serial_port: /dev/ttyAMA0
  baud_rate: 38400
  heartbeat_interval: 0s
  reconnect:
    initial_delay: 2s
    jitter: false
storage:
  db_path: /var/lib/gw.sqlite
firmware:
  default_type: 1
  verify_checksum: true
  images:
    - {type: 1, version: 3, path: firmware/blink.hex}
time_unit: milliseconds
metrics:
  listen_address: ":9100"
log:
  level: debug
  format: json
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Gateway.BaudRate != 38400 || *cfg.Gateway.HeartbeatInterval != 0 {
		t.Fatalf("gateway = %+v", cfg.Gateway)
	}
	if cfg.Gateway.Reconnect.InitialDelay != 2*time.Second || *cfg.Gateway.Reconnect.Jitter {
		t.Fatalf("reconnect = %+v", cfg.Gateway.Reconnect)
	}
	if *cfg.Firmware.DefaultType != 1 || !cfg.Firmware.VerifyChecksum {
		t.Fatalf("firmware = %+v", cfg.Firmware)
	}
	if len(cfg.Firmware.Images) != 1 || cfg.Firmware.Images[0] != (ImageConfig{Type: 1, Version: 3, Path: "firmware/blink.hex"}) {
		t.Fatalf("images = %+v", cfg.Firmware.Images)
	}
	if cfg.TimeUnit != TimeMilliseconds || cfg.Metrics.ListenAddress != ":9100" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"missing type", "storage: {db_path: x}\n"},
		{"unknown type", "gateway: {type: mqtt}\n"},
		{"serial without port", "gateway: {type: serial}\n"},
		{"tcp without address", "gateway: {type: tcp}\n"},
		{"bad time unit", "gateway: {type: tcp, address: a:1}\ntime_unit: hours\n"},
		{"image without path", "gateway: {type: tcp, address: a:1}\nfirmware: {images: [{type: 1, version: 1}]}\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.doc)); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}

	if _, err := Parse([]byte("gateway: [")); err == nil || errors.Is(err, ErrInvalid) {
		t.Fatalf("expected yaml syntax error, got %v", err)
	}
}

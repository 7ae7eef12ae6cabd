package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"sensornet-gateway/internal/config"
	"sensornet-gateway/internal/db"
	"sensornet-gateway/internal/dispatch"
	"sensornet-gateway/internal/firmware"
	"sensornet-gateway/internal/gateway"
	"sensornet-gateway/internal/logging"
	"sensornet-gateway/internal/metrics"
)

func main() {
	var cfgPath string
	var reboot string
	flag.StringVar(&cfgPath, "config", "config/gateway.yaml", "path to YAML config")
	flag.StringVar(&reboot, "reboot", "", "comma separated node ids to reboot on their next message")
	flag.Parse()

	cfg, err := config.LoadYAML(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load yaml config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New("gateway", cfg.Log)

	if err := run(cfg, reboot, log); err != nil {
		log.Fatal().Err(err).Msg("gateway exited")
	}
}

func run(cfg config.Config, reboot string, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.OpenWithLogger(cfg.Storage.DBPath, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := requestReboots(ctx, store, reboot, log); err != nil {
		return err
	}

	opts := dispatch.Options{
		DefaultFirmwareType: *cfg.Firmware.DefaultType,
		CacheTTL:            cfg.Firmware.CacheTTL,
	}
	if cfg.TimeUnit == config.TimeMilliseconds {
		opts.TimeUnit = dispatch.Milliseconds
	}
	d := dispatch.New(store, log, opts)

	loadImages(ctx, store, d, cfg.Firmware, log)
	go reloadOnHangup(ctx, store, d, cfg.Firmware, log)

	if cfg.Metrics.ListenAddress != "" {
		metrics.RegisterMetrics()
		srv := &http.Server{Addr: cfg.Metrics.ListenAddress, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics endpoint")
			}
		}()
		defer srv.Close()
		log.Info().Str("address", cfg.Metrics.ListenAddress).Msg("metrics endpoint listening")
	}

	s := gateway.NewSession(newTransport(cfg.Gateway), d, log, gateway.Options{
		Heartbeat: *cfg.Gateway.HeartbeatInterval,
		Backoff: gateway.BackoffConfig{
			InitialDelay: cfg.Gateway.Reconnect.InitialDelay,
			MaxDelay:     cfg.Gateway.Reconnect.MaxDelay,
			Multiplier:   cfg.Gateway.Reconnect.Multiplier,
			Jitter:       *cfg.Gateway.Reconnect.Jitter,
		},
	})
	return s.Run(ctx)
}

func newTransport(g config.GatewayConfig) gateway.Transport {
	if g.Type == config.GatewaySerial {
		return gateway.SerialTransport{Params: gateway.SerialParams{
			Address:  g.SerialPort,
			BaudRate: g.BaudRate,
			Timeout:  g.ReadTimeout,
		}}
	}
	return gateway.TCPTransport{Address: g.Address, DialTimeout: 10 * time.Second}
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// loadImages parses every configured hex file and stores it. A bad file skips that image only.
func loadImages(ctx context.Context, store *db.DB, d *dispatch.Dispatcher, cfg config.FirmwareConfig, log zerolog.Logger) {
	opts := firmware.Options{VerifyChecksum: cfg.VerifyChecksum}
	for _, ic := range cfg.Images {
		l := log.With().Uint16("type", ic.Type).Uint16("version", ic.Version).Str("path", ic.Path).Logger()
		img, err := firmware.LoadFile(ic.Path, ic.Type, ic.Version, opts)
		if err != nil {
			l.Error().Err(err).Msg("load firmware")
			continue
		}
		if err := store.UpsertFirmware(ctx, img); err != nil {
			l.Error().Err(err).Msg("store firmware")
			continue
		}
		d.ForgetFirmware(img.Type, img.Version)
		l.Info().Uint32("blocks", img.BlockCount).Str("crc", fmt.Sprintf("%04X", img.CRC)).Msg("firmware loaded")
	}
}

func reloadOnHangup(ctx context.Context, store *db.DB, d *dispatch.Dispatcher, cfg config.FirmwareConfig, log zerolog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			log.Info().Msg("reloading firmware images")
			loadImages(ctx, store, d, cfg, log)
		}
	}
}

func requestReboots(ctx context.Context, store *db.DB, list string, log zerolog.Logger) error {
	if list == "" {
		return nil
	}
	for _, field := range strings.Split(list, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(field), 10, 8)
		if err != nil {
			return fmt.Errorf("invalid node id %q: %w", field, err)
		}
		if err := store.RequestReboot(ctx, uint8(id)); err != nil {
			return fmt.Errorf("request reboot of %d: %w", id, err)
		}
		log.Info().Uint64("node", id).Msg("reboot requested")
	}
	return nil
}

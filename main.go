// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"visualizer/cmd"
	"visualizer/internal/analysis"
	"visualizer/internal/audio"
	"visualizer/internal/config"
	"visualizer/internal/health"
	"visualizer/internal/log"
	"visualizer/internal/media"
	"visualizer/internal/observe"
	"visualizer/internal/pipeline"
	"visualizer/internal/shutdown"
	"visualizer/internal/transport"
	"visualizer/internal/transport/udp"
	"visualizer/internal/tui"
	"visualizer/pkg/build"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"
)

// main is the entry point for the visualizer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Resolve build information and parse the command line
//   - Load config.yaml and the persisted user settings
//   - Initialize PortAudio and choose the input device
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Pipeline driver: capture, analyze, emit
//   - HTTP boundary: /ws, /metrics, /healthz, /readyz, static UI
//   - Media poller and optional UDP mirror
//
// 3. Shutdown Phase (Cold Path):
//   - A termination signal sets the shutdown flag
//   - Every task returns, the device is released, metrics are flushed
func main() {
	if err := run(); err != nil {
		log.Errorf("%v", err)
		log.Sync()
		os.Exit(1)
	}
}

func run() error {
	// ==================== STARTUP PHASE (Cold Path) ====================

	stampErr := build.Initialize()

	opts, err := cmd.ParseArgs(os.Args[1:], os.Stdout)
	if err != nil {
		return err
	}
	if !opts.Run {
		return nil
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	opts.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	configureLogging(cfg)
	defer log.Sync()

	if stampErr != nil {
		log.Debugf("Build: %v, using %s", stampErr, build.GetBuildFlags().Version)
	}

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	// Handle one-off commands that don't require the pipeline
	if opts.Command == cmd.CommandList {
		return audio.ListDevices(os.Stdout)
	}

	store := config.NewSettingsStore(cfg.Settings.Path)
	settings, err := store.Load()
	if err != nil {
		log.Warnf("Settings: %v, using defaults", err)
	}

	engine, err := cfg.Engine(settings.Sensitivity)
	if err != nil {
		return err
	}

	deviceID, err := chooseDevice(cfg, opts, store, settings)
	if errors.Is(err, tui.ErrAborted) {
		return nil
	}
	if err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	flag := shutdown.New()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		select {
		case sig := <-signals:
			log.Infof("Received %s, shutting down", sig)
			flag.Request()
		case <-flag.Done():
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-flag.Done()
		cancel()
	}()

	provider, err := observe.InitProvider(observe.ProviderConfig{
		ServiceName:    build.GetBuildFlags().Name,
		ServiceVersion: build.GetBuildFlags().Version,
	})
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	var (
		presenter transport.Transport
		mux       *http.ServeMux
		serve     func(context.Context) error
	)
	if opts.Headless {
		presenter = transport.NewLoggingTransport()
		mux = http.NewServeMux()
		serve = func(ctx context.Context) error { return serveHTTP(ctx, cfg.Transport.ListenAddr, mux) }
	} else {
		hub := transport.NewWebSocketTransport(cfg.Transport.ListenAddr, provider.Metrics)
		hub.OnMessage(transport.EventSaveSettings, saveSettingsHandler(store, hub))
		presenter = hub
		mux = hub.Mux()
		serve = hub.ListenAndServe
	}
	defer presenter.Close()

	log.SetSink(func(level, message string) {
		_ = presenter.Send(transport.Message{
			Event:   transport.EventAddLog,
			Payload: transport.LogPayload{Level: level, Message: message},
		})
	})
	defer log.SetSink(nil)

	var frames analysis.FrameStore
	driver := pipeline.New(pipeline.Options{
		Engine:    engine,
		DeviceID:  deviceID,
		Open:      opener(cfg, engine),
		Presenter: presenter,
		Frames:    &frames,
		Flag:      flag,
		Metrics:   provider.Metrics,
		OnAcquired: func(src pipeline.Source) {
			// Reacquiring after a save must not replay the startup values.
			current, err := store.Load()
			if err != nil {
				current = settings
			}
			_ = presenter.Send(transport.Message{Event: transport.EventApplyConfig, Payload: current.Init(), Sticky: true})
			_ = presenter.Send(transport.Message{Event: transport.EventSetStatus, Payload: "Capturing: " + src.Name, Sticky: true})
		},
	})

	mux.Handle("/metrics", provider.Handler())
	health.New(health.Checker{Name: "pipeline", Check: driver.Ready}).Register(mux)
	if dir := cfg.Transport.WebDir; dir != "" {
		mux.Handle("/", http.FileServer(http.Dir(dir)))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := driver.Run(gctx); err != nil {
			// The HTTP boundary keeps serving until the user quits.
			log.Errorf("Pipeline: %v", err)
			_ = presenter.Send(transport.Message{Event: transport.EventSetStatus, Payload: "No input device", Sticky: true})
		}
		return nil
	})

	g.Go(func() error {
		if err := serve(gctx); err != nil {
			log.Errorf("HTTP: %v", err)
		}
		return nil
	})

	if cfg.Media.Enabled {
		src, err := media.NewSource()
		switch {
		case errors.Is(err, media.ErrUnsupported):
			log.Debugf("Media: %v", err)
		case err != nil:
			log.Warnf("Media: %v", err)
		default:
			defer src.Close()
			poller := media.NewPoller(src, media.NewCoverFetcher(cfg.Media.FetchTimeout), presenter, engine.MediaPollInterval, provider.Metrics)
			g.Go(func() error { return poller.Run(gctx) })
		}
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			log.Warnf("UDP mirror disabled: %v", err)
		} else {
			defer sender.Close()
			publisher, err := udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, &frames)
			if err != nil {
				return err
			}
			g.Go(func() error { return publisher.Run(gctx) })
		}
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	err = g.Wait()
	log.Infof("Stopped (pipeline %s)", driver.State())
	return err
}

func configureLogging(cfg *config.Config) {
	if cfg.Debug {
		log.SetLevel(log.LevelDebug)
		return
	}
	if lvl, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(lvl)
	} else {
		log.Warnf("Unknown log level %q, using %s", cfg.LogLevel, log.GetLevel())
	}
}

// chooseDevice resolves the device id: an explicit flag or config value,
// the interactive prompt on a terminal, else the persisted id or 0.
func chooseDevice(cfg *config.Config, opts *cmd.Options, store *config.SettingsStore, settings config.Settings) (int, error) {
	if cfg.Audio.Source == config.SourceFile {
		return 0, nil
	}
	if opts.DeviceSet || cfg.Audio.InputDevice != config.MinDeviceID {
		return cfg.Audio.InputDevice, nil
	}

	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		if settings.DeviceID >= 0 {
			return settings.DeviceID, nil
		}
		return 0, nil
	}

	devices, err := audio.InputDevices()
	if err != nil {
		return 0, err
	}
	choice, err := tui.Select(devices, settings.DeviceID, tui.DefaultCountdown)
	if err != nil {
		return 0, err
	}
	if choice.Manual {
		if err := store.SaveDevice(choice.DeviceID); err != nil {
			log.Warnf("Settings: %v", err)
		}
	}
	return choice.DeviceID, nil
}

// opener returns the capture factory for the configured source.
func opener(cfg *config.Config, engine config.Engine) pipeline.Opener {
	if cfg.Audio.Source == config.SourceFile {
		return func(int) (pipeline.Source, error) {
			c, err := audio.OpenFile(cfg.Audio.File, engine)
			if err != nil {
				return pipeline.Source{}, err
			}
			return pipeline.Source{Capture: c, Name: cfg.Audio.File}, nil
		}
	}
	return func(id int) (pipeline.Source, error) {
		dev, err := audio.InputDevice(id)
		if err != nil {
			return pipeline.Source{}, err
		}
		c, err := audio.OpenStream(dev, engine)
		if err != nil {
			return pipeline.Source{}, err
		}
		return pipeline.Source{Capture: c, Name: dev.Name, Loopback: dev.Loopback}, nil
	}
}

// saveSettingsHandler persists a partial settings object sent by the UI and
// replaces the sticky apply_config so clients that connect later see the
// saved values.
func saveSettingsHandler(store *config.SettingsStore, presenter transport.Transport) transport.Handler {
	return func(payload json.RawMessage) error {
		var partial map[string]any
		if err := json.Unmarshal(payload, &partial); err != nil {
			return fmt.Errorf("decode settings: %w", err)
		}
		if err := store.Save(partial); err != nil {
			return err
		}
		log.Infof("Settings saved to %s", store.Path())

		settings, err := store.Load()
		if err != nil {
			return err
		}
		return presenter.Send(transport.Message{Event: transport.EventApplyConfig, Payload: settings.Init(), Sticky: true})
	}
}

// serveHTTP serves mux without the WebSocket hub, for headless runs.
func serveHTTP(ctx context.Context, addr string, mux *http.ServeMux) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("HTTP: Serving on http://%s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

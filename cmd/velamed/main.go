package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/velamed/velamed/internal/audit"
	"github.com/velamed/velamed/internal/auth"
	"github.com/velamed/velamed/internal/config"
	"github.com/velamed/velamed/internal/detect"
	"github.com/velamed/velamed/internal/engine"
	"github.com/velamed/velamed/internal/logging"
	"github.com/velamed/velamed/internal/nerguard"
	"github.com/velamed/velamed/internal/patterns"
	"github.com/velamed/velamed/internal/server"
	"github.com/velamed/velamed/internal/telemetry"
	"github.com/velamed/velamed/internal/vault"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "velamed",
		Short: "Velamed PHI de-identification service",
	}
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "velamed.yaml", "path to config file")
	return cmd
}

func runServe(configPath string) error {
	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	log := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, nil)

	keys, err := vault.NewKeyring(cfg.Vault.Keys)
	if err != nil {
		return err
	}

	detectorOpts := []detect.Option{}
	var guard *nerguard.Model
	if cfg.Guard.Enabled {
		guard, err = nerguard.Load(cfg.Guard.BundleDir, cfg.Guard.SequenceLength)
		if err != nil {
			// Best-effort layer: the regex library carries detection alone.
			log.Warn().Str("bundle_dir", cfg.Guard.BundleDir).Err(err).Msg("name model unavailable, continuing without it")
		} else {
			detectorOpts = append(detectorOpts, detect.WithSpecialist(guard))
			log.Info().Msg("name model loaded")
		}
	}
	detector := detect.New(patterns.Library(), detectorOpts...)

	var emitter *audit.Emitter
	if cfg.Audit.Enabled {
		sinks, err := buildSinks(cfg.Audit.Sinks)
		if err != nil {
			return err
		}
		emitter = audit.NewEmitter(audit.EmitterConfig{
			QueueSize:       cfg.Audit.QueueSize,
			Workers:         cfg.Audit.Workers,
			ShutdownTimeout: time.Duration(cfg.Audit.ShutdownTimeoutMS) * time.Millisecond,
		}, sinks, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  cfg.Telemetry.Service,
		Version:  engine.Version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	eng := engine.New(engine.Config{
		Detector:     detector,
		Keys:         keys,
		Emitter:      emitter,
		Telemetry:    tel,
		Logger:       log,
		MaxTextBytes: cfg.Engine.MaxTextBytes,
	})

	authn, err := auth.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Addr:   cfg.Server.Addr,
		Engine: eng,
		Auth:   authn,
		Logger: log,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	log.Info().Str("addr", cfg.Server.Addr).Str("version", engine.Version).Msg("velamed listening")

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown error")
	}
	if emitter != nil {
		emitter.Close(shutdownCtx)
	}
	if guard != nil {
		_ = guard.Close()
	}
	tel.Shutdown(shutdownCtx)
	log.Info().Msg("velamed stopped")
	return nil
}

func buildSinks(cfgs []config.SinkConfig) ([]audit.Sink, error) {
	sinks := make([]audit.Sink, 0, len(cfgs))
	for _, sc := range cfgs {
		switch sc.Type {
		case "file_jsonl":
			s, err := audit.NewFileSink(sc.Path)
			if err != nil {
				return nil, fmt.Errorf("audit file sink: %w", err)
			}
			sinks = append(sinks, s)
		case "webhook":
			s, err := audit.NewWebhookSink(sc.URL, sc.Headers, time.Duration(sc.TimeoutMS)*time.Millisecond)
			if err != nil {
				return nil, fmt.Errorf("audit webhook sink: %w", err)
			}
			sinks = append(sinks, s)
		default:
			return nil, fmt.Errorf("unknown audit sink type %q", sc.Type)
		}
	}
	return sinks, nil
}

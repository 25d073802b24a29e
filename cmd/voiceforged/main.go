package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"voiceforged/internal/backend/runner"
	"voiceforged/internal/config"
	"voiceforged/internal/engine"
	"voiceforged/internal/httpapi"
	"voiceforged/internal/registry"
)

var version = "dev"

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// defaultSizeFromEnv honors the small-models switch when no explicit size
// flag is given.
func defaultSizeFromEnv() string {
	switch strings.ToLower(os.Getenv("VOICEFORGED_SMALL_MODELS")) {
	case "1", "true", "yes":
		return string(engine.SizeSmall)
	}
	return string(engine.SizeLarge)
}

func main() {
	root := &cobra.Command{
		Use:           "voiceforged",
		Short:         "Text-to-speech daemon over lazily loaded neural voice models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), versionCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the daemon version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("voiceforged", version)
		},
	}
}

func serveCmd() *cobra.Command {
	var (
		cfgPath     string
		addr        string
		modelsDir   string
		outputDir   string
		runnerBin   string
		forceCPU    bool
		defaultSize string
		logLevel    string
		corsEnabled bool
		corsOrigins []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{}
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = loaded
			}
			// Explicit flags override file values.
			flags := cmd.Flags()
			if flags.Changed("addr") || cfg.Addr == "" {
				cfg.Addr = addr
			}
			if flags.Changed("models-dir") || cfg.ModelsDir == "" {
				cfg.ModelsDir = modelsDir
			}
			if flags.Changed("output-dir") || cfg.OutputDir == "" {
				cfg.OutputDir = outputDir
			}
			if flags.Changed("runner-bin") || cfg.RunnerBin == "" {
				cfg.RunnerBin = runnerBin
			}
			if flags.Changed("force-cpu") {
				cfg.ForceCPU = forceCPU
			}
			if flags.Changed("default-model-size") || cfg.DefaultModelSize == "" {
				cfg.DefaultModelSize = defaultSize
			}
			if flags.Changed("log-level") || cfg.LogLevel == "" {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("cors-enabled") {
				cfg.CORSEnabled = corsEnabled
			}
			if flags.Changed("cors-origins") {
				cfg.CORSOrigins = corsOrigins
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", os.Getenv("VOICEFORGED_CONFIG"), "Config file (.yaml/.json/.toml); flags override")
	cmd.Flags().StringVar(&addr, "addr", envOr("VOICEFORGED_ADDR", ":8000"), "HTTP listen address")
	cmd.Flags().StringVar(&modelsDir, "models-dir", envOr("VOICEFORGED_MODELS_DIR", "~/models/tts"), "Directory holding provisioned model weights")
	cmd.Flags().StringVar(&outputDir, "output-dir", envOr("VOICEFORGED_OUTPUT_DIR", "generations"), "Directory generated WAV files are written to")
	cmd.Flags().StringVar(&runnerBin, "runner-bin", os.Getenv("VOICEFORGED_RUNNER"), "TTS runner executable (required for real synthesis)")
	cmd.Flags().BoolVar(&forceCPU, "force-cpu", strings.EqualFold(os.Getenv("VOICEFORGED_DEVICE"), "cpu"), "Pin the device profile to CPU")
	cmd.Flags().StringVar(&defaultSize, "default-model-size", defaultSizeFromEnv(), "Model size used when a request omits model_size (1.7B|0.6B)")
	cmd.Flags().StringVar(&logLevel, "log-level", envOr("VOICEFORGED_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	cmd.Flags().BoolVar(&corsEnabled, "cors-enabled", false, "Enable CORS middleware")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origins", []string{"*"}, "Allowed CORS origins")
	return cmd
}

func serve(cfg config.Config) error {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()

	resolver, err := registry.New(cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("models dir: %w", err)
	}

	var backend engine.Backend
	if cfg.RunnerBin != "" {
		backend = runner.New(runner.Config{Bin: cfg.RunnerBin}, log)
	} else {
		log.Warn().Msg("no runner binary configured; model loads will fail until --runner-bin is set")
		backend = runner.Unavailable{Reason: "tts runner not configured (set --runner-bin)"}
	}

	eng := engine.New(engine.Options{
		Backend:   backend,
		Resolver:  resolver,
		Device:    engine.DeviceConfig{ForceCPU: cfg.ForceCPU},
		Config:    engine.Config{MaxTextChars: cfg.MaxTextChars},
		Logger:    log,
		Publisher: httpapi.EventMetrics{},
	})

	httpapi.SetLogger(log)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	mux := httpapi.NewMux(eng, httpapi.MuxOptions{
		OutputDir:        cfg.OutputDir,
		DefaultModelSize: engine.ParseModelSize(cfg.DefaultModelSize),
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", resolver.ModelsDir()).Msg("voiceforged listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	eng.UnloadAll()
	log.Info().Msg("all models unloaded")
	return nil
}

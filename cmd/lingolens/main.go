// LingoLens - watches a screen region, translates the text it finds and
// shows the result in an overlay next to the region.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/lingolens/platform/internal/config"
	"github.com/lingolens/platform/internal/delta"
	"github.com/lingolens/platform/internal/history"
	"github.com/lingolens/platform/internal/languages"
	"github.com/lingolens/platform/internal/ocr"
	"github.com/lingolens/platform/internal/ocr/tesseract"
	"github.com/lingolens/platform/internal/overlay"
	"github.com/lingolens/platform/internal/pipeline"
	"github.com/lingolens/platform/internal/resilience"
	"github.com/lingolens/platform/internal/screen"
	"github.com/lingolens/platform/internal/server"
	"github.com/lingolens/platform/internal/speech"
	"github.com/lingolens/platform/internal/speech/device"
	"github.com/lingolens/platform/internal/translate"
)

var (
	envFiles []string
	httpAddr string
)

func main() {
	root := &cobra.Command{
		Use:          "lingolens",
		Short:        "Translate text in a screen region and overlay the result",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the capture pipeline and the overlay server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	for _, c := range []*cobra.Command{root, serve} {
		c.Flags().StringVar(&httpAddr, "addr", "", "listen address (overrides HTTP_ADDR)")
	}

	root.AddCommand(serve,
		&cobra.Command{
			Use:   "languages",
			Short: "Print the recognition and translation language tables",
			Args:  cobra.NoArgs,
			RunE:  runLanguages,
		},
		&cobra.Command{
			Use:   "monitors",
			Short: "List the attached displays",
			Args:  cobra.NoArgs,
			RunE:  runMonitors,
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg := config.Load()
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func runLanguages(cmd *cobra.Command, _ []string) error {
	tables, err := languages.Load()
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), tables)
}

func runMonitors(cmd *cobra.Command, _ []string) error {
	return printJSON(cmd.OutOrStdout(), screen.NewDisplayCapturer().Monitors())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("lingolens starting", "http", cfg.HTTPAddr, "detector", cfg.ChangeDetector, "interval", cfg.CaptureInterval)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	slog.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if a.manager.State() == pipeline.Running {
		if err := a.manager.Stop(shutdownCtx); err != nil {
			slog.Error("pipeline stop error", "error", err)
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	if err := a.Close(); err != nil {
		slog.Error("cleanup error", "error", err)
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

// app holds the long-lived components.
type app struct {
	manager *pipeline.Manager
	server  *server.Server
	voice   *speech.Queue
	player  *device.Player
	engine  *tesseract.Engine
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	tables, err := languages.Load()
	if err != nil {
		return nil, err
	}

	display := screen.NewDisplayCapturer()

	var detector delta.Detector
	switch cfg.ChangeDetector {
	case config.DetectorPerceptual:
		detector = delta.NewPerceptualDetector(cfg.PerceptualMaxDist)
	default:
		detector = delta.NewPixelDetector(uint8(cfg.ChangeThreshold))
	}

	engine, err := tesseract.New(tesseract.Config{
		PageSegMode:    cfg.PageSegMode,
		TessdataPrefix: cfg.TessdataPrefix,
	})
	if err != nil {
		return nil, err
	}
	recognizer := ocr.NewGuarded(engine, cfg.RecognitionTimeout)

	translator, err := translate.New(ctx, translate.Config{
		APIKey:  cfg.GoogleAPIKey,
		Timeout: cfg.TranslationTimeout,
	})
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	synth, err := speech.NewGoogleSynthesizer(ctx, speech.GoogleConfig{
		APIKey:     cfg.GoogleAPIKey,
		SampleRate: cfg.VoiceSampleRate,
		Timeout:    cfg.SynthesisTimeout,
	})
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	player, err := device.NewPlayer(cfg.VoiceDevice, cfg.ExcludedDevices)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	voice := speech.NewQueue(synth, player, cfg.SynthesisTimeout)

	store := history.NewStore(cfg.HistorySize, cfg.EventBuffer)
	hub := overlay.NewHub()

	manager := pipeline.New(pipeline.Deps{
		Capturer:   display,
		Locator:    display,
		Detector:   detector,
		Recognizer: recognizer,
		Translator: translator,
		Presenter:  hub,
		Speaker:    voice,
		Publisher:  store,
		Languages:  tables,
		Breakers:   []*resilience.Breaker{recognizer.Breaker(), translator.Breaker(), synth.Breaker()},
	}, pipeline.Options{
		Interval:            cfg.CaptureInterval,
		SettleDelay:         cfg.SettleDelay,
		QueueCapacity:       cfg.QueueCapacity,
		SimilarityThreshold: cfg.SimilarityThreshold,
		UpscaleFactor:       cfg.UpscaleFactor,
		BinarizeThreshold:   uint8(cfg.BinarizeThreshold),
		DebugFramePath:      cfg.DebugFramePath,
	})

	srv := server.New(server.Deps{
		Controller: manager,
		Hub:        hub,
		Events:     store,
		Languages:  tables,
		Monitors:   display,
	}, cfg)

	return &app{
		manager: manager,
		server:  srv,
		voice:   voice,
		player:  player,
		engine:  engine,
	}, nil
}

// Close releases every component and reports all failures.
func (a *app) Close() error {
	var result *multierror.Error
	a.server.Close()
	if err := a.voice.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("voice queue: %w", err))
	}
	if err := a.player.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("audio player: %w", err))
	}
	if err := a.engine.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("ocr engine: %w", err))
	}
	return result.ErrorOrNil()
}

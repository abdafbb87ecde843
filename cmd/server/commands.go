package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/plantcare-api/internal/config"
	"github.com/Brownie44l1/plantcare-api/internal/diagnosis"
	"github.com/Brownie44l1/plantcare-api/internal/handlers"
	"github.com/Brownie44l1/plantcare-api/internal/logging"
	"github.com/Brownie44l1/plantcare-api/internal/model"
	"github.com/Brownie44l1/plantcare-api/internal/service"
	"github.com/Brownie44l1/plantcare-api/internal/web"
)

type options struct {
	configPath   string
	addr         string
	modelPath    string
	metadataPath string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "plantcare",
		Short:         "Plant leaf disease detection service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", os.Getenv("PLANTCARE_CONFIG"), "Path to a .yaml, .json or .toml config file")
	pf.StringVar(&opts.modelPath, "model", "", "Path to the ONNX model artifact")
	pf.StringVar(&opts.metadataPath, "metadata", "", "Path to the model metadata JSON")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&opts.addr, "addr", "", "HTTP listen address, e.g. :8080")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web pages and the prediction API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	predict := &cobra.Command{
		Use:     "predict IMAGE...",
		Short:   "Diagnose image files and print the results as JSON",
		Example: "  plantcare predict leaf.jpg\n  plantcare predict --model models/plant.onnx a.png b.jpg",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd.Context(), opts, args, cmd.OutOrStdout())
		},
	}

	labelsCmd := &cobra.Command{
		Use:   "labels",
		Short: "Print the class label table in model output order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLabels(opts, cmd.OutOrStdout())
		},
	}

	root.AddCommand(serve, predict, labelsCmd)
	return root
}

// resolveConfig applies file, environment and then command line flags.
func resolveConfig(opts *options) (config.Config, error) {
	cfg, err := config.Resolve(opts.configPath, os.Getenv)
	if err != nil {
		return cfg, err
	}
	cfg = cfg.Merge(config.Config{
		Addr:         opts.addr,
		ModelPath:    opts.modelPath,
		MetadataPath: opts.metadataPath,
		LogLevel:     opts.logLevel,
	})
	return cfg, cfg.Validate()
}

func newLoader(cfg config.Config, log zerolog.Logger) *model.Loader {
	return model.NewLoader(
		model.ONNXOpener(cfg.ModelPath, cfg.MetadataPath, cfg.ORTLibraryPath, log),
		log.With().Str("component", "model").Logger(),
	)
}

func runServe(ctx context.Context, opts *options) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	log, closer := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile}, os.Stderr)
	defer closer.Close()

	log.Info().Str("model", cfg.ModelPath).Str("metadata", cfg.MetadataPath).Msg("loading model")
	loader := newLoader(cfg, log)
	// A model that cannot be loaded is fatal: nothing could be served.
	if _, err := loader.Get(); err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer loader.Close()

	if opts.configPath != "" {
		w, err := config.NewWatcher(opts.configPath, cfg, os.Getenv, log, func(c config.Config, err error) {
			if err != nil {
				return
			}
			logging.SetLevel(c.LogLevel)
			log.Info().Str("log_level", c.LogLevel).Msg("config reloaded; only log_level applies without restart")
		})
		if err != nil {
			log.Warn().Err(err).Msg("config hot reload disabled")
		} else {
			defer w.Close()
		}
	}

	pages, err := web.NewRenderer()
	if err != nil {
		return err
	}
	detector := service.NewDetector(loader, log.With().Str("component", "detector").Logger())
	h := handlers.NewHandler(detector, pages, log.With().Str("component", "http").Logger(), cfg.MaxUploadBytes)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlers.NewRouter(h, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type predictResult struct {
	File      string               `json:"file"`
	Diagnosis *diagnosis.Diagnosis `json:"diagnosis"`
}

func runPredict(ctx context.Context, opts *options, paths []string, out io.Writer) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	log, closer := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile}, os.Stderr)
	defer closer.Close()

	loader := newLoader(cfg, log)
	if _, err := loader.Get(); err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer loader.Close()
	detector := service.NewDetector(loader, log)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	failed := 0
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			log.Error().Err(err).Str("file", p).Msg("read failed")
			failed++
			continue
		}
		diag, err := detector.Diagnose(ctx, data)
		if err != nil {
			log.Error().Err(err).Str("file", p).Msg("analysis failed, try another image")
			failed++
			continue
		}
		if err := enc.Encode(predictResult{File: p, Diagnosis: diag}); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images could not be analysed", failed, len(paths))
	}
	return nil
}

func runLabels(opts *options, out io.Writer) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	meta := model.DefaultMetadata()
	if cfg.MetadataPath != "" {
		m, err := model.LoadMetadata(cfg.MetadataPath)
		switch {
		case err == nil:
			meta = m
		case !errors.Is(err, os.ErrNotExist):
			return err
		}
	}
	table, err := meta.Table()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tPLANT\tCONDITION\tHEALTHY")
	for i, l := range table.Labels() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", i, l.Plant(), l.Condition(), l.IsHealthy())
	}
	return tw.Flush()
}

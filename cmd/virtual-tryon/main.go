package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	tryon "github.com/menta2k/virtual-tryon"
	"github.com/menta2k/virtual-tryon/internal/config"
	"github.com/menta2k/virtual-tryon/internal/logger"
	"github.com/menta2k/virtual-tryon/internal/metrics"
	"github.com/menta2k/virtual-tryon/internal/utils"
	"github.com/menta2k/virtual-tryon/pkg/imageio"
	"github.com/menta2k/virtual-tryon/pkg/status"
)

func main() {
	var cfgPath, in, garment, outDir, ext string
	var backend, url, model, poses string
	var quality int
	var lossless, debug bool
	var metricsAddr, logLevel string

	flag.StringVar(&cfgPath, "config", "", "config file (yaml or json); TRYON_* env vars override it")
	flag.StringVar(&in, "in", "", "photo of a person (jpg/png/webp)")
	flag.StringVar(&garment, "garment", "", "garment image path or URL (default from config)")
	flag.StringVar(&outDir, "out", "", "output directory (default from config)")
	flag.StringVar(&ext, "ext", "", "output format: jpg|png|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&lossless, "lossless", false, "WebP output lossless mode")

	flag.StringVar(&backend, "backend", "", "pose backend: ollama|llamacpp|static")
	flag.StringVar(&url, "url", "", "pose backend server URL")
	flag.StringVar(&model, "model", "", "vision model name")
	flag.StringVar(&poses, "poses", "", "pose document for the static backend")

	flag.BoolVar(&debug, "debug", false, "also write a keypoint and fit rectangle overlay")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address and wait for a signal after the run")
	flag.StringVar(&logLevel, "log-level", "", "debug|info|warn|error")

	flag.Parse()
	if in == "" {
		log.Fatalf("usage: %s -in photo.jpg [-garment dress.png] [-backend ollama|llamacpp|static] [-url server_url] [-poses poses.json] [-out outdir] [-ext jpg|png|webp] [-debug]", filepath.Base(os.Args[0]))
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	// Explicit flags win over the config file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "garment":
			cfg.Garment.Source = garment
		case "out":
			cfg.Output.OutputDir = outDir
		case "ext":
			cfg.Output.Format = strings.ToLower(ext)
		case "quality":
			cfg.Output.Quality = quality
		case "lossless":
			cfg.Output.Lossless = lossless
		case "backend":
			cfg.Pose.Backend = backend
		case "url":
			cfg.Pose.URL = url
		case "model":
			cfg.Pose.Model = model
		case "poses":
			cfg.Pose.StaticFile = poses
		case "log-level":
			cfg.Logging.Level = logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	lg := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = lg.Sync() }()

	if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
		lg.Fatal("failed to create output directory", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var srv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Error("metrics server failed", zap.Error(err))
			}
		}()
		lg.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	estimator, err := tryon.NewEstimator(cfg)
	if err != nil {
		lg.Fatal("failed to create pose backend", zap.Error(err))
	}

	opts := tryon.SessionOptions(cfg)
	opts.Logger = lg
	opts.Reporter = status.NewLogReporter(lg.Named("status"))
	opts.Metrics = m

	runCtx := ctx
	if timeout := cfg.PoseTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	lg.Info("starting try-on",
		zap.String("photo", in),
		zap.String("garment", cfg.Garment.Source),
		zap.String("backend", cfg.Pose.Backend),
		zap.String("version", tryon.Version))

	result, err := tryon.Run(runCtx, tryon.Request{
		PhotoPath: in,
		Garment:   cfg.Garment.Source,
		Estimator: estimator,
		Options:   opts,
		Debug:     debug,
	})
	if err != nil {
		lg.Fatal("try-on failed", zap.Error(err))
	}

	outPath := utils.GenerateOutputFilename(in, cfg.Output.OutputDir, "", cfg.Output.Suffix, cfg.Output.Format)
	if err := imageio.Save(result.Image, outPath, cfg.Output.Format, cfg.Output.Quality, cfg.Output.Lossless); err != nil {
		lg.Fatal("save failed", zap.String("path", outPath), zap.Error(err))
	}
	logWritten(lg, outPath)

	if debug && result.Debug != nil {
		dbgPath := utils.GenerateOutputFilename(in, cfg.Output.OutputDir, "", cfg.Output.Suffix+"_debug", "png")
		if err := imageio.Save(result.Debug, dbgPath, "png", 100, false); err != nil {
			lg.Error("debug overlay save failed", zap.Error(err))
		} else {
			logWritten(lg, dbgPath)
		}
	}

	rect := result.Outcome.Rect
	fmt.Printf("session %s: garment at %.1f,%.1f size %.1fx%.1f on a %dx%d display (scale %.3f) in %s\n",
		result.SessionID, rect.X, rect.Y, rect.Width, rect.Height,
		result.Photo.DisplayWidth, result.Photo.DisplayHeight, result.Outcome.Scale.ScaleX, result.Outcome.Duration)

	if srv != nil {
		lg.Info("run complete, serving metrics until interrupted")
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func logWritten(lg *zap.Logger, path string) {
	fields := []zap.Field{zap.String("path", path)}
	if info, err := os.Stat(path); err == nil {
		fields = append(fields, zap.String("size", utils.FormatFileSize(info.Size())))
	}
	lg.Info("wrote", fields...)
}

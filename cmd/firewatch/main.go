// Command firewatch verifies harvested fire-incident posts.
//
// Usage:
//
//	firewatch run [-input FILE]
//	firewatch serve
//	firewatch export [-json PATH] [-xlsx PATH]
//	firewatch queries
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/couchcryptid/fire-incident-pipeline/internal/adapter/anthropic"
	httpadapter "github.com/couchcryptid/fire-incident-pipeline/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/fire-incident-pipeline/internal/adapter/kafka"
	"github.com/couchcryptid/fire-incident-pipeline/internal/adapter/smtp"
	"github.com/couchcryptid/fire-incident-pipeline/internal/classify"
	"github.com/couchcryptid/fire-incident-pipeline/internal/config"
	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
	"github.com/couchcryptid/fire-incident-pipeline/internal/harvest"
	"github.com/couchcryptid/fire-incident-pipeline/internal/notify"
	"github.com/couchcryptid/fire-incident-pipeline/internal/observability"
	"github.com/couchcryptid/fire-incident-pipeline/internal/pipeline"
	"github.com/couchcryptid/fire-incident-pipeline/internal/report"
	"github.com/couchcryptid/fire-incident-pipeline/internal/scheduler"
	"github.com/couchcryptid/fire-incident-pipeline/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "run":
		err = runOnce(args)
	case "serve":
		err = serve()
	case "export":
		err = export(args)
	case "queries":
		err = queries(os.Stdout)
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("firewatch failed", "error", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: firewatch <run [-input FILE] | serve | export [-json PATH] [-xlsx PATH] | queries>")
}

// app holds everything a run needs, plus the resources to release afterwards.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	source   pipeline.Source
	closers  []io.Closer
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newApp(cfg *config.Config, logger *slog.Logger, inputFile string) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	metrics := observability.NewMetrics()

	var raw store.RawStore
	switch cfg.RawStoreBackend {
	case config.BackendSQLite:
		db, err := store.NewSQLiteRaw(cfg.RawStorePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		raw = db
	default:
		raw = store.NewJSONFile[domain.RawRecord](cfg.RawStorePath, logger)
	}
	verified := store.NewJSONFile[domain.VerifiedRecord](cfg.VerifiedJSONPath, logger)

	completer := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.ClassifierModel, cfg.ClassifierTimeout, "")
	classifier := classify.New(completer, classify.Options{
		Retry: classify.RetryPolicy{
			MaxAttempts:     cfg.ClassifierMaxAttempts,
			InitialInterval: cfg.ClassifierInitBackoff,
			MaxInterval:     cfg.ClassifierMaxBackoff,
		},
		RatePerSecond:    cfg.ClassifierRatePerSec,
		Burst:            cfg.ClassifierBurst,
		IncidentMaxChars: cfg.IncidentMaxChars,
		ScoreMaxChars:    cfg.ScoreMaxChars,
	}, logger, metrics)

	var notifiers notify.Multi
	if cfg.NotifyEmailEnabled {
		notifiers = append(notifiers, smtp.NewMailer(smtp.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.EmailFrom,
			To:       cfg.EmailTo,
		}, logger))
	}
	if cfg.NotifyKafkaEnabled {
		w := kafkaadapter.NewWriter(cfg, logger)
		a.closers = append(a.closers, w)
		notifiers = append(notifiers, w)
	}
	var notifier notify.Notifier = notify.Nop{}
	if len(notifiers) > 0 {
		notifier = notifiers
	} else {
		logger.Warn("no notifier enabled, verified incidents will only be persisted")
	}

	switch cfg.InputSource {
	case config.SourceKafka:
		r := kafkaadapter.NewReader(cfg, logger)
		a.closers = append(a.closers, r)
		a.source = r
	default:
		if inputFile == "" {
			inputFile = cfg.InputFile
		}
		a.source = harvest.NewFileSource(inputFile, logger)
	}

	a.pipeline = pipeline.New(pipeline.Deps{
		Raw:          raw,
		Verified:     verified,
		VerifiedPath: cfg.VerifiedJSONPath,
		Report:       report.New(cfg.ReportPath),
		Classifier:   classifier,
		Notifier:     notifier,
		Lock:         store.NewRunLock(cfg.LockPath),
		Freshness:    cfg.Freshness(),
		Relevance:    domain.NewRelevanceFilter(cfg.Targets, cfg.RelevanceMode, cfg.MinContentLength),
	}, logger, metrics)

	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
}

func runOnce(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	input := fs.String("input", "", "harvester JSON file (overrides INPUT_FILE)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, logger, *input)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.pipeline.Job(a.source)(ctx)
}

func serve() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, logger, "")
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := scheduler.New(cfg.ScheduleTimezone, logger)
	if err != nil {
		return err
	}
	sched.SetJobTimeout(cfg.JobTimeout)
	job := a.pipeline.Job(a.source)
	if err := sched.AddJob("pipeline", cfg.Schedule, job); err != nil {
		return err
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, a.pipeline, sched, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// First run at startup so readiness does not wait for the first tick.
	go func() {
		if err := sched.RunNow("pipeline", job); err != nil {
			logger.Error("initial run failed", "error", err)
		}
	}()
	sched.Start()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout reached with a run in flight")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func export(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	jsonPath := fs.String("json", "", "output JSON path (default DATA_DIR/final_verified_fires.json)")
	xlsxPath := fs.String("xlsx", "", "output workbook path (default DATA_DIR/final_verified_fires.xlsx)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if *jsonPath == "" {
		*jsonPath = filepath.Join(cfg.DataDir, "final_verified_fires.json")
	}
	if *xlsxPath == "" {
		*xlsxPath = filepath.Join(cfg.DataDir, "final_verified_fires.xlsx")
	}

	verified := store.NewJSONFile[domain.VerifiedRecord](cfg.VerifiedJSONPath, logger)
	n, err := report.ExportRecent(context.Background(), verified, cfg.Freshness(), domain.Now(), *jsonPath, *xlsxPath)
	if err != nil {
		return err
	}
	logger.Info("export complete", "records", n, "json", *jsonPath, "xlsx", *xlsxPath)
	return nil
}

// queries only needs the targets, so it skips full config validation.
func queries(w io.Writer) error {
	targets, err := config.LoadTargets(os.Getenv("TARGETS_FILE"))
	if err != nil {
		return err
	}
	for _, q := range targets.SearchQueries() {
		fmt.Fprintln(w, q)
	}
	return nil
}

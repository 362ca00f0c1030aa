package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/efaktur-validator/internal/config"
	"github.com/kirillkom/efaktur-validator/internal/core/domain"
	"github.com/kirillkom/efaktur-validator/internal/core/ports"
	"github.com/kirillkom/efaktur-validator/internal/core/usecase"
	"github.com/kirillkom/efaktur-validator/internal/infrastructure/events/nats"
	"github.com/kirillkom/efaktur-validator/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/efaktur-validator/internal/infrastructure/ocr"
	"github.com/kirillkom/efaktur-validator/internal/infrastructure/qr"
	"github.com/kirillkom/efaktur-validator/internal/infrastructure/reference/djpxml"
	"github.com/kirillkom/efaktur-validator/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/efaktur-validator/internal/infrastructure/resilience"
	"github.com/kirillkom/efaktur-validator/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/efaktur-validator/internal/observability/metrics"
)

const (
	ReferenceStatic = "static"
	ReferenceDJP    = "djp"
)

type App struct {
	Config config.Config

	Metrics   *metrics.HTTPServerMetrics
	Validator *usecase.ValidateInvoiceUseCase

	closers []func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Config:  cfg,
		Metrics: metrics.NewHTTPServerMetrics("efaktur-api"),
	}

	executor := resilience.NewExecutor(
		ResilienceConfig(cfg),
		resilience.WithLogger(logger),
		resilience.WithStateObserver(app.Metrics.ObserveBreakerState),
	)

	scratch, err := localfs.New(cfg.ScratchPath)
	if err != nil {
		return nil, fmt.Errorf("init scratch storage: %w", err)
	}
	engine := ocr.NewEngine(ocr.Config{
		Tesseract:     cfg.TesseractBin,
		TesseractLang: cfg.TesseractLang,
		TessdataDir:   cfg.TessdataDir,
		Pdftoppm:      cfg.PdftoppmBin,
		DPI:           cfg.OCRDPI,
		MaxPages:      cfg.OCRMaxPages,
	}, scratch, logger)
	qrDecoder := qr.NewDecoder(logger)

	readers := map[domain.FileKind]usecase.DocumentReader{
		domain.FileKindPDF: {
			Text: pdftext.NewExtractor(ocr.NewPDFExtractor(engine), logger),
			QR:   qr.NewPDFDecoder(engine, qrDecoder),
		},
		domain.FileKindImage: {
			Text: ocr.NewImageExtractor(engine),
			QR:   qrDecoder,
		},
	}

	reference, err := app.referenceSource(ctx, cfg, executor, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	var events ports.ValidationEventPublisher
	if cfg.NATSURL != "" {
		publisher, err := nats.NewPublisher(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		app.closers = append(app.closers, publisher.Close)
		events = publisher
	}

	app.Validator = usecase.NewValidateInvoiceUseCase(readers, reference, events, logger)
	return app, nil
}

func (a *App) referenceSource(
	ctx context.Context,
	cfg config.Config,
	executor *resilience.Executor,
	logger *slog.Logger,
) (ports.ReferenceSource, error) {
	parser := djpxml.NewParser(djpxml.DefaultFieldMapping)

	switch cfg.ReferenceSource {
	case "", ReferenceStatic:
		return djpxml.NewSource(djpxml.NewStaticFetcher(nil), parser), nil
	case ReferenceDJP:
	default:
		return nil, fmt.Errorf("unknown reference source %q", cfg.ReferenceSource)
	}

	var fetcher djpxml.XMLFetcher = djpxml.NewHTTPFetcher(djpxml.HTTPOptions{
		Timeout:            cfg.DJPTimeout,
		AllowedHosts:       cfg.DJPAllowedHosts,
		ResilienceExecutor: executor,
	})
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })

		cache, err := openResponseCache(ctx, db, cfg, logger)
		if err != nil {
			return nil, err
		}
		fetcher = djpxml.NewCachedFetcher(fetcher, cache, logger)
	}
	return djpxml.NewSource(fetcher, parser), nil
}

func openResponseCache(ctx context.Context, db *sql.DB, cfg config.Config, logger *slog.Logger) (*postgres.DJPResponseCache, error) {
	cache := postgres.NewDJPResponseCache(db, cfg.ReferenceCacheTTL)
	if err := cache.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if purged, err := cache.Purge(ctx); err != nil {
		logger.Warn("djp_cache_purge_failed", "error", err.Error())
	} else if purged > 0 {
		logger.Info("djp_cache_purged", "rows", purged)
	}
	return cache, nil
}

// ResilienceConfig maps the RESILIENCE_* settings onto executor policies.
func ResilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    cfg.ResilienceRetryMaxAttempts,
			InitialBackoff: cfg.ResilienceRetryInitialBackoff,
			MaxBackoff:     cfg.ResilienceRetryMaxBackoff,
			Multiplier:     cfg.ResilienceRetryMultiplier,
		},
		Breaker: resilience.BreakerPolicy{
			Enabled:          cfg.ResilienceBreakerEnabled,
			MinRequests:      uint32(max(cfg.ResilienceBreakerMinRequests, 0)),
			FailureRatio:     cfg.ResilienceBreakerFailureRatio,
			OpenTimeout:      cfg.ResilienceBreakerOpenTimeout,
			HalfOpenMaxCalls: uint32(max(cfg.ResilienceBreakerHalfOpenMax, 0)),
		},
	}
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

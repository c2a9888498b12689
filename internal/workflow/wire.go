package workflow

import (
	"context"
	"log/slog"
	"time"

	"splitsheet/internal/artifact"
	"splitsheet/internal/config"
	"splitsheet/internal/enrich"
	"splitsheet/internal/ledger"
	"splitsheet/internal/logging"
	"splitsheet/internal/notifications"
	"splitsheet/internal/profiles"
	"splitsheet/internal/reference"
	"splitsheet/internal/store"
	"splitsheet/internal/store/pgcounters"
	"splitsheet/internal/workcode"
)

// NewFromConfig builds a Service from configuration over an open store. When
// storage.counters_dsn is set, identifier history and reference counters live
// in PostgreSQL instead. The returned func releases those resources.
func NewFromConfig(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*Service, func(), error) {
	cleanup := func() {}

	var (
		history workcode.History   = st
		counter reference.Counter = st
	)
	if cfg.Storage.CountersDSN != "" {
		pg, err := pgcounters.Connect(ctx, cfg.Storage.CountersDSN)
		if err != nil {
			return nil, cleanup, err
		}
		history, counter = pg, pg
		cleanup = pg.Close
		logger.Info("using shared counters", logging.String("backend", "postgres"))
	}

	allocator, err := workcode.NewAllocator(history, workcode.Options{
		Country:     cfg.WorkCode.Country,
		Registrant:  cfg.WorkCode.Registrant,
		Directory:   workcode.NewDirectory(cfg.WorkCode.Contributors),
		FallbackID:  cfg.WorkCode.FallbackContributorID,
		MaxAttempts: cfg.WorkCode.MaxAttempts,
		Logger:      logger,
	})
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	var profileStore enrich.ProfileStore
	if cfg.Profiles.Path != "" {
		file, err := profiles.Open(cfg.Profiles.Path)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		profileStore = file
	}

	channel, err := notifications.NewChannel(cfg, logger)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	policy, err := ledger.ParsePolicy(cfg.Ledger.Policy)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	var links *artifact.Signer
	if cfg.Downloads.SigningKey != "" {
		links, err = artifact.NewSigner(cfg.Downloads.SigningKey, time.Duration(cfg.Downloads.LinkTTLMinutes)*time.Minute, nil)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
	} else {
		logging.WarnWithContext(logger, "download links disabled", "downloads_disabled",
			logging.String(logging.FieldErrorHint, "set downloads.signing_key or SPLITSHEET_SIGNING_KEY"),
			logging.String(logging.FieldImpact, "completed splitsheets cannot be downloaded"),
		)
	}

	svc, err := New(Dependencies{
		Store:      st,
		Allocator:  allocator,
		References: reference.NewGenerator(counter, reference.Options{
			DefaultSuffix: cfg.WorkCode.Country + cfg.WorkCode.Registrant,
			MaxAttempts:   cfg.WorkCode.MaxAttempts,
			Logger:        logger,
		}),
		Enricher: enrich.New(profileStore,
			enrich.WithConcurrency(cfg.Notifications.Concurrency),
			enrich.WithLogger(logger),
		),
		Dispatcher: notifications.NewDispatcher(channel, st, notifications.DispatcherOptions{
			BaseURL:     cfg.Notifications.SigningBaseURL,
			Concurrency: cfg.Notifications.Concurrency,
			Logger:      logger,
		}),
		Documents: artifact.NewPDFRenderer(cfg.Paths.ArtifactDir, nil),
		Links:     links,
		Policy:    policy,
		Pricing: Pricing{
			BasePrice:          cfg.Payments.BasePrice,
			DiscountPercentage: cfg.Payments.DiscountPercentage,
			Currency:           cfg.Payments.Currency,
		},
		Logger: logger,
	})
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return svc, cleanup, nil
}

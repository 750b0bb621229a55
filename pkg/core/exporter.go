package core

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/saturnines/commerce-export/pkg/category"
	"github.com/saturnines/commerce-export/pkg/client"
	"github.com/saturnines/commerce-export/pkg/config"
	"github.com/saturnines/commerce-export/pkg/errors"
	"github.com/saturnines/commerce-export/pkg/export"
	"github.com/saturnines/commerce-export/pkg/logger"
	"github.com/saturnines/commerce-export/pkg/metrics"
	"github.com/saturnines/commerce-export/pkg/normalize"
	"github.com/saturnines/commerce-export/pkg/notify"
	"github.com/saturnines/commerce-export/pkg/pagination"
	"github.com/saturnines/commerce-export/pkg/reconcile"
	"github.com/saturnines/commerce-export/pkg/storage"
)

// Tasks selects the artifacts of a run
type Tasks struct {
	Purchases bool
	Feed      bool
	Customers bool
}

// TasksFromConfig enables what cfg enables.
func TasksFromConfig(cfg *config.Export) Tasks {
	return Tasks{
		Purchases: cfg.PurchasesEnabled(),
		Feed:      cfg.FeedEnabled(),
		Customers: cfg.Customers.File != "",
	}
}

// Result summarizes one run
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Artifacts  []string // local paths
	Uploaded   []string // object keys
	Purchases  int
	JoinStats  reconcile.Stats
	FeedItems  int
	Customers  int
}

// Exporter runs exports of one project. A run reads every collection it
// needs from scratch; nothing but the optional shared category cache
// survives between runs.
type Exporter struct {
	cfg        *config.Export
	api        API
	pagers     *pagination.Factory
	normalizer *normalize.Normalizer
	cache      category.Cache
	uploader   *storage.Uploader
	metrics    *metrics.Recorder
	notifier   notify.Notifier
	log        zerolog.Logger
	now        func() time.Time
}

// Option configures an Exporter
type Option func(*Exporter)

func WithLogger(log zerolog.Logger) Option {
	return func(e *Exporter) { e.log = log }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Exporter) { e.metrics = m }
}

func WithNotifier(n notify.Notifier) Option {
	return func(e *Exporter) { e.notifier = n }
}

func WithUploader(u *storage.Uploader) Option {
	return func(e *Exporter) { e.uploader = u }
}

// WithCache shares a category cache between runs
func WithCache(c category.Cache) Option {
	return func(e *Exporter) { e.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// NewExporter returns an exporter reading through api. cfg must have been
// loaded by config.ExportLoader so that defaults are in place.
func NewExporter(cfg *config.Export, api API, opts ...Option) *Exporter {
	e := &Exporter{
		cfg:      cfg,
		api:      api,
		pagers:   pagination.DefaultFactory,
		notifier: notify.Nop{},
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New(cfg.Name)
	}
	e.normalizer = normalize.New(cfg.Extract.Locales, cfg.Extract.Currencies, e.log)
	return e
}

// FromConfig wires the client, cache, uploader, metrics and notifier that
// cfg asks for. Configuration problems surface here, before any request.
func FromConfig(ctx context.Context, cfg *config.Export, log zerolog.Logger) (*Exporter, error) {
	rec := metrics.New(cfg.Name)

	api, err := client.FromConfig(cfg, log, rec.InstrumentRoundTripper(nil))
	if err != nil {
		return nil, err
	}

	opts := []Option{WithLogger(log), WithMetrics(rec), WithNotifier(notify.New(cfg.Notify))}

	if cfg.Output.S3 != nil {
		uploader, err := storage.NewS3Uploader(ctx, cfg.Output.S3, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithUploader(uploader))
	}

	if cfg.Cache.Type == config.CacheRedis {
		cache, err := category.NewCache(ctx, cfg.Cache)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithCache(cache))
	}

	return NewExporter(cfg, api, opts...), nil
}

// Close releases the shared cache and the notifier
func (e *Exporter) Close() error {
	var firstErr error
	if e.cache != nil {
		firstErr = e.cache.Close()
	}
	if err := e.notifier.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Run performs one export. Any failure aborts the run; artifacts already
// written by an earlier task stay on disk but nothing is uploaded.
func (e *Exporter) Run(ctx context.Context, tasks Tasks) (*Result, error) {
	log, runID := logger.ForRun(e.log, e.cfg.Name)
	res := &Result{RunID: runID, StartedAt: e.now()}
	log.Info().
		Bool("purchases", tasks.Purchases).
		Bool("feed", tasks.Feed).
		Bool("customers", tasks.Customers).
		Msg("export started")

	err := e.run(ctx, log, tasks, res)
	res.FinishedAt = e.now()

	e.metrics.ObserveRun(res.StartedAt, res.FinishedAt, err)
	if e.cfg.Metrics.Textfile != "" {
		if werr := e.metrics.WriteTextfile(e.cfg.Metrics.Textfile); werr != nil {
			log.Warn().Err(werr).Msg("failed to write metrics textfile")
		}
	}
	e.publish(ctx, log, res, err)

	if err != nil {
		log.Error().Err(err).Dur("took", res.FinishedAt.Sub(res.StartedAt)).Msg("export failed")
		return res, err
	}
	log.Info().
		Strs("artifacts", res.Artifacts).
		Int("purchases", res.Purchases).
		Int("feed_items", res.FeedItems).
		Dur("took", res.FinishedAt.Sub(res.StartedAt)).
		Msg("export finished")
	return res, nil
}

func (e *Exporter) run(ctx context.Context, log zerolog.Logger, tasks Tasks, res *Result) error {
	if err := e.check(tasks); err != nil {
		return err
	}
	dir, err := storage.NewDir(e.cfg.Output.Dir)
	if err != nil {
		return err
	}

	var products *normalize.Table[normalize.Product]
	if tasks.Purchases || tasks.Feed {
		if products, err = e.Products(ctx); err != nil {
			return err
		}
	}

	if tasks.Purchases {
		if err := e.writePurchases(ctx, log, dir, products, res); err != nil {
			return err
		}
	}
	if tasks.Feed {
		if err := e.writeFeed(ctx, log, dir, products, res); err != nil {
			return err
		}
	}
	if tasks.Customers {
		if err := e.writeCustomers(ctx, dir, res); err != nil {
			return err
		}
	}

	if e.uploader != nil && len(res.Artifacts) > 0 {
		keys, err := e.uploader.Upload(ctx, res.Artifacts...)
		res.Uploaded = keys
		if err != nil {
			return err
		}
	}
	return nil
}

// check rejects settings the selected tasks cannot run with, before any
// request goes out.
func (e *Exporter) check(tasks Tasks) error {
	if tasks.Feed {
		if _, err := category.ParseMode(e.cfg.Feed.CategoryMode); err != nil {
			return err
		}
		if !slices.Contains(e.cfg.Extract.Currencies, e.cfg.Feed.Currency) {
			return errors.Config("feed currency %q is not one of extract.currencies", e.cfg.Feed.Currency)
		}
		if !slices.Contains(e.cfg.Extract.Locales, e.cfg.Feed.Locale) {
			return errors.Config("feed locale %q is not one of extract.locales", e.cfg.Feed.Locale)
		}
	}
	if tasks.Customers && e.cfg.Customers.File == "" {
		return errors.Config("customers.file is not set")
	}
	return nil
}

func (e *Exporter) writePurchases(ctx context.Context, log zerolog.Logger, dir *storage.Dir, products *normalize.Table[normalize.Product], res *Result) error {
	lines, err := e.OrderLines(ctx)
	if err != nil {
		return err
	}

	purchases, stats := reconcile.Join(lines.Rows(), products.Index(), reconcile.Options{
		ReportingCurrency: e.cfg.Purchases.ReportingCurrency,
		Log:               log,
	})
	e.metrics.SetPurchaseLines(stats.Emitted, stats.AnonymousDropped, stats.JoinMisses)
	log.Info().
		Int("lines", stats.Lines).
		Int("emitted", stats.Emitted).
		Int("anonymous_dropped", stats.AnonymousDropped).
		Int("join_misses", stats.JoinMisses).
		Int("price_blanked", stats.CurrencyBlanked).
		Msg("purchases reconciled")

	path, err := dir.Write(e.cfg.Purchases.File, func(w io.Writer) error {
		return export.WritePurchasesCSV(w, purchases)
	})
	if err != nil {
		return err
	}
	res.Artifacts = append(res.Artifacts, path)
	res.Purchases = len(purchases)
	res.JoinStats = stats
	return nil
}

func (e *Exporter) writeFeed(ctx context.Context, log zerolog.Logger, dir *storage.Dir, products *normalize.Table[normalize.Product], res *Result) error {
	mode, err := category.ParseMode(e.cfg.Feed.CategoryMode)
	if err != nil {
		return err
	}
	resolver, err := e.resolver(ctx, log)
	if err != nil {
		return err
	}

	fw := export.NewFeedWriter(e.cfg.Feed.Title, e.cfg.Feed.Website, e.cfg.Feed.Currency, e.cfg.Feed.Locale, resolver, log)
	fw.Mode = mode
	fw.ProgressEvery = e.cfg.Feed.ProgressEvery

	rows := products.Rows()
	path, err := dir.Write(e.cfg.Feed.File, func(w io.Writer) error {
		return fw.Write(ctx, w, rows)
	})
	if err != nil {
		return err
	}

	if e.cfg.Feed.RenameTable != "" {
		table, err := export.LoadRenameTable(e.cfg.Feed.RenameTable)
		if err != nil {
			return err
		}
		if err := table.RewriteFile(path); err != nil {
			return err
		}
		log.Debug().Int("renames", table.Len()).Msg("feed tags renamed")
	}

	e.metrics.SetFeedItems(len(rows))
	res.Artifacts = append(res.Artifacts, path)
	res.FeedItems = len(rows)
	return nil
}

func (e *Exporter) writeCustomers(ctx context.Context, dir *storage.Dir, res *Result) error {
	customers, err := e.Customers(ctx)
	if err != nil {
		return err
	}
	rows := customers.Rows()
	path, err := dir.Write(e.cfg.Customers.File, func(w io.Writer) error {
		return export.WriteTableCSV(w, normalize.CustomerSchema, rows, e.cfg.Extract.Locales, e.cfg.Extract.Currencies)
	})
	if err != nil {
		return err
	}
	res.Artifacts = append(res.Artifacts, path)
	res.Customers = len(rows)
	return nil
}

// resolver builds the category resolver of one run. Preloading walks the
// category collection once; otherwise categories are fetched by id on
// first use.
func (e *Exporter) resolver(ctx context.Context, log zerolog.Logger) (*category.Resolver, error) {
	var fetcher category.Fetcher
	if e.cfg.Cache.PreloadCategories {
		cats, err := e.Categories(ctx)
		if err != nil {
			return nil, err
		}
		fetcher = category.NewTableFetcher(cats.Index())
	} else {
		fetcher = category.NewAPIFetcher(e.api, e.normalizer)
	}

	cache := e.cache
	if cache == nil {
		cache = category.NewMemoryCache()
	}
	return category.NewResolver(fetcher, cache, e.cfg.Feed.Locale, log), nil
}

func (e *Exporter) publish(ctx context.Context, log zerolog.Logger, res *Result, runErr error) {
	ev := notify.Event{
		RunID:      res.RunID,
		Export:     e.cfg.Name,
		ProjectKey: e.cfg.ProjectKey,
		Status:     notify.StatusSucceeded,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Artifacts:  res.Artifacts,
		Purchases:  res.Purchases,
		FeedItems:  res.FeedItems,
	}
	if ev.Artifacts == nil {
		ev.Artifacts = []string{}
	}
	if runErr != nil {
		ev.Status = notify.StatusFailed
		ev.Error = runErr.Error()
	}

	// A cancelled run still reports its failure.
	ctx = context.WithoutCancel(ctx)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.notifier.Notify(ctx, ev); err != nil {
		log.Warn().Err(err).Msg("failed to publish run event")
	}
}

// Metrics returns the recorder the exporter reports to
func (e *Exporter) Metrics() *metrics.Recorder {
	return e.metrics
}

// Package pipeline assembles an atlas: every configured dataset is loaded
// concurrently, choropleth rows are resolved and joined with their geometry,
// and the resulting layers are collected in config order.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/plat-risk/internal/config"
	"github.com/joeblew999/plat-risk/internal/geometry"
	"github.com/joeblew999/plat-risk/internal/layer"
	"github.com/joeblew999/plat-risk/internal/observability"
	"github.com/joeblew999/plat-risk/internal/source"
)

// DatasetFailure records a dataset that produced no layers.
type DatasetFailure struct {
	Dataset string `json:"dataset" doc:"Dataset name"`
	URL     string `json:"url" doc:"Source URL"`
	Err     error  `json:"-"`
	Message string `json:"error" doc:"Failure reason"`
}

// Dataset is the outcome of loading one configured dataset.
type Dataset struct {
	Name    string `json:"name" doc:"Dataset name"`
	Title   string `json:"title" doc:"Display name"`
	Kind    string `json:"kind" enum:"choropleth,points" doc:"Dataset kind"`
	URL     string `json:"url" doc:"Source URL"`
	Records int    `json:"records" doc:"Rows read from the source"`
	// Features is the joined collection for choropleth datasets and the marker
	// collection for point datasets. It is shared by the dataset's layers.
	Features *geojson.FeatureCollection `json:"-"`
	Report   *geometry.Report           `json:"report,omitempty" doc:"Geometry resolution summary"`
	Skipped  []string                   `json:"skipped,omitempty" doc:"Point rows without usable coordinates"`
	Layers   []string                   `json:"layers" doc:"Layer keys built from this dataset"`
	Error    string                     `json:"error,omitempty" doc:"Load failure"`
}

// Atlas is one immutable snapshot of every layer the map can show.
type Atlas struct {
	ID       uuid.UUID
	LoadedAt time.Time
	Duration time.Duration
	Config   *config.Config
	Datasets []*Dataset
	Bases    []*layer.Layer
	Overlays []*layer.Layer
	// Visible lists the overlays switched on after load.
	Visible  []string
	Failures []DatasetFailure
}

// Dataset returns the named dataset.
func (a *Atlas) Dataset(name string) (*Dataset, bool) {
	for _, d := range a.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Options tune a build.
type Options struct {
	// Concurrency caps in-flight geometry fetches per dataset.
	Concurrency int
	Clock       clockwork.Clock
}

// Builder turns a config into an atlas.
type Builder struct {
	loader  source.Loader
	getter  geometry.Getter
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewBuilder creates a builder that reads spreadsheets with loader and
// geometry documents with getter.
func NewBuilder(loader source.Loader, getter geometry.Getter, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Builder {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Builder{loader: loader, getter: getter, opts: opts, logger: logger, metrics: metrics}
}

// built is what one dataset contributes before ordering.
type built struct {
	dataset  *Dataset
	bases    []*layer.Layer
	overlays []*layer.Layer
	visible  bool
	err      error
}

// Build loads every dataset without waiting on the others. A failing dataset
// is recorded in Failures and contributes no layers; the rest are unaffected.
// Layers appear in config order whatever order the loads finish in.
func (b *Builder) Build(ctx context.Context, cfg *config.Config) (*Atlas, error) {
	start := b.opts.Clock.Now()
	runID := uuid.New()
	logger := b.logger.With("run_id", runID.String())
	logger.Info("atlas build started", "datasets", len(cfg.Datasets), "points", len(cfg.Points))

	results := make([]built, len(cfg.Datasets)+len(cfg.Points))

	var g errgroup.Group
	for i, ds := range cfg.Datasets {
		g.Go(func() error {
			results[i] = b.choropleth(ctx, logger, ds)
			return nil
		})
	}
	for i, pd := range cfg.Points {
		g.Go(func() error {
			results[len(cfg.Datasets)+i] = b.points(ctx, logger, pd)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	atlas := &Atlas{ID: runID, Config: cfg}
	for _, r := range results {
		atlas.Datasets = append(atlas.Datasets, r.dataset)
		if r.err != nil {
			b.metrics.DatasetsFailed.Inc()
			atlas.Failures = append(atlas.Failures, DatasetFailure{
				Dataset: r.dataset.Name,
				URL:     r.dataset.URL,
				Err:     r.err,
				Message: r.err.Error(),
			})
			continue
		}
		b.metrics.DatasetsLoaded.Inc()
		atlas.Bases = append(atlas.Bases, r.bases...)
		atlas.Overlays = append(atlas.Overlays, r.overlays...)
		if r.visible {
			for _, l := range r.overlays {
				atlas.Visible = append(atlas.Visible, l.Key)
			}
		}
	}

	atlas.LoadedAt = b.opts.Clock.Now()
	atlas.Duration = atlas.LoadedAt.Sub(start)
	b.metrics.LoadDuration.Observe(atlas.Duration.Seconds())
	b.metrics.AtlasLayers.Set(float64(len(atlas.Bases) + len(atlas.Overlays)))

	logger.Info("atlas build finished",
		"bases", len(atlas.Bases),
		"overlays", len(atlas.Overlays),
		"failures", len(atlas.Failures),
		"duration", atlas.Duration,
	)
	return atlas, nil
}

func (b *Builder) choropleth(ctx context.Context, logger *slog.Logger, ds config.Dataset) built {
	d := &Dataset{Name: ds.Name, Title: title(ds.Title, ds.Name), Kind: "choropleth", URL: ds.URL}
	logger = logger.With("dataset", ds.Name)

	records, err := b.loader.Load(ctx, ds.URL)
	if err != nil {
		logger.Error("dataset load failed", "url", ds.URL, "error", err)
		d.Error = err.Error()
		return built{dataset: d, err: err}
	}
	d.Records = len(records)

	resolver := geometry.NewResolver(b.getter, geometry.Options{
		Keys:          geometry.Keys(ds.Descriptors, ds.Keys...),
		Concurrency:   b.opts.Concurrency,
		Lenient:       ds.Lenient,
		MatchProperty: ds.MatchProperty,
		Simplify:      ds.Simplify,
	}, logger, b.metrics)
	fc, report := resolver.Resolve(ctx, records)
	d.Features = fc
	d.Report = &report

	var out built
	out.dataset = d
	for _, desc := range ds.Descriptors {
		l := layer.Make(fc, desc)
		l.Dataset = ds.Name
		d.Layers = append(d.Layers, l.Key)
		if ds.Role == config.RoleOverlay {
			l.Kind = layer.KindOverlay
			out.overlays = append(out.overlays, l)
		} else {
			out.bases = append(out.bases, l)
		}
	}
	logger.Info("dataset joined",
		"records", report.Admitted+report.Skipped,
		"admitted", report.Admitted,
		"features", report.Features,
		"failures", len(report.Failures),
	)
	return out
}

func (b *Builder) points(ctx context.Context, logger *slog.Logger, pd config.PointDataset) built {
	d := &Dataset{Name: pd.Name, Title: title(pd.Title, pd.Name), Kind: "points", URL: pd.URL}
	logger = logger.With("dataset", pd.Name)

	records, err := b.loader.Load(ctx, pd.URL)
	if err != nil {
		logger.Error("dataset load failed", "url", pd.URL, "error", err)
		d.Error = err.Error()
		return built{dataset: d, err: err}
	}
	d.Records = len(records)

	l, errs := layer.MakePoints(pd.Name, d.Title, records, pd.Rule)
	l.Dataset = pd.Name
	for _, err := range errs {
		d.Skipped = append(d.Skipped, err.Error())
	}
	if len(errs) > 0 {
		logger.Warn("point rows skipped", "skipped", len(errs))
	}
	d.Features = l.Features()
	d.Layers = []string{l.Key}
	b.metrics.PointMarkers.Add(float64(l.Len()))
	return built{dataset: d, overlays: []*layer.Layer{l}, visible: pd.Visible}
}

func title(t, fallback string) string {
	if t != "" {
		return t
	}
	return fallback
}

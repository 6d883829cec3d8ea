// Package geometry resolves per-record GeoJSON documents and joins their
// features with the record's attributes into one feature collection.
package geometry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/plat-risk/internal/layer"
	"github.com/joeblew999/plat-risk/internal/observability"
	"github.com/joeblew999/plat-risk/internal/source"
)

// IncludeSentinel is the "include" value that admits a record.
const IncludeSentinel = "y"

// Getter fetches a remote document.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Options configure one dataset's resolution.
type Options struct {
	// Keys are the record attributes copied onto every joined feature.
	Keys []string
	// Concurrency caps in-flight geometry fetches; 0 means 8.
	Concurrency int
	// Lenient accepts single Feature, Geometry and bare coordinate documents.
	Lenient bool
	// MatchProperty, when set, drops raw features whose own property of
	// that name is present and differs from the record id.
	MatchProperty string
	// Simplify is a Douglas-Peucker tolerance applied to every raw geometry.
	Simplify float64
}

// Resolved is the raw geometry fetched for one admitted record.
type Resolved struct {
	RecordID string
	Features []*geojson.Feature
	Dropped  int
}

// RecordFailure is an isolated per-record failure.
type RecordFailure struct {
	RecordID string `json:"recordId"`
	URL      string `json:"url"`
	Err      error  `json:"-"`
	Message  string `json:"error"`
}

// Report summarises one resolution.
type Report struct {
	Admitted int             `json:"admitted"`
	Skipped  int             `json:"skipped"`
	Fetched  int             `json:"fetched"`
	Features int             `json:"features"`
	Dropped  int             `json:"dropped"`
	Failures []RecordFailure `json:"failures,omitempty"`
}

// Resolver fetches geometry documents and joins them with records.
type Resolver struct {
	getter  Getter
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewResolver creates a resolver for one dataset.
func NewResolver(getter Getter, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Resolver{getter: getter, opts: opts, logger: logger, metrics: metrics}
}

// Resolve admits records with include == "y", fetches each admitted record's
// geometry concurrently and returns once every fetch has settled. Failures
// are isolated to their record and listed in the report. Feature order is
// record order, then document order.
func (r *Resolver) Resolve(ctx context.Context, records []source.Record) (*geojson.FeatureCollection, Report) {
	var report Report
	admitted := make([]source.Record, 0, len(records))
	for _, rec := range records {
		if rec["include"] == IncludeSentinel {
			admitted = append(admitted, rec)
		} else {
			report.Skipped++
		}
	}
	report.Admitted = len(admitted)
	r.metrics.SkippedRecords.Add(float64(report.Skipped))

	results := make([]Resolved, len(admitted))
	errs := make([]error, len(admitted))

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, rec := range admitted {
		g.Go(func() error {
			results[i], errs[i] = r.Fetch(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()

	fc := geojson.NewFeatureCollection()
	for i, res := range results {
		rec := admitted[i]
		if err := errs[i]; err != nil {
			outcome := "error"
			if errors.Is(err, ErrMissingFeatures) {
				outcome = "malformed"
			}
			r.metrics.GeometryFetches.WithLabelValues(outcome).Inc()
			r.logger.Error("geometry skipped",
				"record_id", rec.ID(),
				"url", rec["geometry"],
				"outcome", outcome,
				"error", err,
			)
			report.Failures = append(report.Failures, RecordFailure{
				RecordID: rec.ID(),
				URL:      rec["geometry"],
				Err:      err,
				Message:  err.Error(),
			})
			continue
		}
		r.metrics.GeometryFetches.WithLabelValues("ok").Inc()
		report.Fetched++
		report.Dropped += res.Dropped
		for _, raw := range res.Features {
			fc.Append(Join(rec, raw, r.opts.Keys))
		}
	}
	report.Features = len(fc.Features)
	r.metrics.JoinedFeatures.Add(float64(report.Features))
	return fc, report
}

// Fetch retrieves and decodes the geometry document of a single record.
func (r *Resolver) Fetch(ctx context.Context, rec source.Record) (Resolved, error) {
	url := rec["geometry"]
	if url == "" {
		return Resolved{}, errors.New("record has no geometry url")
	}
	body, err := r.getter.Get(ctx, url)
	if err != nil {
		return Resolved{}, err
	}
	features, err := Decode(body, r.opts.Lenient)
	if err != nil {
		return Resolved{}, fmt.Errorf("%s: %w", url, err)
	}

	res := Resolved{RecordID: rec.ID(), Features: features}
	if r.opts.MatchProperty != "" {
		res.Features, res.Dropped = matching(features, r.opts.MatchProperty, rec.ID())
	}
	if r.opts.Simplify > 0 {
		s := simplify.DouglasPeucker(r.opts.Simplify)
		for _, f := range res.Features {
			if f.Geometry != nil {
				f.Geometry = s.Simplify(f.Geometry)
			}
		}
	}
	return res, nil
}

// matching keeps features whose prop is absent or equal to id.
func matching(features []*geojson.Feature, prop, id string) ([]*geojson.Feature, int) {
	kept := make([]*geojson.Feature, 0, len(features))
	for _, f := range features {
		v, ok := f.Properties[prop]
		if ok && v != nil && fmt.Sprint(v) != id {
			continue
		}
		kept = append(kept, f)
	}
	return kept, len(features) - len(kept)
}

// Keys returns the attribute keys a set of descriptors needs from each record:
// every descriptor key, color key and popup field, in first-seen order.
func Keys(descriptors []layer.Descriptor, extra ...string) []string {
	seen := map[string]bool{"id": true}
	var keys []string
	add := func(k string) {
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, k := range extra {
		add(k)
	}
	for _, d := range descriptors {
		add(d.Key)
		add(d.ColorKey)
		for _, p := range d.Popup {
			add(p.Key)
		}
	}
	return keys
}

// Package engine ties normalization, relevance weighting and ranking together
// behind the interface used by presentation layers.
//
// An Engine is built once from the raw histograms of a corpus and is
// read-only afterwards, so any number of goroutines may rank against it.
// Per-user state (query, relevance marks, weights, current order) lives in a
// Session.
package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ken/image_retrieval/pkg/core/distance"
	"github.com/ken/image_retrieval/pkg/core/feature"
	"github.com/ken/image_retrieval/pkg/metrics"
	"github.com/ken/image_retrieval/pkg/normalize"
	"github.com/ken/image_retrieval/pkg/rank"
	"github.com/ken/image_retrieval/pkg/relevance"
)

// Engine ranks a fixed corpus of images against a query image
type Engine struct {
	intensity feature.Histogram
	colorCode feature.Histogram
	sizes     feature.ImageSizes
	features  feature.Matrix
	report    normalize.Report

	weighter *relevance.Weighter
	metrics  metrics.Collector
	logger   *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger of the engine and its sessions
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(c metrics.Collector) Option {
	return func(e *Engine) {
		if c != nil {
			e.metrics = c
		}
	}
}

// New initializes an engine: it copies the histograms and computes the
// standardized feature matrix once.
func New(intensity, colorCode feature.Histogram, sizes feature.ImageSizes, opts ...Option) (*Engine, error) {
	e := &Engine{
		metrics: metrics.NewNoopCollector(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	features, report, err := normalize.Normalize(intensity, colorCode, sizes)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize features: %w", err)
	}

	e.intensity = intensity.Clone()
	e.colorCode = colorCode.Clone()
	e.sizes = append(feature.ImageSizes(nil), sizes...)
	e.features = features
	e.report = report
	e.weighter = relevance.NewWeighter(e.logger)

	e.metrics.SetDegenerateDims(report.ZeroSD, report.Corrected)
	e.logger.Info("Initialized retrieval engine",
		zap.Int("images", sizes.Corpus()),
		zap.Int("dims", features.Dims()),
		zap.Int("zero_sd_dims", report.ZeroSD),
		zap.Int("corrected_dims", report.Corrected))
	return e, nil
}

// CorpusSize returns the number of images N
func (e *Engine) CorpusSize() int {
	return e.sizes.Corpus()
}

// Features returns a copy of the standardized feature matrix
func (e *Engine) Features() feature.Matrix {
	return e.features.Clone()
}

// Report returns the degenerate-dimension summary of the normalization
func (e *Engine) Report() normalize.Report {
	return e.report
}

func (e *Engine) histogram(kind feature.Kind) (feature.Histogram, error) {
	switch kind {
	case feature.Intensity:
		return e.intensity, nil
	case feature.ColorCode:
		return e.colorCode, nil
	default:
		return nil, fmt.Errorf("unknown histogram kind %s", kind)
	}
}

// measure resolves a measure kind to its distance function. Weights are only
// read by the combined measure.
func (e *Engine) measure(kind distance.MeasureKind, w feature.Weights) (distance.Measure, error) {
	if hk, ok := kind.HistogramKind(); ok {
		h, err := e.histogram(hk)
		if err != nil {
			return nil, err
		}
		return distance.RawManhattan(hk, h, e.sizes)
	}
	if kind == distance.WeightedCombined {
		return distance.Weighted(e.features, w)
	}
	return nil, fmt.Errorf("%w: %q", distance.ErrUnknownMeasure, kind)
}

// Scored ranks the corpus with the given measure and returns each image
// with its distance. w is ignored by the raw histogram measures.
func (e *Engine) Scored(kind distance.MeasureKind, w feature.Weights, query feature.ImageID) (rank.Entries, error) {
	start := time.Now()

	entries, err := e.scored(kind, w, query)
	if err != nil {
		e.metrics.RecordRanking(string(kind), "error", time.Since(start))
		return nil, err
	}

	e.metrics.RecordRanking(string(kind), "success", time.Since(start))
	e.logger.Debug("Ranked corpus",
		zap.String("measure", string(kind)),
		zap.Int("query", int(query)),
		zap.Duration("elapsed", time.Since(start)))
	return entries, nil
}

func (e *Engine) scored(kind distance.MeasureKind, w feature.Weights, query feature.ImageID) (rank.Entries, error) {
	if err := e.features.CheckID(query); err != nil {
		return nil, err
	}
	m, err := e.measure(kind, w)
	if err != nil {
		return nil, err
	}
	return rank.Scored(m, query)
}

// RankByHistogram orders the corpus by the raw histogram distance of one kind
func (e *Engine) RankByHistogram(kind feature.Kind, query feature.ImageID) (feature.RankOrder, error) {
	var mk distance.MeasureKind
	switch kind {
	case feature.Intensity:
		mk = distance.IntensityManhattan
	case feature.ColorCode:
		mk = distance.ColorCodeManhattan
	default:
		return nil, fmt.Errorf("unknown histogram kind %s", kind)
	}

	entries, err := e.Scored(mk, nil, query)
	if err != nil {
		return nil, err
	}
	return entries.Order(), nil
}

// ComputeWeights returns the relevance weights for query. The query is added
// to a non-empty set.
func (e *Engine) ComputeWeights(set *relevance.Set, query feature.ImageID) (feature.Weights, error) {
	w, err := e.weighter.Compute(set, e.features, query)
	if err != nil {
		return nil, err
	}
	if set != nil {
		e.metrics.RecordWeights(set.Len())
	} else {
		e.metrics.RecordWeights(0)
	}
	return w, nil
}

// RankByWeightedFeatures orders the corpus by the weighted distance on the
// standardized features.
func (e *Engine) RankByWeightedFeatures(w feature.Weights, query feature.ImageID) (feature.RankOrder, error) {
	entries, err := e.Scored(distance.WeightedCombined, w, query)
	if err != nil {
		return nil, err
	}
	return entries.Order(), nil
}

// ResetOrder returns the ascending-id order of the corpus
func (e *Engine) ResetOrder() feature.RankOrder {
	return rank.Reset(e.CorpusSize())
}

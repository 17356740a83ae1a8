// Package relevance derives per-dimension weights from the images a user
// marked as relevant to a query.
package relevance

import (
	"sort"

	"go.uber.org/zap"

	"github.com/ken/image_retrieval/pkg/core/feature"
	"github.com/ken/image_retrieval/pkg/normalize"
)

// Set is the set of images marked relevant for the current query
type Set struct {
	ids map[feature.ImageID]struct{}
}

// NewSet creates a set holding the given ids
func NewSet(ids ...feature.ImageID) *Set {
	s := &Set{ids: make(map[feature.ImageID]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *Set) Add(id feature.ImageID) {
	if s.ids == nil {
		s.ids = make(map[feature.ImageID]struct{})
	}
	s.ids[id] = struct{}{}
}

func (s *Set) Remove(id feature.ImageID) {
	delete(s.ids, id)
}

func (s *Set) Contains(id feature.ImageID) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Set) Len() int {
	return len(s.ids)
}

// Clear empties the set
func (s *Set) Clear() {
	for id := range s.ids {
		delete(s.ids, id)
	}
}

// IDs returns the members in ascending order
func (s *Set) IDs() []feature.ImageID {
	ids := make([]feature.ImageID, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Weighter computes weight vectors for relevance feedback
type Weighter struct {
	logger *zap.Logger
}

// NewWeighter creates a weighter. A nil logger disables logging.
func NewWeighter(logger *zap.Logger) *Weighter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Weighter{logger: logger}
}

// ComputeWeights is Compute on a weighter without logging
func ComputeWeights(set *Set, m feature.Matrix, query feature.ImageID) (feature.Weights, error) {
	return NewWeighter(nil).Compute(set, m, query)
}

// Compute returns the weight vector for query given the relevant images.
//
// With an empty set every dimension weighs 1/89. Otherwise the query is added
// to set, the statistics of the relevant rows are computed the same way as
// for the whole corpus, and each dimension weighs 1/SD (0 where the SD is 0),
// scaled so the weights sum to 1. Dimensions that vary little among the
// relevant images therefore dominate the distance.
//
// If no dimension ends up with a positive weight the uniform vector is
// returned instead.
func (w *Weighter) Compute(set *Set, m feature.Matrix, query feature.ImageID) (feature.Weights, error) {
	if err := m.CheckID(query); err != nil {
		return nil, err
	}
	if set == nil || set.Len() == 0 {
		return feature.Uniform(m.Dims()), nil
	}
	for _, id := range set.IDs() {
		if err := m.CheckID(id); err != nil {
			return nil, err
		}
	}

	set.Add(query)
	selected, err := m.Select(set.IDs())
	if err != nil {
		return nil, err
	}
	stats, report := normalize.Stats(selected)

	weights := make(feature.Weights, m.Dims()+1)
	var sum float64
	for d := 1; d <= m.Dims(); d++ {
		if stats[d].SD != 0 {
			weights[d] = 1 / stats[d].SD
		}
		sum += weights[d]
	}

	if sum == 0 {
		w.logger.Warn("Relevant images do not vary in any dimension, using uniform weights",
			zap.Int("query", int(query)),
			zap.Int("relevant", set.Len()))
		return feature.Uniform(m.Dims()), nil
	}

	for d := 1; d <= m.Dims(); d++ {
		weights[d] /= sum
	}

	w.logger.Debug("Computed relevance weights",
		zap.Int("query", int(query)),
		zap.Int("relevant", set.Len()),
		zap.Int("zero_sd_dims", report.ZeroSD),
		zap.Int("corrected_dims", report.Corrected))
	return weights, nil
}

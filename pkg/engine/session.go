package engine

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ken/image_retrieval/pkg/core/feature"
	"github.com/ken/image_retrieval/pkg/relevance"
)

var (
	// ErrNoQuery is returned when ranking before a query image was selected
	ErrNoQuery = errors.New("no query image selected")
)

// State is the ranking state of a session
type State int

const (
	NoQuery State = iota
	QuerySelected
	HistogramRanked
	WeightedRanked
)

func (s State) String() string {
	switch s {
	case NoQuery:
		return "no-query"
	case QuerySelected:
		return "query-selected"
	case HistogramRanked:
		return "histogram-ranked"
	case WeightedRanked:
		return "weighted-ranked"
	default:
		return "unknown"
	}
}

// Session holds the state of one user browsing the corpus: the query image,
// the images marked relevant, the last weights and the displayed order.
// Calls on a session are serialized.
type Session struct {
	mu sync.Mutex

	id       string
	engine   *Engine
	state    State
	query    feature.ImageID
	relevant *relevance.Set
	weights  feature.Weights
	order    feature.RankOrder
	logger   *zap.Logger
}

// NewSession starts a session with no query and the ascending-id order
func (e *Engine) NewSession() *Session {
	id := uuid.New().String()
	return &Session{
		id:       id,
		engine:   e,
		state:    NoQuery,
		relevant: relevance.NewSet(),
		order:    e.ResetOrder(),
		logger:   e.logger.With(zap.String("session", id)),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Query returns the selected query image, 0 if there is none
func (s *Session) Query() feature.ImageID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Order returns a copy of the current order, nil right after a new query
func (s *Session) Order() feature.RankOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(feature.RankOrder(nil), s.order...)
}

// Weights returns a copy of the weights of the last relevance ranking
func (s *Session) Weights() feature.Weights {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(feature.Weights(nil), s.weights...)
}

// Relevant returns the images marked relevant, ascending
func (s *Session) Relevant() []feature.ImageID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relevant.IDs()
}

// SelectQuery makes id the query image. The relevance set, the weights and
// the current order are discarded.
func (s *Session) SelectQuery(id feature.ImageID) error {
	if err := s.engine.features.CheckID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.query = id
	s.relevant.Clear()
	s.weights = nil
	s.order = nil
	s.state = QuerySelected

	s.logger.Debug("Selected query image", zap.Int("query", int(id)))
	return nil
}

// MarkRelevant adds an image to the relevance set of the current query
func (s *Session) MarkRelevant(id feature.ImageID) error {
	if err := s.engine.features.CheckID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == NoQuery {
		return ErrNoQuery
	}
	s.relevant.Add(id)
	return nil
}

// UnmarkRelevant removes an image from the relevance set
func (s *Session) UnmarkRelevant(id feature.ImageID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.relevant.Remove(id)
}

// RankHistogram orders the corpus by one raw histogram
func (s *Session) RankHistogram(kind feature.Kind) (feature.RankOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == NoQuery {
		return nil, ErrNoQuery
	}
	order, err := s.engine.RankByHistogram(kind, s.query)
	if err != nil {
		return nil, err
	}

	s.order = order
	s.state = HistogramRanked
	return append(feature.RankOrder(nil), order...), nil
}

// RankRelevance recomputes the weights from the relevance set and orders the
// corpus by the weighted feature distance. It may be called again after
// more images are marked.
func (s *Session) RankRelevance() (feature.RankOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == NoQuery {
		return nil, ErrNoQuery
	}
	w, err := s.engine.ComputeWeights(s.relevant, s.query)
	if err != nil {
		return nil, err
	}
	order, err := s.engine.RankByWeightedFeatures(w, s.query)
	if err != nil {
		return nil, err
	}

	s.weights = w
	s.order = order
	s.state = WeightedRanked

	s.logger.Debug("Ranked with relevance feedback",
		zap.Int("query", int(s.query)),
		zap.Int("relevant", s.relevant.Len()))
	return append(feature.RankOrder(nil), order...), nil
}

// Reset restores the ascending-id order. The query stays selected.
func (s *Session) Reset() feature.RankOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = s.engine.ResetOrder()
	if s.state != NoQuery {
		s.state = QuerySelected
	}
	return append(feature.RankOrder(nil), s.order...)
}

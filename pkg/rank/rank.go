// Package rank orders the whole corpus by ascending distance from a query
// image.
package rank

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/ken/image_retrieval/pkg/core/distance"
	"github.com/ken/image_retrieval/pkg/core/feature"
)

var (
	// ErrMeasureRequired is returned when no distance measure is given
	ErrMeasureRequired = errors.New("distance measure is required")

	// ErrEmptyCorpus is returned when the measure covers no images
	ErrEmptyCorpus = errors.New("corpus contains no images")
)

// Entry is the distance of one image from the query
type Entry struct {
	ID       feature.ImageID
	Distance float64

	seq int // insertion order, breaks distance ties
}

// Entries is a slice of Entry in ranking order
type Entries []Entry

// Order converts ranked entries into a RankOrder with the unused position 0
func (e Entries) Order() feature.RankOrder {
	order := make(feature.RankOrder, len(e)+1)
	for i, entry := range e {
		order[i+1] = entry.ID
	}
	return order
}

// queue is a min-heap of entries. A new queue is built for every ranking.
type queue []Entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].Distance != q[j].Distance {
		return q[i].Distance < q[j].Distance
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(Entry)) }

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

// Scored measures every image 1..N against the query, the query included,
// and returns the entries by ascending distance. Equal distances keep
// ascending id order.
func Scored(measure distance.Measure, query feature.ImageID) (Entries, error) {
	if measure == nil {
		return nil, ErrMeasureRequired
	}
	n := measure.Corpus()
	if n == 0 {
		return nil, ErrEmptyCorpus
	}
	if query < 1 || int(query) > n {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", feature.ErrInvalidQuery, query, n)
	}

	q := make(queue, 0, n)
	for i := 1; i <= n; i++ {
		id := feature.ImageID(i)
		heap.Push(&q, Entry{ID: id, Distance: measure.Distance(query, id), seq: i})
	}

	out := make(Entries, 0, n)
	for q.Len() > 0 {
		out = append(out, heap.Pop(&q).(Entry))
	}
	return out, nil
}

// Rank returns the full ordering of the corpus for the query
func Rank(measure distance.Measure, query feature.ImageID) (feature.RankOrder, error) {
	entries, err := Scored(measure, query)
	if err != nil {
		return nil, err
	}
	return entries.Order(), nil
}

// ByHistogram ranks by the L1 distance between size-normalized raw
// histogram rows of one kind.
func ByHistogram(kind feature.Kind, hist feature.Histogram, sizes feature.ImageSizes, query feature.ImageID) (feature.RankOrder, error) {
	measure, err := distance.RawManhattan(kind, hist, sizes)
	if err != nil {
		return nil, err
	}
	return Rank(measure, query)
}

// ByWeightedFeatures ranks by the weighted L1 distance on the standardized
// feature matrix.
func ByWeightedFeatures(m feature.Matrix, w feature.Weights, query feature.ImageID) (feature.RankOrder, error) {
	measure, err := distance.Weighted(m, w)
	if err != nil {
		return nil, err
	}
	return Rank(measure, query)
}

// Reset returns the unranked, ascending-id order of an n-image corpus
func Reset(n int) feature.RankOrder {
	return feature.Identity(n)
}

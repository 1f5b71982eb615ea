package domain

import (
	"sort"
	"time"
)

// Sentiment is the overall polarity assigned to a review's text.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ReviewSentimentRecord is the per-review classification result stored inside
// a place's aggregate document.
type ReviewSentimentRecord struct {
	ReviewID   string    `json:"review_id"`
	Tags       []string  `json:"tags"`
	Confidence float64   `json:"confidence"`
	Sentiment  Sentiment `json:"sentiment"`
}

// TagStat is the rolled-up state of one tag across all analyzed reviews of a
// place.
type TagStat struct {
	Frequency     int     `json:"frequency"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// PlaceAggregate is the per-place analysis document. AITags and
// AggregatedTags are projections derived entirely from ReviewSentiment; they
// are recomputed from scratch on every merge rather than adjusted
// incrementally, so replays and reorderings self-heal.
type PlaceAggregate struct {
	PlaceID         string                           `json:"place_id"`
	AITags          []string                         `json:"ai_tags"`
	ReviewSentiment map[string]ReviewSentimentRecord `json:"review_sentiment"`
	AggregatedTags  map[string]TagStat               `json:"aggregated_tags"`

	// Version backs the optimistic concurrency check in the store. 0 means
	// the document has never been persisted.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPlaceAggregate creates an empty aggregate for a place.
func NewPlaceAggregate(placeID string) *PlaceAggregate {
	return &PlaceAggregate{
		PlaceID:         placeID,
		AITags:          []string{},
		ReviewSentiment: make(map[string]ReviewSentimentRecord),
		AggregatedTags:  make(map[string]TagStat),
	}
}

// ApplyReview merges one review's classification into the aggregate. Any
// existing record for the same review ID is replaced, never duplicated, so
// applying the same record twice leaves the aggregate unchanged.
func (a *PlaceAggregate) ApplyReview(rec ReviewSentimentRecord) {
	if a.ReviewSentiment == nil {
		a.ReviewSentiment = make(map[string]ReviewSentimentRecord)
	}

	delete(a.ReviewSentiment, rec.ReviewID)
	a.ReviewSentiment[rec.ReviewID] = rec

	a.recompute()
}

// RemoveReview drops a review's record and recomputes the projections. It is
// a no-op when the review is not present.
func (a *PlaceAggregate) RemoveReview(reviewID string) bool {
	if _, ok := a.ReviewSentiment[reviewID]; !ok {
		return false
	}
	delete(a.ReviewSentiment, reviewID)
	a.recompute()
	return true
}

// recompute rebuilds AggregatedTags and AITags from the full current record
// set. A full rebuild avoids floating-point drift from incremental updates.
func (a *PlaceAggregate) recompute() {
	counts := make(map[string]int)
	sums := make(map[string]float64)

	for _, rec := range a.ReviewSentiment {
		for _, tag := range rec.Tags {
			counts[tag]++
			sums[tag] += rec.Confidence
		}
	}

	tags := make(map[string]TagStat, len(counts))
	union := make([]string, 0, len(counts))
	for tag, n := range counts {
		tags[tag] = TagStat{
			Frequency:     n,
			AvgConfidence: sums[tag] / float64(n),
		}
		union = append(union, tag)
	}
	sort.Strings(union)

	a.AggregatedTags = tags
	a.AITags = union
}

// ReviewIDs returns the IDs of all reviews represented in the aggregate,
// sorted for deterministic output.
func (a *PlaceAggregate) ReviewIDs() []string {
	ids := make([]string, 0, len(a.ReviewSentiment))
	for id := range a.ReviewSentiment {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

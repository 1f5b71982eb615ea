// Package classifier assigns sentiment and descriptive tags to review text.
//
// It is a deterministic keyword model standing in for a real NLP service:
// same input, same output, always. The aggregation pipeline's idempotent
// merge depends on that stability, so any replacement model must keep the
// contract.
package classifier

import (
	"sort"
	"strings"

	"github.com/dinewise/analysis/internal/domain"
)

// TagScore is one tag emitted for a review with the model's confidence.
type TagScore struct {
	Tag        string  `json:"tag"`
	Confidence float64 `json:"confidence"`
}

// Classification is the full result for one piece of text.
type Classification struct {
	Sentiment domain.Sentiment `json:"sentiment"`
	Tags      []TagScore       `json:"tags"`
}

// minConfidence is the emission threshold; tags at or below it are dropped.
const minConfidence = 0.6

// maxTags caps how many tags a single review can contribute.
const maxTags = 8

// positiveKeywords and negativeKeywords drive the overall sentiment call.
// They are intentionally narrower than the tag keyword lists: a word like
// "great" flavors a tag but is too generic to swing sentiment on its own.
var positiveKeywords = []string{
	"delicious", "amazing", "excellent", "fantastic", "wonderful",
	"perfect", "tasty", "superb", "loved it", "incredible",
}

var negativeKeywords = []string{
	"terrible", "awful", "horrible", "disgusting", "bland",
	"rude", "dirty", "slow", "stale", "inedible",
}

type polarity int

const (
	polarityPositive polarity = iota
	polarityNegative
	polarityContextual
)

type tagGroup struct {
	tag        string
	polarity   polarity
	confidence float64
	keywords   []string
}

// tagCatalog is the fixed table of tag groups. Confidences are calibrated
// offline; anything at or below minConfidence never surfaces.
var tagCatalog = []tagGroup{
	{"delicious", polarityPositive, 0.90, []string{"delicious", "tasty", "flavorful", "mouthwatering", "yummy"}},
	{"great-service", polarityPositive, 0.85, []string{"great service", "staff were great", "friendly staff", "attentive", "welcoming"}},
	{"cozy-atmosphere", polarityPositive, 0.80, []string{"cozy", "cosy", "charming", "romantic", "warm atmosphere"}},
	{"fresh-ingredients", polarityPositive, 0.80, []string{"fresh", "locally sourced", "organic", "seasonal"}},
	{"good-value", polarityPositive, 0.75, []string{"good value", "affordable", "reasonably priced", "worth every"}},
	{"generous-portions", polarityPositive, 0.70, []string{"generous", "huge portion", "big portion", "plenty of food"}},

	{"dirty", polarityNegative, 0.90, []string{"dirty", "filthy", "grimy", "unclean", "sticky table"}},
	{"rude-staff", polarityNegative, 0.85, []string{"rude", "unfriendly", "ignored us", "dismissive"}},
	{"overpriced", polarityNegative, 0.80, []string{"overpriced", "too expensive", "rip-off", "not worth"}},
	{"bland", polarityNegative, 0.80, []string{"bland", "tasteless", "flavorless", "under-seasoned"}},
	{"slow-service", polarityNegative, 0.75, []string{"slow", "waited forever", "took ages"}},
	{"long-wait", polarityNegative, 0.65, []string{"long wait", "long queue", "waited over"}},

	{"busy", polarityContextual, 0.65, []string{"busy", "crowded", "packed"}},
	{"casual", polarityContextual, 0.65, []string{"casual", "laid-back", "relaxed"}},
	{"outdoor-seating", polarityContextual, 0.70, []string{"outdoor", "patio", "terrace", "al fresco"}},
	{"parking", polarityContextual, 0.70, []string{"parking"}},
	{"family-friendly", polarityContextual, 0.70, []string{"family friendly", "kid-friendly", "with kids", "children"}},
	{"live-music", polarityContextual, 0.70, []string{"live music", "band playing"}},
	{"noisy", polarityContextual, 0.60, []string{"noisy", "loud"}}, // at threshold, never emitted
}

// Classify analyzes review text. Pure and synchronous: no I/O, no clock, no
// randomness.
func Classify(text string) Classification {
	lower := strings.ToLower(text)

	sentiment := classifySentiment(lower)
	tags := classifyTags(lower, sentiment)

	return Classification{
		Sentiment: sentiment,
		Tags:      tags,
	}
}

// classifySentiment counts keyword occurrences from both fixed sets.
// Positive wins only with strictly more hits than negative (and at least
// one); the mirror rule applies for negative; everything else is neutral,
// including an exact tie.
func classifySentiment(lower string) domain.Sentiment {
	var pos, neg int
	for _, kw := range positiveKeywords {
		pos += strings.Count(lower, kw)
	}
	for _, kw := range negativeKeywords {
		neg += strings.Count(lower, kw)
	}

	switch {
	case pos > neg && pos > 0:
		return domain.SentimentPositive
	case neg > pos && neg > 0:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

// classifyTags emits every catalog tag whose keywords match and whose
// polarity is admissible for the sentiment: positive-leaning tags when
// positive or neutral, negative-leaning when negative or neutral, contextual
// always.
func classifyTags(lower string, sentiment domain.Sentiment) []TagScore {
	var out []TagScore

	for _, group := range tagCatalog {
		if !polarityAllowed(group.polarity, sentiment) {
			continue
		}
		if group.confidence <= minConfidence {
			continue
		}
		if !matchesAny(lower, group.keywords) {
			continue
		}
		out = append(out, TagScore{Tag: group.tag, Confidence: group.confidence})
	}

	// Highest confidence first; ties break on tag name so output order is
	// stable across runs.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Tag < out[j].Tag
	})

	if len(out) > maxTags {
		out = out[:maxTags]
	}
	return out
}

func polarityAllowed(p polarity, sentiment domain.Sentiment) bool {
	switch p {
	case polarityPositive:
		return sentiment == domain.SentimentPositive || sentiment == domain.SentimentNeutral
	case polarityNegative:
		return sentiment == domain.SentimentNegative || sentiment == domain.SentimentNeutral
	default:
		return true
	}
}

func matchesAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// OverallConfidence folds per-tag confidences into the single figure stored
// on a review's sentiment record: the mean when tags were emitted, otherwise
// a flat 0.5 for a review the model found nothing notable in.
func (c Classification) OverallConfidence() float64 {
	if len(c.Tags) == 0 {
		return 0.5
	}
	var sum float64
	for _, t := range c.Tags {
		sum += t.Confidence
	}
	return sum / float64(len(c.Tags))
}

// TagNames returns just the tag strings, in emission order.
func (c Classification) TagNames() []string {
	names := make([]string, len(c.Tags))
	for i, t := range c.Tags {
		names[i] = t.Tag
	}
	return names
}

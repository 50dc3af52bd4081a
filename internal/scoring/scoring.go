// Package scoring computes candidate scores from channel identity and
// connector-supplied metadata.
package scoring

import "time"

// Fixed point values for the four breakdown categories.
const (
	institutionalPoints = 40.0
	communityPoints     = 30.0
	socialPoints        = 20.0
	recencyPoints       = 10.0
)

// RecencyPolicy selects how the recency component is computed.
type RecencyPolicy string

const (
	// RecencyFlat awards the flat recency constant to every candidate.
	RecencyFlat RecencyPolicy = "flat"
	// RecencyDecay scales the recency constant by the time-bucketed weight
	// of the candidate's first_seen metadata timestamp.
	RecencyDecay RecencyPolicy = "decay"
)

var institutionalAnchors = map[string]bool{
	"caha_pdf": true,
	"guma":     true,
	"artspace": true,
	"uog":      true,
}

var communityChannels = map[string]bool{
	"reddit": true,
	"events": true,
}

var socialChannels = map[string]bool{
	"instagram":      true,
	"instagram_stub": true,
	"tiktok":         true,
	"tiktok_stub":    true,
}

// Breakdown holds the per-category score components.
type Breakdown struct {
	Institutional float64 `json:"institutional"`
	Community     float64 `json:"community"`
	Social        float64 `json:"social"`
	Recency       float64 `json:"recency"`
}

// Total sums the category components.
func (b Breakdown) Total() float64 {
	return b.Institutional + b.Community + b.Social + b.Recency
}

// Engine scores candidates. It is pure and deterministic apart from the
// clock used by the decay policy.
type Engine struct {
	policy RecencyPolicy
	now    func() time.Time
}

// New creates a scoring engine with the given recency policy. An empty
// policy defaults to flat.
func New(policy RecencyPolicy) *Engine {
	if policy == "" {
		policy = RecencyFlat
	}
	return &Engine{policy: policy, now: time.Now}
}

// Score maps a channel and free-form metadata to a total score and its
// category breakdown. Metadata flags institutional_anchor and
// community_signal force their category regardless of channel.
func (e *Engine) Score(channel string, meta map[string]any) (float64, Breakdown) {
	var b Breakdown

	if institutionalAnchors[channel] || truthy(meta["institutional_anchor"]) {
		b.Institutional = institutionalPoints
	}
	if communityChannels[channel] || truthy(meta["community_signal"]) {
		b.Community = communityPoints
	}
	if socialChannels[channel] {
		b.Social = socialPoints
	}

	b.Recency = recencyPoints
	if e.policy == RecencyDecay {
		if firstSeen, ok := parseTime(meta["first_seen"]); ok {
			b.Recency = recencyPoints * RecencyWeight(firstSeen, e.now())
		}
	}

	return b.Total(), b
}

// RecencyWeight returns the time-bucketed weight of a first-seen timestamp:
// full weight within 30 days, half within 90, minimal beyond.
func RecencyWeight(firstSeen, now time.Time) float64 {
	days := int(now.Sub(firstSeen).Hours() / 24)
	switch {
	case days <= 30:
		return 1.0
	case days <= 90:
		return 0.5
	default:
		return 0.2
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1"
	default:
		return false
	}
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

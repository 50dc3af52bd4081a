// Package feed implements a connector for JSON community-event feeds. Each
// feed entry becomes one source; the entry's performer list becomes its
// candidates.
package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rotisserie/eris"

	"github.com/scoutline/scout-cli/internal/connector"
	"github.com/scoutline/scout-cli/internal/fetcher"
)

// DefaultCadence polls the feed every morning.
const DefaultCadence = "0 6 * * *"

// event is one entry in the feed payload.
type event struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	StartsAt    time.Time   `json:"starts_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Description string      `json:"description"`
	Performers  []performer `json:"performers"`
}

type performer struct {
	Name    string `json:"name"`
	Profile string `json:"profile"`
}

// Config configures a feed connector.
type Config struct {
	// Name registers the connector; defaults to the channel.
	Name    string
	URL     string
	Channel string
	Cadence string
}

// Connector polls one JSON event feed.
type Connector struct {
	name    string
	url     string
	channel string
	cadence string
	fetcher *fetcher.HTTPFetcher
}

// New creates a feed connector backed by f.
func New(cfg Config, f *fetcher.HTTPFetcher) *Connector {
	channel := cfg.Channel
	if channel == "" {
		channel = "events"
	}
	name := cfg.Name
	if name == "" {
		name = channel
	}
	cad := cfg.Cadence
	if cad == "" {
		cad = DefaultCadence
	}
	return &Connector{
		name:    name,
		url:     cfg.URL,
		channel: channel,
		cadence: cad,
		fetcher: f,
	}
}

func (c *Connector) Name() string { return c.name }

func (c *Connector) DefaultCadence() string { return c.cadence }

// Fetch downloads the feed and returns one raw source per event updated
// since the watermark. A nil since returns the whole feed.
func (c *Connector) Fetch(ctx context.Context, since *time.Time) ([]connector.RawSource, error) {
	if c.url == "" {
		return nil, eris.New("feed: no url configured")
	}

	var events []event
	if err := c.fetcher.GetJSON(ctx, c.url, &events); err != nil {
		return nil, eris.Wrap(err, "feed: fetch")
	}

	now := time.Now().UTC()
	sources := make([]connector.RawSource, 0, len(events))
	for _, ev := range events {
		if since != nil && !ev.UpdatedAt.IsZero() && ev.UpdatedAt.Before(*since) {
			continue
		}
		meta := map[string]any{
			"title": ev.Title,
		}
		if ev.ID != "" {
			meta["dedupe_token"] = "event:" + ev.ID
		}
		if !ev.StartsAt.IsZero() {
			meta["starts_at"] = ev.StartsAt.Format(time.RFC3339)
		}
		meta["performers"] = performerMeta(ev.Performers)
		meta["description"] = ev.Description

		sources = append(sources, connector.RawSource{
			Channel:     c.channel,
			URL:         ev.URL,
			Kind:        "event",
			FetchedAt:   now,
			ContentHash: eventHash(ev),
			Meta:        meta,
		})
	}
	return sources, nil
}

// Extract turns the source's performer list into candidates. Performers at
// community events carry the community signal for scoring.
func (c *Connector) Extract(_ context.Context, src connector.RawSource) ([]connector.RawCandidate, error) {
	performers, _ := src.Meta["performers"].([]map[string]any)
	title, _ := src.Meta["title"].(string)

	cands := make([]connector.RawCandidate, 0, len(performers))
	for _, p := range performers {
		name, _ := p["name"].(string)
		if name == "" {
			continue
		}
		meta := map[string]any{
			"community_signal": true,
		}
		if profile, _ := p["profile"].(string); profile != "" {
			meta["dedupe_token"] = "performer:" + profile
			meta["profile"] = profile
		}
		cands = append(cands, connector.RawCandidate{
			Name:     name,
			Evidence: title,
			Channel:  c.channel,
			Meta:     meta,
		})
	}
	return cands, nil
}

// eventHash fingerprints an event so unchanged entries dedupe across polls.
func eventHash(ev event) string {
	sum := sha256.Sum256([]byte(ev.ID + "\x00" + ev.Title + "\x00" + ev.UpdatedAt.Format(time.RFC3339)))
	return hex.EncodeToString(sum[:])
}

func performerMeta(ps []performer) []map[string]any {
	out := make([]map[string]any, 0, len(ps))
	for _, p := range ps {
		out = append(out, map[string]any{
			"name":    p.Name,
			"profile": p.Profile,
		})
	}
	return out
}

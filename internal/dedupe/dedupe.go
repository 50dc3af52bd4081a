// Package dedupe suppresses re-ingestion of previously seen sources and
// candidates using content hashes, token membership, and windowed text
// similarity.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"

	"github.com/scoutline/scout-cli/internal/connector"
	"github.com/scoutline/scout-cli/internal/model"
)

// Namespaces for the dedupe-mark membership set.
const (
	NamespaceSource    = "source"
	NamespaceCandidate = "candidate"
)

// TokenKey is the metadata key under which connectors attach an opaque
// dedupe token.
const TokenKey = "dedupe_token"

const (
	// Window bounds for the text-similarity check. Full-history comparison
	// is deliberately not attempted; recency dominates duplicate risk.
	sourceWindow    = 25
	candidateWindow = 50

	fuzzyThreshold = 0.85
)

// Reader provides the persisted state the engine compares against. The
// ingest transaction satisfies it, so items written earlier in the same run
// participate in dedupe.
type Reader interface {
	SourceHashExists(ctx context.Context, hash string) (bool, error)
	HasDedupeMark(ctx context.Context, namespace, tokenHash string) (bool, error)
	RecentSources(ctx context.Context, channel string, limit int) ([]model.Source, error)
	RecentCandidates(ctx context.Context, channel string, limit int) ([]model.Candidate, error)
}

// Engine applies the three dedupe checks in order: content hash (sources
// only), token membership, windowed exact/fuzzy text match.
type Engine struct {
	r Reader
}

// New creates an engine reading from r.
func New(r Reader) *Engine {
	return &Engine{r: r}
}

// CheckSource reports whether src duplicates a known source, with the
// matched check named for logging.
func (e *Engine) CheckSource(ctx context.Context, src connector.RawSource) (bool, string, error) {
	if src.ContentHash != "" {
		exists, err := e.r.SourceHashExists(ctx, src.ContentHash)
		if err != nil {
			return false, "", eris.Wrap(err, "dedupe: source hash lookup")
		}
		if exists {
			return true, "content_hash", nil
		}
	}

	if tok, ok := Token(src.Meta); ok {
		seen, err := e.r.HasDedupeMark(ctx, NamespaceSource, TokenHash(tok))
		if err != nil {
			return false, "", eris.Wrap(err, "dedupe: source token lookup")
		}
		if seen {
			return true, "dedupe_token", nil
		}
	}

	recent, err := e.r.RecentSources(ctx, src.Channel, sourceWindow)
	if err != nil {
		return false, "", eris.Wrap(err, "dedupe: recent sources")
	}
	title, _ := src.Meta["title"].(string)
	for _, prev := range recent {
		if src.URL != "" && matches(src.URL, prev.URL) {
			return true, "url_match", nil
		}
		if title != "" {
			prevTitle, _ := prev.Meta["title"].(string)
			if prevTitle != "" && matches(title, prevTitle) {
				return true, "title_match", nil
			}
		}
	}
	return false, "", nil
}

// CheckCandidate reports whether c duplicates a known candidate.
func (e *Engine) CheckCandidate(ctx context.Context, c connector.RawCandidate) (bool, string, error) {
	if tok, ok := Token(c.Meta); ok {
		seen, err := e.r.HasDedupeMark(ctx, NamespaceCandidate, TokenHash(tok))
		if err != nil {
			return false, "", eris.Wrap(err, "dedupe: candidate token lookup")
		}
		if seen {
			return true, "dedupe_token", nil
		}
	}

	recent, err := e.r.RecentCandidates(ctx, c.Channel, candidateWindow)
	if err != nil {
		return false, "", eris.Wrap(err, "dedupe: recent candidates")
	}
	for _, prev := range recent {
		if matches(c.Name, prev.Name) {
			return true, "name_match", nil
		}
	}
	return false, "", nil
}

// Token extracts the dedupe token from item metadata.
func Token(meta map[string]any) (string, bool) {
	tok, ok := meta[TokenKey].(string)
	return tok, ok && tok != ""
}

// TokenHash maps a token into the membership keyspace. A full sha256 digest
// keeps the set collision-free regardless of token shape.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ExactMatch is case-insensitive trimmed string equality.
func ExactMatch(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// FuzzyMatch reports whether the normalized similarity ratio of a and b
// meets threshold.
func FuzzyMatch(a, b string, threshold float64) bool {
	ratio := levenshtein.Similarity(strings.ToLower(a), strings.ToLower(b), levenshtein.NewParams())
	return ratio >= threshold
}

func matches(a, b string) bool {
	return ExactMatch(a, b) || FuzzyMatch(a, b, fuzzyThreshold)
}

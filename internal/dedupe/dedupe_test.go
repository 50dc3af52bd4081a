package dedupe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutline/scout-cli/internal/connector"
	"github.com/scoutline/scout-cli/internal/model"
)

// fakeReader is an in-memory Reader for engine tests.
type fakeReader struct {
	hashes     map[string]bool
	marks      map[string]bool
	sources    []model.Source
	candidates []model.Candidate
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		hashes: make(map[string]bool),
		marks:  make(map[string]bool),
	}
}

func (f *fakeReader) SourceHashExists(_ context.Context, hash string) (bool, error) {
	return f.hashes[hash], nil
}

func (f *fakeReader) HasDedupeMark(_ context.Context, ns, tokenHash string) (bool, error) {
	return f.marks[ns+"/"+tokenHash], nil
}

func (f *fakeReader) RecentSources(_ context.Context, channel string, limit int) ([]model.Source, error) {
	var out []model.Source
	for _, s := range f.sources {
		if s.Channel == channel && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeReader) RecentCandidates(_ context.Context, channel string, limit int) ([]model.Candidate, error) {
	var out []model.Candidate
	for _, c := range f.candidates {
		if c.Channel == channel && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestExactMatch(t *testing.T) {
	assert.True(t, ExactMatch("  Jane Doe ", "jane doe"))
	assert.False(t, ExactMatch("Jane Doe", "Jane Roe"))
}

func TestFuzzyMatch(t *testing.T) {
	assert.True(t, FuzzyMatch("Jane Doe", "Jane  Doe", 0.85))
	assert.True(t, FuzzyMatch("Aleksandra Petrova", "Aleksandra Petrov", 0.85))
	assert.False(t, FuzzyMatch("Jane Doe", "Marcus Chen", 0.85))
}

func TestTokenHash_StableAndDistinct(t *testing.T) {
	assert.Equal(t, TokenHash("abc"), TokenHash("abc"))
	assert.NotEqual(t, TokenHash("abc"), TokenHash("abd"))
	assert.Len(t, TokenHash("abc"), 64)
}

func TestCheckSource_ContentHash(t *testing.T) {
	r := newFakeReader()
	r.hashes["dup"] = true
	e := New(r)

	dup, reason, err := e.CheckSource(context.Background(), connector.RawSource{
		Channel:     "stub",
		URL:         "https://new.example",
		ContentHash: "dup",
	})
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, "content_hash", reason)
}

func TestCheckSource_TokenMembership(t *testing.T) {
	r := newFakeReader()
	r.marks[NamespaceSource+"/"+TokenHash("upstream-123")] = true
	e := New(r)

	dup, reason, err := e.CheckSource(context.Background(), connector.RawSource{
		Channel: "stub",
		URL:     "https://different-surface-text.example",
		Meta:    map[string]any{TokenKey: "upstream-123"},
	})
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, "dedupe_token", reason)
}

func TestCheckSource_WindowedURLAndTitle(t *testing.T) {
	r := newFakeReader()
	r.sources = append(r.sources, model.Source{
		Channel: "events",
		URL:     "https://example.com/open-call",
		Meta:    map[string]any{"title": "Open Call 2024"},
	})
	e := New(r)

	dup, reason, err := e.CheckSource(context.Background(), connector.RawSource{
		Channel: "events",
		URL:     "HTTPS://EXAMPLE.COM/OPEN-CALL",
	})
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, "url_match", reason)

	dup, reason, err = e.CheckSource(context.Background(), connector.RawSource{
		Channel: "events",
		URL:     "https://example.com/other",
		Meta:    map[string]any{"title": "Open Call 2024!"},
	})
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, "title_match", reason)

	// Same URL on a different channel is outside the window.
	dup, _, err = e.CheckSource(context.Background(), connector.RawSource{
		Channel: "reddit",
		URL:     "https://example.com/open-call",
	})
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestCheckCandidate_NameMatch(t *testing.T) {
	r := newFakeReader()
	r.candidates = append(r.candidates, model.Candidate{Channel: "stub", Name: "Existing Talent"})
	e := New(r)

	dup, reason, err := e.CheckCandidate(context.Background(), connector.RawCandidate{
		Channel: "stub",
		Name:    "existing talent",
	})
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, "name_match", reason)

	dup, _, err = e.CheckCandidate(context.Background(), connector.RawCandidate{
		Channel: "stub",
		Name:    "New Talent",
	})
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestCheckCandidate_TokenBeatsTextDifference(t *testing.T) {
	r := newFakeReader()
	r.marks[NamespaceCandidate+"/"+TokenHash("profile-42")] = true
	e := New(r)

	dup, reason, err := e.CheckCandidate(context.Background(), connector.RawCandidate{
		Channel: "stub",
		Name:    "Completely Different Display Name",
		Meta:    map[string]any{TokenKey: "profile-42"},
	})
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, "dedupe_token", reason)
}

package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeConnector struct {
	name    string
	cadence string
}

func (f *fakeConnector) Name() string           { return f.name }
func (f *fakeConnector) DefaultCadence() string { return f.cadence }

func (f *fakeConnector) Fetch(_ context.Context, _ *time.Time) ([]RawSource, error) {
	return nil, nil
}

func (f *fakeConnector) Extract(_ context.Context, _ RawSource) ([]RawCandidate, error) {
	return nil, nil
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeConnector{name: "reddit", cadence: "*/30 * * * *"})

	c, ok := r.Get("reddit")
	assert.True(t, ok)
	assert.Equal(t, "reddit", c.Name())
	assert.Equal(t, "*/30 * * * *", c.DefaultCadence())
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeConnector{name: "tiktok"})
	r.Register(&fakeConnector{name: "artspace"})
	r.Register(&fakeConnector{name: "events"})

	assert.Equal(t, []string{"artspace", "events", "tiktok"}, r.Names())
}

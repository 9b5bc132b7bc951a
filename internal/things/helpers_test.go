package things

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func strPtr(s string) *string { return &s }

func seed(t *testing.T, store ThingStore, names ...string) []*Thing {
	t.Helper()
	out := make([]*Thing, 0, len(names))
	for _, name := range names {
		thing := &Thing{Name: name}
		require.NoError(t, store.CreateThing(context.Background(), thing))
		out = append(out, thing)
	}
	return out
}

func names(list []*Thing) []string {
	out := make([]string, 0, len(list))
	for _, thing := range list {
		out = append(out, thing.Name)
	}
	return out
}

package web

import (
	"fmt"
	"strings"
	"time"

	"github.com/eion/things/internal/things"
)

// ThingEnvelope is the JSON representation of a single thing
type ThingEnvelope struct {
	Thing *things.Thing `json:"thing"`
}

func envelope(thing *things.Thing) ThingEnvelope {
	return ThingEnvelope{Thing: thing}
}

func envelopes(list []*things.Thing) []ThingEnvelope {
	out := make([]ThingEnvelope, 0, len(list))
	for _, thing := range list {
		out = append(out, envelope(thing))
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func thingText(thing *things.Thing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thing #%d\n", thing.ID)
	fmt.Fprintf(&b, "Name: %s\n", thing.Name)
	fmt.Fprintf(&b, "Description: %s\n", thing.DescriptionText())
	fmt.Fprintf(&b, "Created: %s\n", formatTime(thing.CreatedAt))
	fmt.Fprintf(&b, "Updated: %s\n", formatTime(thing.UpdatedAt))
	return b.String()
}

func thingsText(list []*things.Thing) string {
	var b strings.Builder
	for _, thing := range list {
		fmt.Fprintf(&b, "%d\t%s\n", thing.ID, thing.Name)
	}
	return b.String()
}

// formThing is the state a form is redisplayed with after a failed submission
func formThing(base *things.Thing, params *things.ThingParams) *things.Thing {
	thing := &things.Thing{}
	if base != nil {
		thing = base.Clone()
	}
	if params == nil {
		return thing
	}
	if params.Name != nil {
		thing.Name = *params.Name
	}
	if params.Description != nil {
		desc := *params.Description
		thing.Description = &desc
	}
	return thing
}

package things

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultSearchLimit is the number of suggestions returned for a search term
const DefaultSearchLimit = 5

// Service implements the ThingManager interface
type Service struct {
	store       ThingStore
	source      ThingStore // authoritative store for read-modify-write
	policy      *bluemonday.Policy
	searchLimit int
}

// NewService creates a new thing service
func NewService(store ThingStore, searchLimit int) ThingManager {
	if searchLimit <= 0 {
		searchLimit = DefaultSearchLimit
	}
	source := store
	if layer, ok := store.(CacheLayer); ok {
		source = layer.Uncached()
	}
	return &Service{
		store:       store,
		source:      source,
		policy:      bluemonday.StrictPolicy(),
		searchLimit: searchLimit,
	}
}

// GetThing retrieves a thing by id
func (s *Service) GetThing(ctx context.Context, id int64) (*Thing, error) {
	return s.store.GetThing(ctx, id)
}

// ListThings returns every thing, or at most searchLimit things whose name starts with req.Term
func (s *Service) ListThings(ctx context.Context, req *ListThingsRequest) ([]*Thing, error) {
	term := ""
	if req != nil {
		term = strings.TrimSpace(req.Term)
	}
	if term == "" {
		return s.store.ListThings(ctx)
	}
	return s.store.SearchThings(ctx, term, s.searchLimit)
}

// CreateThing validates and persists a new thing
func (s *Service) CreateThing(ctx context.Context, params *ThingParams) (*Thing, error) {
	if params == nil {
		return nil, NewMissingParamsError()
	}

	thing := &Thing{}
	s.apply(thing, params)

	if errs := validate(thing); errs != nil {
		return nil, NewThingValidationError(0, errs)
	}

	if err := s.store.CreateThing(ctx, thing); err != nil {
		return nil, fmt.Errorf("failed to create thing: %w", err)
	}
	return thing, nil
}

// UpdateThing applies the submitted attributes to an existing thing
func (s *Service) UpdateThing(ctx context.Context, id int64, params *ThingParams) (*Thing, error) {
	thing, err := s.source.GetThing(ctx, id)
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, NewMissingParamsError()
	}

	current := thing.Clone()
	s.apply(thing, params)
	if thing.sameAttributes(current) {
		return thing, nil
	}

	if errs := validate(thing); errs != nil {
		return nil, NewThingValidationError(id, errs)
	}

	if err := s.store.UpdateThing(ctx, thing); err != nil {
		return nil, fmt.Errorf("failed to update thing: %w", err)
	}
	return thing, nil
}

// DeleteThing removes a thing and returns its last known state
func (s *Service) DeleteThing(ctx context.Context, id int64) (*Thing, error) {
	thing, err := s.source.GetThing(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteThing(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete thing: %w", err)
	}
	return thing, nil
}

// apply copies the submitted fields onto thing, stripping markup
func (s *Service) apply(thing *Thing, params *ThingParams) {
	if params.Name != nil {
		thing.Name = strings.TrimSpace(s.sanitize(*params.Name))
	}
	if params.Description != nil {
		desc := strings.TrimSpace(s.sanitize(*params.Description))
		if desc == "" {
			thing.Description = nil
		} else {
			thing.Description = &desc
		}
	}
}

// maxSanitizePasses bounds how many layers of entity-escaped markup are peeled off
const maxSanitizePasses = 5

// sanitize strips all markup and returns plain text. The policy escapes entities,
// which templates would escape again, so its output is decoded; decoding can expose
// markup that arrived escaped, so the policy runs until the text stops changing.
// Input still changing after maxSanitizePasses keeps the policy's escaped output.
func (s *Service) sanitize(v string) string {
	for i := 0; i < maxSanitizePasses; i++ {
		clean := s.policy.Sanitize(v)
		text := html.UnescapeString(clean)
		if text == v {
			return text
		}
		v = text
	}
	return s.policy.Sanitize(v)
}

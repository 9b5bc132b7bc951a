package things

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryStore implements ThingStore with in-memory storage
type InMemoryStore struct {
	mu     sync.RWMutex
	things map[int64]*Thing
	nextID int64
	now    func() time.Time
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return NewInMemoryStoreWithClock(time.Now)
}

// NewInMemoryStoreWithClock creates an in-memory store stamping records with now()
func NewInMemoryStoreWithClock(now func() time.Time) *InMemoryStore {
	return &InMemoryStore{
		things: make(map[int64]*Thing),
		nextID: 1,
		now:    now,
	}
}

// CreateThing assigns an id and timestamps, then stores a copy of thing
func (s *InMemoryStore) CreateThing(ctx context.Context, thing *Thing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(thing.Name, 0) {
		return NewNameTakenError(0, nil)
	}

	now := s.now().UTC()
	thing.ID = s.nextID
	thing.CreatedAt = now
	thing.UpdatedAt = now
	s.nextID++

	s.things[thing.ID] = thing.Clone()
	return nil
}

// GetThing retrieves a thing by id
func (s *InMemoryStore) GetThing(ctx context.Context, id int64) (*Thing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thing, exists := s.things[id]
	if !exists {
		return nil, NewThingNotFoundError(id)
	}
	return thing.Clone(), nil
}

// UpdateThing replaces the stored name and description and refreshes updated_at
func (s *InMemoryStore) UpdateThing(ctx context.Context, thing *Thing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.things[thing.ID]
	if !exists {
		return NewThingNotFoundError(thing.ID)
	}
	if s.nameTaken(thing.Name, thing.ID) {
		return NewNameTakenError(thing.ID, nil)
	}

	thing.CreatedAt = stored.CreatedAt
	thing.UpdatedAt = s.now().UTC()
	s.things[thing.ID] = thing.Clone()
	return nil
}

// DeleteThing removes a thing
func (s *InMemoryStore) DeleteThing(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.things[id]; !exists {
		return NewThingNotFoundError(id)
	}
	delete(s.things, id)
	return nil
}

// ListThings returns all things ordered by name
func (s *InMemoryStore) ListThings(ctx context.Context) ([]*Thing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Thing, 0, len(s.things))
	for _, thing := range s.things {
		out = append(out, thing.Clone())
	}
	sortByName(out)
	return out, nil
}

// SearchThings returns at most limit things whose name starts with term, ignoring case
func (s *InMemoryStore) SearchThings(ctx context.Context, term string, limit int) ([]*Thing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := strings.ToLower(term)
	var out []*Thing
	for _, thing := range s.things {
		if strings.HasPrefix(strings.ToLower(thing.Name), prefix) {
			out = append(out, thing.Clone())
		}
	}
	sortByName(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// nameTaken must be called with the lock held
func (s *InMemoryStore) nameTaken(name string, exceptID int64) bool {
	for id, thing := range s.things {
		if id != exceptID && thing.Name == name {
			return true
		}
	}
	return false
}

func sortByName(list []*Thing) {
	sort.Slice(list, func(i, j int) bool {
		a, b := strings.ToLower(list[i].Name), strings.ToLower(list[j].Name)
		if a != b {
			return a < b
		}
		return list[i].ID < list[j].ID
	})
}

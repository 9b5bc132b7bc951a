package things

import "context"

// ThingStore defines the interface for thing persistence.
// Stores assign ids and timestamps.
type ThingStore interface {
	CreateThing(ctx context.Context, thing *Thing) error
	GetThing(ctx context.Context, id int64) (*Thing, error)
	UpdateThing(ctx context.Context, thing *Thing) error
	DeleteThing(ctx context.Context, id int64) error
	ListThings(ctx context.Context) ([]*Thing, error)
	SearchThings(ctx context.Context, term string, limit int) ([]*Thing, error)
}

// ThingManager defines the operations exposed to the HTTP layer
type ThingManager interface {
	GetThing(ctx context.Context, id int64) (*Thing, error)
	ListThings(ctx context.Context, req *ListThingsRequest) ([]*Thing, error)
	CreateThing(ctx context.Context, params *ThingParams) (*Thing, error)
	UpdateThing(ctx context.Context, id int64, params *ThingParams) (*Thing, error)
	DeleteThing(ctx context.Context, id int64) (*Thing, error)
}

// CacheLayer is implemented by stores that front another store.
// Read-modify-write operations load records from Uncached.
type CacheLayer interface {
	Uncached() ThingStore
}

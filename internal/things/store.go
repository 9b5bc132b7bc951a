package things

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// ThingSchema represents the things table schema in PostgreSQL
type ThingSchema struct {
	bun.BaseModel `bun:"table:things,alias:t"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull,unique" json:"name"`
	Description *string   `bun:"description" json:"description"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

const uniqueViolation = "23505"

// PostgresStore implements ThingStore using PostgreSQL
type PostgresStore struct {
	db *bun.DB
}

// NewPostgresStore creates a new PostgreSQL thing store
func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateThing inserts a new thing and fills in its id and timestamps
func (s *PostgresStore) CreateThing(ctx context.Context, thing *Thing) error {
	now := storeTimestamp()
	schema := ThingToThingSchema(thing)
	schema.ID = 0
	schema.CreatedAt = now
	schema.UpdatedAt = now

	_, err := s.db.NewInsert().
		Model(&schema).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return NewNameTakenError(0, err)
		}
		return fmt.Errorf("failed to insert thing: %w", err)
	}

	*thing = *ThingSchemaToThing(schema)
	return nil
}

// GetThing retrieves a thing by id
func (s *PostgresStore) GetThing(ctx context.Context, id int64) (*Thing, error) {
	var schema ThingSchema
	err := s.db.NewSelect().
		Model(&schema).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewThingNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get thing: %w", err)
	}
	return ThingSchemaToThing(schema), nil
}

// UpdateThing writes name and description and refreshes updated_at
func (s *PostgresStore) UpdateThing(ctx context.Context, thing *Thing) error {
	thing.UpdatedAt = storeTimestamp()
	schema := ThingToThingSchema(thing)

	result, err := s.db.NewUpdate().
		Model(&schema).
		Column("name", "description", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return NewNameTakenError(thing.ID, err)
		}
		return fmt.Errorf("failed to update thing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return NewThingNotFoundError(thing.ID)
	}
	return nil
}

// DeleteThing removes a thing
func (s *PostgresStore) DeleteThing(ctx context.Context, id int64) error {
	result, err := s.db.NewDelete().
		Model((*ThingSchema)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete thing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return NewThingNotFoundError(id)
	}
	return nil
}

// ListThings returns all things ordered by name
func (s *PostgresStore) ListThings(ctx context.Context) ([]*Thing, error) {
	var schemas []ThingSchema
	err := s.db.NewSelect().
		Model(&schemas).
		OrderExpr(`lower(name) COLLATE "C" ASC, id ASC`).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list things: %w", err)
	}
	return schemasToThings(schemas), nil
}

// SearchThings returns at most limit things whose name starts with term, ignoring case
func (s *PostgresStore) SearchThings(ctx context.Context, term string, limit int) ([]*Thing, error) {
	var schemas []ThingSchema
	query := s.db.NewSelect().
		Model(&schemas).
		Where(`name ILIKE ? ESCAPE '\'`, escapeLike(term)+"%").
		OrderExpr(`lower(name) COLLATE "C" ASC, id ASC`)
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to search things: %w", err)
	}
	return schemasToThings(schemas), nil
}

// storeTimestamp is the current time at the precision PostgreSQL keeps
func storeTimestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// escapeLike makes LIKE wildcards in term match literally
func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}

// Helper conversion functions
func ThingSchemaToThing(schema ThingSchema) *Thing {
	thing := &Thing{
		ID:        schema.ID,
		Name:      schema.Name,
		CreatedAt: schema.CreatedAt.UTC(),
		UpdatedAt: schema.UpdatedAt.UTC(),
	}
	if schema.Description != nil {
		desc := *schema.Description
		thing.Description = &desc
	}
	return thing
}

func ThingToThingSchema(thing *Thing) ThingSchema {
	return ThingSchema{
		ID:          thing.ID,
		Name:        thing.Name,
		Description: thing.Description,
		CreatedAt:   thing.CreatedAt,
		UpdatedAt:   thing.UpdatedAt,
	}
}

func schemasToThings(schemas []ThingSchema) []*Thing {
	out := make([]*Thing, 0, len(schemas))
	for _, schema := range schemas {
		out = append(out, ThingSchemaToThing(schema))
	}
	return out
}

package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chaos_event_definitions (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			weight DOUBLE PRECISION NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)
	`)
	return err
}

// SeedDefaults inserts the stock disruption catalog. Existing rows keep
// whatever weights an operator has tuned them to.
func (r *PostgresRepository) SeedDefaults(ctx context.Context) error {
	defaults := []Definition{
		{Name: "AsteroidStrike", Weight: 1, Description: "A rogue asteroid clips the cargo hold."},
		{Name: "PirateAttack", Weight: 0.5, Description: "Space pirates board the vessel and demand tribute."},
		{Name: "SolarFlare", Weight: 2, Description: "A solar flare scrambles the navigation array."},
		{Name: "EngineFailure", Weight: 1.5, Description: "The main drive sputters out mid-route."},
		{Name: "CustomsInspection", Weight: 3, Description: "An orbital customs patrol pulls the shipment aside."},
	}
	for _, def := range defaults {
		_, err := r.Pool.Exec(ctx, `
			INSERT INTO chaos_event_definitions (name, weight, description)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO NOTHING
		`, def.Name, def.Weight, def.Description)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Definition, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, name, weight, description
		FROM chaos_event_definitions
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	defs := []Definition{}
	for rows.Next() {
		var def Definition
		if err := rows.Scan(&def.ID, &def.Name, &def.Weight, &def.Description); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (Definition, error) {
	var def Definition
	err := r.Pool.QueryRow(ctx, `
		SELECT id, name, weight, description
		FROM chaos_event_definitions
		WHERE id = $1
	`, id).Scan(&def.ID, &def.Name, &def.Weight, &def.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return Definition{}, ErrNotFound
	}
	if err != nil {
		return Definition{}, err
	}
	return def, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, def Definition) (Definition, error) {
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO chaos_event_definitions (name, weight, description)
		VALUES ($1, $2, $3)
		RETURNING id
	`, def.Name, def.Weight, def.Description).Scan(&def.ID)
	if isUniqueViolation(err) {
		return Definition{}, ErrNameTaken
	}
	if err != nil {
		return Definition{}, err
	}
	return def, nil
}

func (r *PostgresRepository) Update(ctx context.Context, def Definition) error {
	tag, err := r.Pool.Exec(ctx, `
		UPDATE chaos_event_definitions
		SET name = $2, weight = $3, description = $4
		WHERE id = $1
	`, def.ID, def.Name, def.Weight, def.Description)
	if isUniqueViolation(err) {
		return ErrNameTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.Pool.Exec(ctx, `
		DELETE FROM chaos_event_definitions
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

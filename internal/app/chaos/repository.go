package chaos

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS shipments (
			id UUID PRIMARY KEY,
			origin TEXT NOT NULL DEFAULT '',
			destination TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_active
			ON shipments (status)
			WHERE status NOT IN ('Delivered', 'Cancelled')`,
		`CREATE TABLE IF NOT EXISTS chaos_event_logs (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			shipment_id UUID NOT NULL REFERENCES shipments (id) ON DELETE CASCADE,
			event_type TEXT NOT NULL,
			event_description TEXT NOT NULL DEFAULT '',
			impact_details TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chaos_event_logs_shipment
			ON chaos_event_logs (shipment_id, timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_chaos_event_logs_timestamp
			ON chaos_event_logs (timestamp DESC)`,
	}
	for _, stmt := range statements {
		if _, err := r.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SeedDemoShipments inserts n synthetic in-flight shipments when the
// shipments table is empty. Local development only; the production
// table is owned by the shipment service.
func (r *PostgresRepository) SeedDemoShipments(ctx context.Context, n int) error {
	var count int64
	if err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM shipments`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	ports := []string{"Earth Station Alpha", "Luna Dock 7", "Mars Orbital Hub", "Europa Relay", "Titan Freight Yard", "Ceres Depot"}
	statuses := []string{StatusApproved, StatusAssigned, StatusInTransit}
	for i := 0; i < n; i++ {
		origin := ports[rand.Intn(len(ports))]
		destination := origin
		for destination == origin {
			destination = ports[rand.Intn(len(ports))]
		}
		_, err := r.Pool.Exec(ctx, `
			INSERT INTO shipments (id, origin, destination, status)
			VALUES ($1, $2, $3, $4)
		`, uuid.New(), origin, destination, statuses[rand.Intn(len(statuses))])
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) GetShipment(ctx context.Context, id uuid.UUID) (Shipment, error) {
	var s Shipment
	err := r.Pool.QueryRow(ctx, `
		SELECT id, origin, destination, status, created_at, updated_at
		FROM shipments
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Origin, &s.Destination, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Shipment{}, ErrShipmentNotFound
	}
	if err != nil {
		return Shipment{}, err
	}
	return s, nil
}

// RandomEligibleShipment picks a uniformly random non-terminal
// shipment. The table stays small enough in this system that ORDER BY
// random() is acceptable.
func (r *PostgresRepository) RandomEligibleShipment(ctx context.Context) (*Shipment, error) {
	var s Shipment
	err := r.Pool.QueryRow(ctx, `
		SELECT id, origin, destination, status, created_at, updated_at
		FROM shipments
		WHERE status NOT IN ($1, $2)
		ORDER BY random()
		LIMIT 1
	`, StatusDelivered, StatusCancelled).Scan(&s.ID, &s.Origin, &s.Destination, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ApplyEvent writes the shipment mutation and its log entry in one
// transaction, so a crash never leaves a mutated shipment without an
// audit record.
func (r *PostgresRepository) ApplyEvent(ctx context.Context, shipment Shipment, entry Log) (int64, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE shipments
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, shipment.ID, shipment.Status, shipment.UpdatedAt)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrShipmentNotFound
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO chaos_event_logs (timestamp, shipment_id, event_type, event_description, impact_details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, entry.Timestamp, entry.ShipmentID, entry.EventType, entry.EventDescription, entry.ImpactDetails).Scan(&id)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

// ListLogs returns one page of the audit log, newest first.
func (r *PostgresRepository) ListLogs(ctx context.Context, filter LogFilter) (LogPage, error) {
	filter = filter.Normalize()

	conditions := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.ShipmentID != nil {
		conditions = append(conditions, "shipment_id = "+arg(*filter.ShipmentID))
	}
	if filter.EventType != "" {
		conditions = append(conditions, "event_type = "+arg(filter.EventType))
	}
	if filter.From != nil {
		conditions = append(conditions, "timestamp >= "+arg(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "timestamp <= "+arg(*filter.To))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := LogPage{
		Items:    []Log{},
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	err := r.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM chaos_event_logs"+where, args...).Scan(&page.Total)
	if err != nil {
		return LogPage{}, err
	}

	query := "SELECT id, timestamp, shipment_id, event_type, event_description, impact_details FROM chaos_event_logs" +
		where +
		" ORDER BY timestamp DESC, id DESC" +
		" LIMIT " + arg(filter.PageSize) +
		" OFFSET " + arg((filter.Page-1)*filter.PageSize)
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return LogPage{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var entry Log
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.ShipmentID, &entry.EventType, &entry.EventDescription, &entry.ImpactDetails); err != nil {
			return LogPage{}, err
		}
		page.Items = append(page.Items, entry)
	}
	if err := rows.Err(); err != nil {
		return LogPage{}, err
	}
	return page, nil
}

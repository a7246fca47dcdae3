package database

import (
	"context"
	"database/sql"
	"fmt"

	"rentara/internal/domain/maintenance"
)

type PostgresMaintenanceRepository struct {
	db *sql.DB
}

func NewPostgresMaintenanceRepository(db *sql.DB) *PostgresMaintenanceRepository {
	return &PostgresMaintenanceRepository{db: db}
}

func (r *PostgresMaintenanceRepository) Create(ctx context.Context, t *maintenance.Ticket) error {
	query := `INSERT INTO maintenance_requests (id, unit_id, description, status, created_by_id, assigned_to_id)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, t.ID, t.UnitID, t.Description, t.Status, t.CreatedByID, t.AssignedToID).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating maintenance request: %w", err)
	}
	return nil
}

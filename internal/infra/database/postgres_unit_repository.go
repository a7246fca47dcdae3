package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rentara/internal/domain/property"
)

type PostgresUnitRepository struct {
	db *sql.DB
}

func NewPostgresUnitRepository(db *sql.DB) *PostgresUnitRepository {
	return &PostgresUnitRepository{db: db}
}

const unitSelect = `SELECT u.id, u.property_id, u.name, u.rent_amount, u.status, u.tenant_id,
                           u.created_at, u.updated_at, p.id, p.name, p.location
                    FROM units u JOIN properties p ON p.id = u.property_id`

func scanUnit(row rowScanner) (*property.Unit, error) {
	u := &property.Unit{}
	err := row.Scan(&u.ID, &u.PropertyID, &u.Name, &u.RentAmount, &u.Status, &u.TenantID,
		&u.CreatedAt, &u.UpdatedAt, &u.Property.ID, &u.Property.Name, &u.Property.Location)
	return u, err
}

func (r *PostgresUnitRepository) GetByID(ctx context.Context, id string) (*property.Unit, error) {
	u, err := scanUnit(r.db.QueryRowContext(ctx, unitSelect+` WHERE u.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnitNotFound
		}
		return nil, fmt.Errorf("error getting unit by ID: %w", err)
	}
	return u, nil
}

func (r *PostgresUnitRepository) ListByTenant(ctx context.Context, tenantID string) ([]*property.Unit, error) {
	rows, err := r.db.QueryContext(ctx, unitSelect+` WHERE u.tenant_id = $1 ORDER BY u.name, u.id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("error listing units by tenant: %w", err)
	}
	defer rows.Close()

	units := make([]*property.Unit, 0)
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning unit: %w", err)
		}
		units = append(units, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating units: %w", err)
	}
	return units, nil
}

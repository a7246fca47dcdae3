package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rentara/internal/domain/user"
	"rentara/internal/domain/ussd"
)

type PostgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

func (r *PostgresSessionRepository) Get(ctx context.Context, id string) (*ussd.Session, error) {
	query := `SELECT session_id, phone_number, state, user_id, role, last_input, last_text, last_response,
                      version, created_at, updated_at
               FROM ussd_sessions WHERE session_id = $1`
	s := &ussd.Session{}
	var userID, role sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.PhoneNumber, &s.State, &userID, &role,
		&s.LastInput, &s.LastText, &s.LastResponse, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("error getting ussd session: %w", err)
	}
	if userID.Valid {
		s.Identity = &ussd.Identity{UserID: userID.String, Role: user.Role(role.String)}
	}
	return s, nil
}

func (r *PostgresSessionRepository) Create(ctx context.Context, s *ussd.Session) error {
	var userID, role sql.NullString
	if s.Identity != nil {
		userID = sql.NullString{String: s.Identity.UserID, Valid: true}
		role = sql.NullString{String: string(s.Identity.Role), Valid: true}
	}
	query := `INSERT INTO ussd_sessions (session_id, phone_number, state, user_id, role, last_input, last_text, last_response, version)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)
               RETURNING version, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, s.ID, s.PhoneNumber, s.State, userID, role,
		s.LastInput, s.LastText, s.LastResponse).Scan(&s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "ussd_sessions_pkey") {
			return ErrDuplicateSession
		}
		return fmt.Errorf("error creating ussd session: %w", err)
	}
	return nil
}

// Save is a compare-and-swap on version; identity columns are not touched.
func (r *PostgresSessionRepository) Save(ctx context.Context, s *ussd.Session) error {
	query := `UPDATE ussd_sessions
               SET state = $1, last_input = $2, last_text = $3, last_response = $4,
                   version = version + 1, updated_at = NOW()
               WHERE session_id = $5 AND version = $6
               RETURNING version, updated_at`
	err := r.db.QueryRowContext(ctx, query, s.State, s.LastInput, s.LastText, s.LastResponse, s.ID, s.Version).
		Scan(&s.Version, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionVersionConflict
		}
		return fmt.Errorf("error saving ussd session: %w", err)
	}
	return nil
}

package user

import "context"

// Repository is the read side of the user store used by this service.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	ListByRole(ctx context.Context, role Role) ([]*User, error)
}

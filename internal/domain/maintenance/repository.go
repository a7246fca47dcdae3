package maintenance

import "context"

// Repository persists maintenance tickets.
type Repository interface {
	Create(ctx context.Context, t *Ticket) error
}

package property

import "context"

// UnitRepository gives read access to units and their property.
type UnitRepository interface {
	GetByID(ctx context.Context, id string) (*Unit, error)
	// ListByTenant returns the tenant's units in a stable order (name, id).
	// Menu positions are indexes into this list.
	ListByTenant(ctx context.Context, tenantID string) ([]*Unit, error)
}

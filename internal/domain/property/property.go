package property

import (
	"database/sql"
	"time"
)

// UnitStatus is the occupancy state of a unit.
type UnitStatus string

const (
	UnitVacant      UnitStatus = "VACANT"
	UnitOccupied    UnitStatus = "OCCUPIED"
	UnitMaintenance UnitStatus = "MAINTENANCE"
)

// Property is a building or estate holding units.
type Property struct {
	ID       string
	Name     string
	Location string
}

// Unit is a rentable unit. Property is populated by repository reads.
type Unit struct {
	ID         string
	PropertyID string
	Name       string
	RentAmount int64 // whole KES per month
	Status     UnitStatus
	TenantID   sql.NullString
	Property   Property
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

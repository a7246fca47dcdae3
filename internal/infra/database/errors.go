package database

import "fmt"

// Custom errors
var (
	ErrUserNotFound           = fmt.Errorf("user not found")
	ErrUnitNotFound           = fmt.Errorf("unit not found")
	ErrPaymentNotFound        = fmt.Errorf("payment not found")
	ErrPaymentNotPending      = fmt.Errorf("payment is not pending")
	ErrSessionNotFound        = fmt.Errorf("ussd session not found")
	ErrDuplicateSession       = fmt.Errorf("ussd session already exists")
	ErrSessionVersionConflict = fmt.Errorf("ussd session was modified concurrently")
)

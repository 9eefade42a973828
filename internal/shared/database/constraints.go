package database

import (
	"fmt"

	"gorm.io/gorm"
)

var constraintStatements = []string{
	// one seat per physical position within an event
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_seats_event_position
		ON seats (event_id, section, row_label, seat_number)`,

	// sweeper scan for lapsed holds
	`CREATE INDEX IF NOT EXISTS idx_seats_lapsed_holds
		ON seats (reserved_until)
		WHERE status = 'RESERVED' AND booking_id IS NULL`,

	// recovery scan for abandoned bookings
	`CREATE INDEX IF NOT EXISTS idx_bookings_pending_created
		ON bookings (created_at)
		WHERE status = 'PENDING'`,

	// refund retry scan
	`CREATE INDEX IF NOT EXISTS idx_payments_refund_scan
		ON payments (updated_at)
		WHERE status IN ('COMPLETED', 'REFUNDING')`,

	// a gateway payment settles at most one booking
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_provider_transaction
		ON payments (provider_transaction_id)
		WHERE provider_transaction_id <> ''`,
}

// MigrateConstraints adds partial and composite indexes used by the booking flow
func MigrateConstraints(db *gorm.DB) error {
	for _, stmt := range constraintStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to apply constraint: %w", err)
		}
	}
	return nil
}

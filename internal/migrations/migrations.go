// Package migrations creates the database schema at startup.
package migrations

import (
	"context"
	"fmt"

	"github.com/pharmaflow/pharmacy-backend/pkg/database"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT users_email_unique UNIQUE (email),
		CONSTRAINT users_role_valid CHECK (role IN ('admin', 'pharmacist', 'staff'))
	);`,

	`CREATE TABLE IF NOT EXISTS medicines (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		generic_name TEXT NOT NULL DEFAULT '',
		brand TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		manufacturer TEXT NOT NULL DEFAULT '',
		batch_number TEXT NOT NULL DEFAULT '',
		expiry_date TIMESTAMPTZ NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		unit TEXT NOT NULL DEFAULT 'unit',
		unit_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		reorder_threshold INTEGER NOT NULL DEFAULT 10,
		priority TEXT NOT NULL DEFAULT 'medium',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT medicines_quantity_non_negative CHECK (quantity >= 0),
		CONSTRAINT medicines_price_non_negative CHECK (unit_price >= 0),
		CONSTRAINT medicines_threshold_non_negative CHECK (reorder_threshold >= 0),
		CONSTRAINT medicines_priority_valid CHECK (priority IN ('critical', 'high', 'medium', 'low'))
	);`,

	`CREATE INDEX IF NOT EXISTS idx_medicines_category ON medicines (category);`,
	`CREATE INDEX IF NOT EXISTS idx_medicines_expiry ON medicines (expiry_date);`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		medicine_id UUID NOT NULL REFERENCES medicines(id),
		type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		previous_stock INTEGER NOT NULL,
		new_stock INTEGER NOT NULL,
		unit_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		total_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		performed_by UUID,
		prescription_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT transactions_type_valid CHECK (type IN ('purchase', 'sale', 'dispense', 'adjustment', 'expired', 'return'))
	);`,

	`CREATE INDEX IF NOT EXISTS idx_transactions_medicine_created ON transactions (medicine_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_type_created ON transactions (type, created_at);`,

	`CREATE TABLE IF NOT EXISTS prescriptions (
		id UUID PRIMARY KEY,
		patient_name TEXT NOT NULL,
		patient_contact TEXT NOT NULL DEFAULT '',
		doctor_name TEXT NOT NULL,
		doctor_license TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		notes TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT,
		validated_by UUID,
		validated_at TIMESTAMPTZ,
		dispensed_by UUID,
		dispensed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT prescriptions_status_valid CHECK (status IN ('pending', 'validated', 'dispensed', 'rejected', 'expired'))
	);`,

	`CREATE TABLE IF NOT EXISTS prescription_items (
		id UUID PRIMARY KEY,
		prescription_id UUID NOT NULL REFERENCES prescriptions(id) ON DELETE CASCADE,
		medicine_id UUID NOT NULL REFERENCES medicines(id),
		medicine_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		dosage TEXT NOT NULL DEFAULT '',
		duration TEXT NOT NULL DEFAULT '',
		CONSTRAINT prescription_items_quantity_positive CHECK (quantity > 0)
	);`,

	`CREATE INDEX IF NOT EXISTS idx_prescription_items_prescription ON prescription_items (prescription_id);`,

	`CREATE TABLE IF NOT EXISTS reorder_requests (
		id UUID PRIMARY KEY,
		medicine_id UUID NOT NULL REFERENCES medicines(id),
		medicine_name TEXT NOT NULL,
		current_stock INTEGER NOT NULL,
		reorder_threshold INTEGER NOT NULL,
		requested_quantity INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		requested_by UUID,
		approved_by UUID,
		approved_at TIMESTAMPTZ,
		ordered_at TIMESTAMPTZ,
		received_at TIMESTAMPTZ,
		received_quantity INTEGER,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT reorder_requests_status_valid CHECK (status IN ('pending', 'approved', 'ordered', 'received', 'cancelled'))
	);`,

	// At most one open (pending or approved) request per medicine. The sweep
	// relies on ON CONFLICT against this index instead of check-then-create.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_open_reorder_per_medicine
		ON reorder_requests (medicine_id) WHERE status IN ('pending', 'approved');`,
}

// Run applies the schema statements in order.
func Run(ctx context.Context, db *database.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

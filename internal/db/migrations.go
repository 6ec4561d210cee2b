package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Statements must run on both PostgreSQL and SQLite; the repository tests
// migrate an in-memory SQLite database with the same list.
var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS bill_of_lading (
		id UUID PRIMARY KEY,
		bl_number VARCHAR(64) NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		customer_email TEXT NOT NULL DEFAULT '',
		customer_phone TEXT NOT NULL DEFAULT '',
		customer_username VARCHAR(128) NOT NULL DEFAULT '',
		shipper TEXT NOT NULL DEFAULT '',
		consignee TEXT NOT NULL DEFAULT '',
		port_of_loading TEXT NOT NULL DEFAULT '',
		port_of_discharge TEXT NOT NULL DEFAULT '',
		container_numbers TEXT NOT NULL DEFAULT '',
		flight_or_vessel TEXT NOT NULL DEFAULT '',
		product_description TEXT NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL DEFAULT 'pending',
		payment_method VARCHAR(32) NOT NULL DEFAULT '',
		payment_status VARCHAR(32) NOT NULL DEFAULT '',
		reserve_status VARCHAR(32) NOT NULL DEFAULT '',
		ctn_fee NUMERIC(12,2) NOT NULL DEFAULT 0,
		service_fee NUMERIC(12,2) NOT NULL DEFAULT 0,
		payment_link TEXT NOT NULL DEFAULT '',
		unique_number VARCHAR(64) NOT NULL DEFAULT '',
		pdf_filename TEXT NOT NULL DEFAULT '',
		invoice_filename TEXT NOT NULL DEFAULT '',
		receipt_filename TEXT NOT NULL DEFAULT '',
		customer_invoice TEXT NOT NULL DEFAULT '',
		customer_packing_list TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		receipt_uploaded_at TIMESTAMP,
		allinpay_85_received_at TIMESTAMP,
		completed_at TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_bill_of_lading_status ON bill_of_lading (status);`,
	`CREATE INDEX IF NOT EXISTS idx_bill_of_lading_bl_number ON bill_of_lading (bl_number);`,
	`CREATE INDEX IF NOT EXISTS idx_bill_of_lading_customer_username ON bill_of_lading (customer_username);`,
	`CREATE INDEX IF NOT EXISTS idx_bill_of_lading_created_at ON bill_of_lading (created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_bill_of_lading_completed_at ON bill_of_lading (completed_at);`,
	`UPDATE bill_of_lading SET status = 'pending' WHERE status = 'Pending';`,
	`UPDATE bill_of_lading SET status = 'invoice_sent' WHERE status = 'Invoice Sent';`,
	`UPDATE bill_of_lading SET status = 'awaiting_bank_in' WHERE status = 'Awaiting Bank In';`,
	`UPDATE bill_of_lading SET status = 'paid_and_ctn_valid' WHERE status IN ('Paid and CTN Valid', 'Completed');`,
	`UPDATE bill_of_lading SET reserve_status = 'Settled' WHERE reserve_status = 'Reserve Settled';`,
}

func Migrate(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

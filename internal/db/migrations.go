package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'lead_status') THEN
			CREATE TYPE lead_status AS ENUM ('pending', 'completed');
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'user_role') THEN
			CREATE TYPE user_role AS ENUM ('user', 'admin');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role user_role NOT NULL DEFAULT 'user',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_users_email ON users (LOWER(email));`,
	`CREATE TABLE IF NOT EXISTS leads (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		reference_code VARCHAR(16) NOT NULL,
		idempotency_key TEXT,
		status lead_status NOT NULL DEFAULT 'pending',
		location_name TEXT NOT NULL,
		capacity INT NOT NULL DEFAULT 0,
		wait_time TEXT NOT NULL DEFAULT '',
		latitude TEXT NOT NULL DEFAULT '',
		longitude TEXT NOT NULL DEFAULT '',
		map_url TEXT NOT NULL DEFAULT '',
		timing TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		lobby_count INT NOT NULL DEFAULT 0,
		key_room_count INT NOT NULL DEFAULT 0,
		distance TEXT NOT NULL DEFAULT '',
		valet_booth BOOLEAN NOT NULL DEFAULT FALSE,
		cctv_coverage BOOLEAN NOT NULL DEFAULT FALSE,
		covered_parking BOOLEAN NOT NULL DEFAULT FALSE,
		ticket_types TEXT NOT NULL DEFAULT '',
		fee_types TEXT NOT NULL DEFAULT '',
		pricing_notes TEXT NOT NULL DEFAULT '',
		vat_inclusive BOOLEAN NOT NULL DEFAULT FALSE,
		driver_count INT NOT NULL DEFAULT 0,
		driver_roster TEXT NOT NULL DEFAULT '',
		admin_name TEXT NOT NULL DEFAULT '',
		admin_email TEXT NOT NULL DEFAULT '',
		admin_phone TEXT NOT NULL DEFAULT '',
		training_required BOOLEAN NOT NULL DEFAULT FALSE,
		submission_notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_leads_reference_code ON leads (reference_code);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_leads_idempotency_key ON leads (idempotency_key) WHERE idempotency_key IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads (status);`,
	`CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads (created_at DESC);`,
	`CREATE TABLE IF NOT EXISTS lead_attachments (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		lead_id UUID NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
		fieldname VARCHAR(32) NOT NULL,
		filename TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size_bytes BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_lead_attachments_fieldname ON lead_attachments (lead_id, fieldname);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

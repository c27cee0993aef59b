package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the DDL applied by Migrate, in dependency order.  Every
// statement is idempotent so Migrate can run on each start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS identities (
		id CHAR(36) NOT NULL PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(100) NOT NULL,
		email_confirmed_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uniq_identities_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS staff (
		identity_id CHAR(36) NOT NULL PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		full_name VARCHAR(120) NOT NULL,
		phone VARCHAR(32) NOT NULL DEFAULT '',
		role ENUM('admin','superadmin') NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_staff_identity FOREIGN KEY (identity_id) REFERENCES identities(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS residents (
		id CHAR(36) NOT NULL PRIMARY KEY,
		full_name VARCHAR(120) NOT NULL,
		email VARCHAR(255) NOT NULL,
		phone VARCHAR(32) NOT NULL,
		block VARCHAR(16) NOT NULL,
		flat_number VARCHAR(16) NOT NULL,
		avatar_ref VARCHAR(512) NOT NULL DEFAULT '',
		status ENUM('active','pending') NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uniq_residents_block_flat (block, flat_number),
		CONSTRAINT fk_residents_identity FOREIGN KEY (id) REFERENCES identities(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS household_members (
		id CHAR(36) NOT NULL PRIMARY KEY,
		identity_id CHAR(36) NULL,
		primary_resident_id CHAR(36) NOT NULL,
		name VARCHAR(120) NOT NULL,
		email VARCHAR(255) NOT NULL,
		phone VARCHAR(32) NOT NULL DEFAULT '',
		relationship VARCHAR(64) NOT NULL,
		invitation_status ENUM('pending','sent','accepted') NOT NULL DEFAULT 'pending',
		access_status ENUM('active','restricted','suspended') NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uniq_members_identity (identity_id),
		UNIQUE KEY uniq_members_email (email),
		KEY idx_members_primary (primary_resident_id),
		CONSTRAINT fk_members_primary FOREIGN KEY (primary_resident_id) REFERENCES residents(id) ON DELETE CASCADE,
		CONSTRAINT fk_members_identity FOREIGN KEY (identity_id) REFERENCES identities(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS member_invitations (
		id CHAR(36) NOT NULL PRIMARY KEY,
		member_id CHAR(36) NOT NULL,
		token_hash CHAR(64) NOT NULL,
		temp_credential_hash VARCHAR(100) NOT NULL,
		expires_at DATETIME NOT NULL,
		consumed_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uniq_invitations_token (token_hash),
		CONSTRAINT fk_invitations_member FOREIGN KEY (member_id) REFERENCES household_members(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		identity_id CHAR(36) NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uniq_refresh_hash (token_hash),
		KEY idx_refresh_identity (identity_id),
		CONSTRAINT fk_refresh_identity FOREIGN KEY (identity_id) REFERENCES identities(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS visitors (
		id CHAR(36) NOT NULL PRIMARY KEY,
		resident_id CHAR(36) NOT NULL,
		registered_by CHAR(36) NOT NULL,
		name VARCHAR(120) NOT NULL,
		phone VARCHAR(32) NOT NULL DEFAULT '',
		purpose VARCHAR(255) NOT NULL DEFAULT '',
		expected_at DATETIME NOT NULL,
		checked_in_at DATETIME NULL,
		checked_out_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_visitors_expected (expected_at),
		CONSTRAINT fk_visitors_resident FOREIGN KEY (resident_id) REFERENCES residents(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS amenities (
		id CHAR(36) NOT NULL PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		description TEXT NOT NULL,
		location VARCHAR(120) NOT NULL DEFAULT '',
		opens_at VARCHAR(8) NOT NULL DEFAULT '',
		closes_at VARCHAR(8) NOT NULL DEFAULT '',
		bookable TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uniq_amenities_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS community_updates (
		id CHAR(36) NOT NULL PRIMARY KEY,
		title VARCHAR(200) NOT NULL,
		body TEXT NOT NULL,
		author_id CHAR(36) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_updates_created (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS community_update_reads (
		update_id CHAR(36) NOT NULL,
		identity_id CHAR(36) NOT NULL,
		read_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (update_id, identity_id),
		CONSTRAINT fk_reads_update FOREIGN KEY (update_id) REFERENCES community_updates(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.  It stops at the first failing statement.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

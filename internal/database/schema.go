package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Amount columns hold decimal strings exactly as the API produced them.
// Payment references compare byte for byte.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                   VARCHAR(64)  NOT NULL PRIMARY KEY,
		address              VARCHAR(128) NOT NULL,
		ursol_balance        VARCHAR(64)  NOT NULL DEFAULT '0.00',
		is_world_id_verified BOOLEAN      NOT NULL DEFAULT FALSE,
		created_at           DATETIME(6)  NOT NULL,
		UNIQUE KEY uq_users_address (address)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS policies (
		id               VARCHAR(64) NOT NULL PRIMARY KEY,
		user_id          VARCHAR(64) NOT NULL,
		token_id         INT         NOT NULL,
		tier             VARCHAR(32) NOT NULL,
		coverage_amount  VARCHAR(64) NOT NULL,
		monthly_premium  VARCHAR(64) NOT NULL,
		staking_bonus    INT         NOT NULL DEFAULT 0,
		is_active        BOOLEAN     NOT NULL DEFAULT TRUE,
		next_premium_due DATETIME(6) NULL,
		created_at       DATETIME(6) NOT NULL,
		UNIQUE KEY uq_policies_token (token_id),
		KEY idx_policies_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS staking_positions (
		id              VARCHAR(64) NOT NULL PRIMARY KEY,
		user_id         VARCHAR(64) NOT NULL,
		type            VARCHAR(32) NOT NULL,
		amount          VARCHAR(64) NOT NULL,
		apy             VARCHAR(32) NOT NULL,
		pending_rewards VARCHAR(64) NOT NULL DEFAULT '0',
		lock_period     INT         NOT NULL DEFAULT 0,
		created_at      DATETIME(6) NOT NULL,
		KEY idx_staking_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS loans (
		id                VARCHAR(64) NOT NULL PRIMARY KEY,
		user_id           VARCHAR(64) NOT NULL,
		policy_id         VARCHAR(64) NOT NULL,
		amount            VARCHAR(64) NOT NULL,
		interest_rate     VARCHAR(32) NOT NULL,
		health_factor     VARCHAR(32) NOT NULL,
		liquidation_ratio VARCHAR(32) NOT NULL,
		is_active         BOOLEAN     NOT NULL DEFAULT TRUE,
		created_at        DATETIME(6) NOT NULL,
		KEY idx_loans_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS beneficiaries (
		id                VARCHAR(64) NOT NULL PRIMARY KEY,
		user_id           VARCHAR(64) NOT NULL,
		encrypted_data    MEDIUMTEXT  NOT NULL,
		on_chain_settings JSON        NULL,
		created_at        DATETIME(6) NOT NULL,
		updated_at        DATETIME(6) NOT NULL,
		UNIQUE KEY uq_beneficiaries_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS claims (
		id                  VARCHAR(64) NOT NULL PRIMARY KEY,
		user_id             VARCHAR(64) NOT NULL,
		policy_id           VARCHAR(64) NOT NULL,
		payout_type         VARCHAR(32) NOT NULL,
		status              VARCHAR(16) NOT NULL DEFAULT 'pending',
		verification_method VARCHAR(32) NOT NULL,
		amount              VARCHAR(64) NOT NULL,
		submitted_at        DATETIME(6) NOT NULL,
		KEY idx_claims_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS activities (
		id          VARCHAR(64)  NOT NULL PRIMARY KEY,
		user_id     VARCHAR(64)  NOT NULL,
		type        VARCHAR(64)  NOT NULL,
		description VARCHAR(512) NOT NULL,
		amount      VARCHAR(64)  NULL,
		created_at  DATETIME(6)  NOT NULL,
		KEY idx_activities_user_created (user_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payments (
		id                  VARCHAR(64)  NOT NULL PRIMARY KEY,
		user_id             VARCHAR(64)  NOT NULL,
		payment_id          VARCHAR(64)  CHARACTER SET ascii COLLATE ascii_bin NOT NULL,
		type                VARCHAR(32)  NOT NULL,
		amount              VARCHAR(64)  NOT NULL,
		currency            VARCHAR(16)  NOT NULL,
		status              VARCHAR(16)  NOT NULL DEFAULT 'pending',
		related_entity_id   VARCHAR(64)  NOT NULL DEFAULT '',
		related_entity_type VARCHAR(16)  NOT NULL DEFAULT '',
		transaction_id      VARCHAR(128) NOT NULL DEFAULT '',
		ledger_tx_hash      VARCHAR(80)  NOT NULL DEFAULT '',
		created_at          DATETIME(6)  NOT NULL,
		completed_at        DATETIME(6)  NULL,
		UNIQUE KEY uq_payments_reference (payment_id),
		KEY idx_payments_user_created (user_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table. Existing tables are left untouched.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

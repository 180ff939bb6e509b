package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is idempotent and applied on every start.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          BIGSERIAL PRIMARY KEY,
	username    VARCHAR(50)  NOT NULL,
	email       VARCHAR(255) NOT NULL UNIQUE,
	avatar_url  TEXT,
	created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS groups (
	id           BIGSERIAL PRIMARY KEY,
	name         VARCHAR(100) NOT NULL,
	description  TEXT,
	image_url    TEXT,
	is_temporary BOOLEAN      NOT NULL DEFAULT FALSE,
	created_by   BIGINT       NOT NULL REFERENCES users(id),
	created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS group_members (
	id         BIGSERIAL PRIMARY KEY,
	group_id   BIGINT      NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
	user_id    BIGINT      NOT NULL REFERENCES users(id),
	role       VARCHAR(20) NOT NULL DEFAULT 'MEMBER',
	joined_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS pending_members (
	id         BIGSERIAL PRIMARY KEY,
	group_id   BIGINT       NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
	email      VARCHAR(255) NOT NULL,
	name       VARCHAR(100) NOT NULL,
	invited_by BIGINT       NOT NULL REFERENCES users(id),
	invited_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
	UNIQUE (group_id, email)
);

CREATE TABLE IF NOT EXISTS expenses (
	id            BIGSERIAL PRIMARY KEY,
	group_id      BIGINT        NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
	payer_id      BIGINT        NOT NULL REFERENCES users(id),
	description   VARCHAR(255)  NOT NULL,
	amount        NUMERIC(14,2) NOT NULL CHECK (amount > 0),
	pending_total NUMERIC(14,2) NOT NULL DEFAULT 0,
	image_url     TEXT,
	split_type    VARCHAR(20)   NOT NULL,
	created_at    TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
	deleted_at    TIMESTAMPTZ,
	deleted_by    BIGINT REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_expenses_group ON expenses(group_id);

CREATE TABLE IF NOT EXISTS expense_shares (
	id          BIGSERIAL PRIMARY KEY,
	expense_id  BIGINT        NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
	user_id     BIGINT        NOT NULL REFERENCES users(id),
	amount_owed NUMERIC(14,2) NOT NULL CHECK (amount_owed >= 0),
	UNIQUE (expense_id, user_id)
);

CREATE TABLE IF NOT EXISTS expense_pending_shares (
	id          BIGSERIAL PRIMARY KEY,
	expense_id  BIGINT        NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
	email       VARCHAR(255)  NOT NULL,
	amount_owed NUMERIC(14,2) NOT NULL CHECK (amount_owed >= 0),
	UNIQUE (expense_id, email)
);

CREATE TABLE IF NOT EXISTS settlements (
	id           BIGSERIAL PRIMARY KEY,
	group_id     BIGINT        NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
	from_user_id BIGINT        NOT NULL REFERENCES users(id),
	to_user_id   BIGINT        NOT NULL REFERENCES users(id),
	amount       NUMERIC(14,2) NOT NULL CHECK (amount > 0),
	message      TEXT,
	image_url    TEXT,
	settled_at   TIMESTAMPTZ   NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_settlements_group ON settlements(group_id);

CREATE TABLE IF NOT EXISTS notifications (
	id                  BIGSERIAL PRIMARY KEY,
	recipient_id        BIGINT      NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	type                VARCHAR(40) NOT NULL,
	message             TEXT        NOT NULL,
	is_read             BOOLEAN     NOT NULL DEFAULT FALSE,
	related_entity_type VARCHAR(20),
	related_entity_id   BIGINT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, is_read);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

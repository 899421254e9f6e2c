package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the ledger-indexer layout. Digests are stored as 0x-hex text.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_blocks (
	number     BIGSERIAL PRIMARY KEY,
	hash       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_transactions (
	block_hash   TEXT NOT NULL REFERENCES ledger_blocks (hash),
	block_number BIGINT NOT NULL,
	tx_index     INTEGER NOT NULL,
	signer       TEXT NOT NULL,
	args         JSONB NOT NULL,
	events       JSONB NOT NULL,
	PRIMARY KEY (block_hash, tx_index)
);

CREATE TABLE IF NOT EXISTS delegation_nodes (
	id        TEXT PRIMARY KEY,
	parent_id TEXT REFERENCES delegation_nodes (id),
	owner     TEXT NOT NULL,
	revoked   BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS attestations (
	root_digest   TEXT PRIMARY KEY,
	issuer        TEXT NOT NULL,
	schema_hash   TEXT NOT NULL,
	delegation_id TEXT REFERENCES delegation_nodes (id),
	legitimations TEXT[] NOT NULL DEFAULT '{}',
	revoked       BOOLEAN NOT NULL DEFAULT FALSE
);
`

// Migrate applies Schema. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

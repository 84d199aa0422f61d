package database

// schemaStatements create the facilities table. The partial unique index keeps
// one auto-imported row per upstream identity; hand-entered rows are exempt.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS facilities (
		id              TEXT PRIMARY KEY,
		external_id     TEXT,
		external_source TEXT,
		name            TEXT NOT NULL CHECK (btrim(name) <> ''),
		facility_kind   TEXT NOT NULL DEFAULT 'GENERIC',
		classification  TEXT NOT NULL DEFAULT '',
		address         TEXT NOT NULL DEFAULT '',
		city            TEXT NOT NULL DEFAULT '',
		province        TEXT NOT NULL DEFAULT 'Unknown',
		postal_code     TEXT NOT NULL DEFAULT '',
		country         TEXT NOT NULL DEFAULT '',
		latitude        DOUBLE PRECISION,
		longitude       DOUBLE PRECISION,
		phone           TEXT NOT NULL DEFAULT '',
		email           TEXT NOT NULL DEFAULT '',
		website         TEXT NOT NULL DEFAULT '',
		verified        BOOLEAN NOT NULL DEFAULT FALSE,
		auto_imported   BOOLEAN NOT NULL DEFAULT FALSE,
		data_source     TEXT NOT NULL DEFAULT '',
		last_updated    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK ((external_id IS NULL) = (external_source IS NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS facilities_external_identity_idx
		ON facilities (external_source, external_id)
		WHERE auto_imported AND external_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS facilities_candidate_idx
		ON facilities (province, LOWER(city))
		WHERE auto_imported`,
	`CREATE INDEX IF NOT EXISTS facilities_created_at_idx ON facilities (created_at)`,
}

package store

const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS track_pipeline_state (
	track_id TEXT PRIMARY KEY,
	isrc TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	artist TEXT NOT NULL DEFAULT '',
	recording_mbid TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	source_audio_url TEXT NOT NULL DEFAULT '',
	audio_url TEXT NOT NULL DEFAULT '',
	lyrics TEXT NOT NULL DEFAULT '',
	iswc TEXT,

	stage TEXT NOT NULL CHECK (stage IN ('discovered', 'metadata_resolved', 'iswc_found', 'iswc_failed',
		'audio_downloaded', 'alignment_complete', 'translations_ready', 'failed')),
	retry_count INTEGER NOT NULL DEFAULT 0 CHECK (retry_count >= 0),
	manual_reset_count INTEGER NOT NULL DEFAULT 0,
	last_error_message TEXT,
	last_error_stage TEXT,

	lease_owner TEXT,
	lease_expires_at DATETIME,

	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	last_attempted_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_tps_stage_updated ON track_pipeline_state(stage, updated_at);
CREATE INDEX IF NOT EXISTS idx_tps_isrc ON track_pipeline_state(isrc);

CREATE TABLE IF NOT EXISTS external_identifier_cache (
	natural_key TEXT PRIMARY KEY,
	key_type TEXT NOT NULL,
	resolved_identifier TEXT,
	source TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	contributors TEXT NOT NULL DEFAULT '[]',
	metadata TEXT NOT NULL DEFAULT '{}',
	raw_payload TEXT,
	not_found INTEGER NOT NULL DEFAULT 0,
	fetched_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS alignment_records (
	track_id TEXT PRIMARY KEY REFERENCES track_pipeline_state(track_id),
	words TEXT NOT NULL,
	characters TEXT NOT NULL,
	lines TEXT NOT NULL,
	line_count INTEGER NOT NULL DEFAULT 0,
	overall_loss REAL NOT NULL DEFAULT 0,
	provider TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS translation_records (
	track_id TEXT NOT NULL REFERENCES track_pipeline_state(track_id),
	language_code TEXT NOT NULL,
	lines TEXT NOT NULL,
	line_count INTEGER NOT NULL DEFAULT 0,
	confidence_score REAL NOT NULL DEFAULT 0 CHECK (confidence_score >= 0 AND confidence_score <= 1),
	source_language TEXT NOT NULL DEFAULT '',
	provider TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (track_id, language_code)
);

CREATE TABLE IF NOT EXISTS processing_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL DEFAULT '',
	track_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	outcome TEXT NOT NULL CHECK (outcome IN ('success', 'failed', 'skipped', 'requeued')),
	message TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processing_log_track ON processing_log(track_id, created_at);

CREATE TRIGGER IF NOT EXISTS processing_log_no_update BEFORE UPDATE ON processing_log
BEGIN
	SELECT RAISE(ABORT, 'processing_log is append-only');
END;

CREATE TRIGGER IF NOT EXISTS processing_log_no_delete BEFORE DELETE ON processing_log
BEGIN
	SELECT RAISE(ABORT, 'processing_log is append-only');
END;

CREATE TABLE IF NOT EXISTS http_cache (
	key TEXT PRIMARY KEY,
	data BLOB,
	expires_at DATETIME
);
`

const PostgresSchema = `
CREATE TABLE IF NOT EXISTS track_pipeline_state (
	track_id TEXT PRIMARY KEY,
	isrc TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	artist TEXT NOT NULL DEFAULT '',
	recording_mbid TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	source_audio_url TEXT NOT NULL DEFAULT '',
	audio_url TEXT NOT NULL DEFAULT '',
	lyrics TEXT NOT NULL DEFAULT '',
	iswc TEXT,

	stage TEXT NOT NULL CHECK (stage IN ('discovered', 'metadata_resolved', 'iswc_found', 'iswc_failed',
		'audio_downloaded', 'alignment_complete', 'translations_ready', 'failed')),
	retry_count INTEGER NOT NULL DEFAULT 0 CHECK (retry_count >= 0),
	manual_reset_count INTEGER NOT NULL DEFAULT 0,
	last_error_message TEXT,
	last_error_stage TEXT,

	lease_owner TEXT,
	lease_expires_at TIMESTAMPTZ,

	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	last_attempted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_tps_stage_updated ON track_pipeline_state(stage, updated_at);
CREATE INDEX IF NOT EXISTS idx_tps_isrc ON track_pipeline_state(isrc);

CREATE TABLE IF NOT EXISTS external_identifier_cache (
	natural_key TEXT PRIMARY KEY,
	key_type TEXT NOT NULL,
	resolved_identifier TEXT,
	source TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	contributors JSONB NOT NULL DEFAULT '[]',
	metadata JSONB NOT NULL DEFAULT '{}',
	raw_payload JSONB,
	not_found BOOLEAN NOT NULL DEFAULT FALSE,
	fetched_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS alignment_records (
	track_id TEXT PRIMARY KEY REFERENCES track_pipeline_state(track_id),
	words JSONB NOT NULL,
	characters JSONB NOT NULL,
	lines JSONB NOT NULL,
	line_count INTEGER NOT NULL DEFAULT 0,
	overall_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
	provider TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS translation_records (
	track_id TEXT NOT NULL REFERENCES track_pipeline_state(track_id),
	language_code TEXT NOT NULL,
	lines JSONB NOT NULL,
	line_count INTEGER NOT NULL DEFAULT 0,
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (confidence_score >= 0 AND confidence_score <= 1),
	source_language TEXT NOT NULL DEFAULT '',
	provider TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (track_id, language_code)
);

CREATE TABLE IF NOT EXISTS processing_log (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL DEFAULT '',
	track_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	outcome TEXT NOT NULL CHECK (outcome IN ('success', 'failed', 'skipped', 'requeued')),
	message TEXT NOT NULL DEFAULT '',
	metadata JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processing_log_track ON processing_log(track_id, created_at);

CREATE OR REPLACE FUNCTION processing_log_append_only() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'processing_log is append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS processing_log_no_mutation ON processing_log;
CREATE TRIGGER processing_log_no_mutation BEFORE UPDATE OR DELETE ON processing_log
	FOR EACH ROW EXECUTE FUNCTION processing_log_append_only();

CREATE TABLE IF NOT EXISTS http_cache (
	key TEXT PRIMARY KEY,
	data BYTEA,
	expires_at TIMESTAMPTZ
);
`

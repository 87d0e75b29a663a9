package store

const Schema = `
CREATE TABLE IF NOT EXISTS pipeline_status (
	track_id TEXT PRIMARY KEY,
	mp3 BOOLEAN NOT NULL DEFAULT 0,
	wav BOOLEAN NOT NULL DEFAULT 0,
	spectrogram BOOLEAN NOT NULL DEFAULT 0,
	features BOOLEAN NOT NULL DEFAULT 0,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tracks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	track_id TEXT UNIQUE NOT NULL,
	source_url TEXT NOT NULL,

	-- ID3-derived metadata
	title TEXT,
	artist TEXT,
	album TEXT,
	genre TEXT,
	year TEXT,

	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tracks_track_id ON tracks(track_id);
`

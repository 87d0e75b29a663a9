package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/emoteam/emopipe/internal/domain"
)

// UpsertTrack records the source URL and ID3-derived metadata for a track.
// Repeated ingestion refreshes metadata but keeps the original row.
func (db *DB) UpsertTrack(track *domain.Track) error {
	track.TrackID = domain.NormalizeTrackID(track.TrackID)
	track.UpdatedAt = time.Now()
	if track.CreatedAt.IsZero() {
		track.CreatedAt = track.UpdatedAt
	}

	query := `
		INSERT INTO tracks (track_id, source_url, title, artist, album, genre, year, created_at, updated_at)
		VALUES (:track_id, :source_url, :title, :artist, :album, :genre, :year, :created_at, :updated_at)
		ON CONFLICT(track_id) DO UPDATE SET
			source_url = excluded.source_url,
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			genre = excluded.genre,
			year = excluded.year,
			updated_at = excluded.updated_at
	`
	if _, err := db.NamedExec(query, track); err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}
	return nil
}

// GetTrack returns the recorded track row, or domain.ErrNotFound.
func (db *DB) GetTrack(trackID string) (*domain.Track, error) {
	trackID = domain.NormalizeTrackID(trackID)

	var track domain.Track
	err := db.Get(&track, `SELECT * FROM tracks WHERE track_id = ?`, trackID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: track %s", domain.ErrNotFound, trackID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}
	return &track, nil
}

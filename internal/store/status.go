package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/emoteam/emopipe/internal/domain"
)

// MergeStatus records a pipeline outcome for a track. Flags only ever move
// from false to true: the upsert ORs the incoming flags into whatever is
// already stored, so a later partial run can never demote a completed stage.
func (db *DB) MergeStatus(status domain.PipelineStatus) (domain.PipelineStatus, error) {
	status.TrackID = domain.NormalizeTrackID(status.TrackID)

	query := `
		INSERT INTO pipeline_status (track_id, mp3, wav, spectrogram, features, updated_at)
		VALUES (:track_id, :mp3, :wav, :spectrogram, :features, CURRENT_TIMESTAMP)
		ON CONFLICT(track_id) DO UPDATE SET
			mp3 = pipeline_status.mp3 OR excluded.mp3,
			wav = pipeline_status.wav OR excluded.wav,
			spectrogram = pipeline_status.spectrogram OR excluded.spectrogram,
			features = pipeline_status.features OR excluded.features,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := db.NamedExec(query, status); err != nil {
		return domain.PipelineStatus{}, fmt.Errorf("failed to merge status: %w", err)
	}

	return db.GetStatus(status.TrackID)
}

// GetStatus returns the persisted status map for a track, or
// domain.ErrNotFound when the track has never been ingested.
func (db *DB) GetStatus(trackID string) (domain.PipelineStatus, error) {
	trackID = domain.NormalizeTrackID(trackID)

	var status domain.PipelineStatus
	err := db.Get(&status, `SELECT track_id, mp3, wav, spectrogram, features FROM pipeline_status WHERE track_id = ?`, trackID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PipelineStatus{}, fmt.Errorf("%w: track %s", domain.ErrNotFound, trackID)
	}
	if err != nil {
		return domain.PipelineStatus{}, fmt.Errorf("failed to get status: %w", err)
	}
	return status, nil
}

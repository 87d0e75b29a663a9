package domain

import (
	"strings"
	"time"

	"github.com/emoteam/emopipe/internal/constants"
)

// ArtifactKind identifies one class of derived artifact attached to a track.
type ArtifactKind string

const (
	KindMP3         ArtifactKind = "mp3"
	KindWAV         ArtifactKind = "wav"
	KindSpectrogram ArtifactKind = "spectrogram"
	KindFeatures    ArtifactKind = "features"
	KindEDA         ArtifactKind = "eda"
)

// Ext returns the file extension stored artifacts of this kind carry.
func (k ArtifactKind) Ext() string {
	switch k {
	case KindMP3:
		return constants.ExtMP3
	case KindWAV:
		return constants.ExtWAV
	case KindSpectrogram:
		return constants.ExtPNG
	case KindFeatures:
		return constants.ExtCSV
	case KindEDA:
		return constants.ExtJSON
	}
	return ""
}

// MIME returns the content type artifacts of this kind are served with.
func (k ArtifactKind) MIME() string {
	switch k {
	case KindMP3:
		return constants.MimeTypeMP3
	case KindWAV:
		return constants.MimeTypeWAV
	case KindSpectrogram:
		return constants.MimeTypePNG
	case KindFeatures:
		return constants.MimeTypeCSV
	case KindEDA:
		return constants.MimeTypeJSON
	}
	return ""
}

// UserScoped reports whether the artifact identity includes a user id.
// Only EDA readings belong to a (track, user) pair.
func (k ArtifactKind) UserScoped() bool {
	return k == KindEDA
}

// NormalizeTrackID lower-cases a track id. Track identity is
// case-insensitive and every lookup goes through this first.
func NormalizeTrackID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Artifact describes one stored object without its payload.
type Artifact struct {
	TrackID string       `json:"track_id"`
	Kind    ArtifactKind `json:"kind"`
	UserID  string       `json:"user_id,omitempty"`
	Name    string       `json:"name"`
	Size    int64        `json:"size"`
}

// Track holds the metadata recorded for an ingested track.
type Track struct {
	ID        int       `db:"id" json:"-"`
	TrackID   string    `db:"track_id" json:"track_id"`
	SourceURL string    `db:"source_url" json:"source_url"`
	Title     string    `db:"title" json:"title,omitempty"`
	Artist    string    `db:"artist" json:"artist,omitempty"`
	Album     string    `db:"album" json:"album,omitempty"`
	Genre     string    `db:"genre" json:"genre,omitempty"`
	Year      string    `db:"year" json:"year,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PipelineStatus is the per-track stage completion record. Flags are
// monotonic: once a stage has succeeded for a track it stays true across
// any number of later ingestion calls.
type PipelineStatus struct {
	TrackID     string `db:"track_id" json:"track_id"`
	MP3         bool   `db:"mp3" json:"mp3"`
	WAV         bool   `db:"wav" json:"wav"`
	Spectrogram bool   `db:"spectrogram" json:"spectrogram"`
	Features    bool   `db:"features" json:"features"`
}

// Merge ORs another status into this one, preserving monotonicity.
func (s *PipelineStatus) Merge(other PipelineStatus) {
	s.MP3 = s.MP3 || other.MP3
	s.WAV = s.WAV || other.WAV
	s.Spectrogram = s.Spectrogram || other.Spectrogram
	s.Features = s.Features || other.Features
}

// Complete reports whether every stage has succeeded.
func (s PipelineStatus) Complete() bool {
	return s.MP3 && s.WAV && s.Spectrogram && s.Features
}

// PredictionResult is the model output for one (track, user) pair.
// Values are intended to land in [-1, 1] but are not clamped.
type PredictionResult struct {
	TrackID string  `json:"track_id"`
	Arousal float64 `json:"arousal"`
	Valence float64 `json:"valence"`
}

// Package pipeline sequences the ingestion stages for one track and keeps
// the per-stage completion record. Stage failures become false flags,
// never errors: partial completion is a valid terminal outcome.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/emoteam/emopipe/internal/blob"
	"github.com/emoteam/emopipe/internal/domain"
	"github.com/emoteam/emopipe/internal/features"
	"github.com/emoteam/emopipe/internal/fetch"
	"github.com/emoteam/emopipe/internal/logger"
	"github.com/emoteam/emopipe/internal/tagging"
	"github.com/emoteam/emopipe/internal/transcode"
)

// Renderer is the spectrogram capability.
type Renderer interface {
	RenderSpectrogram(wavBytes []byte) ([]byte, error)
}

// Index persists status maps and track metadata.
type Index interface {
	MergeStatus(status domain.PipelineStatus) (domain.PipelineStatus, error)
	UpsertTrack(track *domain.Track) error
}

// Orchestrator drives one track through fetch, transcode and the two
// independent feature stages. All collaborators are injected capabilities.
type Orchestrator struct {
	Store      blob.Store
	Index      Index
	Fetcher    fetch.Fetcher
	Transcoder transcode.Transcoder
	Renderer   Renderer
	Extractor  features.Extractor
	Logger     *logger.Logger
}

func NewOrchestrator(store blob.Store, index Index, fetcher fetch.Fetcher,
	transcoder transcode.Transcoder, renderer Renderer, extractor features.Extractor,
	log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Default()
	}
	return &Orchestrator{
		Store:      store,
		Index:      index,
		Fetcher:    fetcher,
		Transcoder: transcoder,
		Renderer:   renderer,
		Extractor:  extractor,
		Logger:     log.WithComponent("pipeline"),
	}
}

// Ingest runs the full pipeline for a track and returns the merged status
// map. Only structural input problems or unattributable faults produce an
// error; every stage-level failure is recorded as a false flag.
func (o *Orchestrator) Ingest(ctx context.Context, trackID, sourceURL string) (status domain.PipelineStatus, err error) {
	trackID = domain.NormalizeTrackID(trackID)
	if trackID == "" {
		return status, domain.InputError("track_id", "cannot be empty")
	}
	if err := fetch.ValidateURL(sourceURL); err != nil {
		return status, err
	}

	defer func() {
		if r := recover(); r != nil {
			o.Logger.Error("Panic in ingestion", "track_id", trackID, "panic", r)
			err = fmt.Errorf("internal fault during ingestion: %v", r)
		}
	}()

	log := o.Logger.WithTrack(trackID)
	status = domain.PipelineStatus{TrackID: trackID}

	if err := o.Store.EnsureNamespace(trackID); err != nil {
		return status, fmt.Errorf("failed to ensure namespace: %w", err)
	}

	mp3Bytes, fetchErr := o.Fetcher.Fetch(ctx, sourceURL)
	if fetchErr != nil {
		// Stage-local: the status map goes back with every flag false.
		o.failStage(trackID, "fetch", "Source fetch failed", fetchErr)
		return o.persist(status)
	}

	status.MP3 = o.putArtifact(log, trackID, domain.KindMP3, mp3Bytes)
	if status.MP3 {
		o.recordMetadata(log, trackID, sourceURL, mp3Bytes)
	}

	wavBytes, encErr := o.Transcoder.Encode(mp3Bytes)
	if encErr != nil {
		// Both downstream stages depend on the waveform; they are
		// skipped, not failed independently.
		o.failStage(trackID, "transcode", "Transcode failed", encErr)
		return o.persist(status)
	}
	status.WAV = o.putArtifact(log, trackID, domain.KindWAV, wavBytes)

	// Spectrogram and descriptor extraction are independent branches; a
	// failure in one never touches the other.
	var wg sync.WaitGroup
	var spectrogramOK, featuresOK bool

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer o.recoverStage(trackID, "spectrogram")
		raster, err := o.Renderer.RenderSpectrogram(wavBytes)
		if err != nil {
			o.failStage(trackID, "spectrogram", "Spectrogram rendering failed", err)
			return
		}
		spectrogramOK = o.putArtifact(log, trackID, domain.KindSpectrogram, raster)
	}()
	go func() {
		defer wg.Done()
		defer o.recoverStage(trackID, "features")
		vec, err := o.Extractor.ExtractDescriptors(ctx, wavBytes)
		if err != nil {
			o.failStage(trackID, "features", "Descriptor extraction failed", err)
			return
		}
		payload, err := vec.EncodeCSV()
		if err != nil {
			o.failStage(trackID, "features", "Descriptor encoding failed", err)
			return
		}
		featuresOK = o.putArtifact(log, trackID, domain.KindFeatures, payload)
	}()
	wg.Wait()

	status.Spectrogram = spectrogramOK
	status.Features = featuresOK

	return o.persist(status)
}

// failStage logs a stage-local failure through the stage-scoped logger.
// The error is wrapped as a StageError and dropped after logging; the
// stage's flag simply stays false.
func (o *Orchestrator) failStage(trackID, stage, msg string, err error) {
	o.Logger.WithStage(trackID, stage).Warn(msg, "error", domain.NewStageError(stage, err))
}

// recoverStage contains a panicking stage goroutine. The stage's flag
// stays false and the sibling branch keeps running.
func (o *Orchestrator) recoverStage(trackID, stage string) {
	if r := recover(); r != nil {
		o.Logger.WithStage(trackID, stage).Error("Panic in stage", "panic", r)
	}
}

// putArtifact stores one artifact and reports stage success. An
// already-present outcome counts as success: the stage's output exists.
func (o *Orchestrator) putArtifact(log *logger.Logger, trackID string, kind domain.ArtifactKind, data []byte) bool {
	outcome, err := o.Store.Put(trackID, kind, "", data)
	if err != nil {
		log.Warn("Artifact write failed", "kind", kind, "error", err)
		return false
	}
	log.Debug("Artifact stored", "kind", kind, "outcome", outcome.String())
	return true
}

// recordMetadata indexes the track row with whatever ID3 tags the source
// carries. Best effort; ingestion proceeds regardless.
func (o *Orchestrator) recordMetadata(log *logger.Logger, trackID, sourceURL string, mp3Bytes []byte) {
	track := &domain.Track{TrackID: trackID, SourceURL: sourceURL}
	tagging.ReadMP3(mp3Bytes, track)
	if err := o.Index.UpsertTrack(track); err != nil {
		log.Warn("Failed to index track metadata", "error", err)
	}
}

// persist merges this run's flags into the stored record, which only ever
// promotes flags to true.
func (o *Orchestrator) persist(status domain.PipelineStatus) (domain.PipelineStatus, error) {
	merged, err := o.Index.MergeStatus(status)
	if err != nil {
		return status, fmt.Errorf("failed to persist status: %w", err)
	}
	return merged, nil
}

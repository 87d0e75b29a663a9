package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/emoteam/emopipe/internal/blob"
	"github.com/emoteam/emopipe/internal/domain"
	"github.com/emoteam/emopipe/internal/features"
	"github.com/emoteam/emopipe/internal/store"
)

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	return f.data, f.err
}

type fakeTranscoder struct {
	data []byte
	err  error
}

func (f *fakeTranscoder) Encode(_ []byte) ([]byte, error) {
	return f.data, f.err
}

type fakeRenderer struct {
	data []byte
	err  error
}

func (f *fakeRenderer) RenderSpectrogram(_ []byte) ([]byte, error) {
	return f.data, f.err
}

type fakeExtractor struct {
	vec *features.FeatureVector
	err error
}

func (f *fakeExtractor) ExtractDescriptors(_ context.Context, _ []byte) (*features.FeatureVector, error) {
	return f.vec, f.err
}

type panicRenderer struct{}

func (panicRenderer) RenderSpectrogram(_ []byte) ([]byte, error) {
	panic("render blew up")
}

// newTestOrchestrator wires a happy-path orchestrator over a real artifact
// store and a real database; individual tests swap in failing fakes.
func newTestOrchestrator(t *testing.T) (*Orchestrator, *blob.FSStore, *store.DB) {
	t.Helper()

	fs, err := blob.NewFSStore(filepath.Join(t.TempDir(), "artifacts"))
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	o := NewOrchestrator(
		fs, db,
		&fakeFetcher{data: []byte("mp3-bytes")},
		&fakeTranscoder{data: []byte("wav-bytes")},
		&fakeRenderer{data: []byte("png-bytes")},
		&fakeExtractor{vec: &features.FeatureVector{Columns: []string{"f0"}, Values: []float64{1.5}}},
		nil,
	)
	return o, fs, db
}

func TestIngestAllStagesSucceed(t *testing.T) {
	o, fs, db := newTestOrchestrator(t)

	status, err := o.Ingest(context.Background(), "Track-A", "http://audio.test/a.mp3")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if !status.Complete() {
		t.Errorf("status = %+v, want all stages complete", status)
	}
	if status.TrackID != "track-a" {
		t.Errorf("TrackID = %q, want normalized %q", status.TrackID, "track-a")
	}

	arts, err := fs.List("track-a")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(arts) != 4 {
		t.Errorf("stored %d artifacts, want 4", len(arts))
	}

	// The merged record is also queryable afterwards.
	persisted, err := db.GetStatus("track-a")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if !persisted.Complete() {
		t.Errorf("persisted status = %+v, want complete", persisted)
	}
}

func TestIngestExtractorFailureIsIsolated(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	o.Extractor = &fakeExtractor{err: errors.New("binary missing")}

	status, err := o.Ingest(context.Background(), "track-b", "http://audio.test/b.mp3")
	if err != nil {
		t.Fatalf("Ingest returned error for a stage failure: %v", err)
	}
	if !status.MP3 || !status.WAV || !status.Spectrogram {
		t.Errorf("upstream and sibling stages regressed: %+v", status)
	}
	if status.Features {
		t.Error("features flag true despite extractor failure")
	}
}

func TestIngestRendererFailureIsIsolated(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	o.Renderer = &fakeRenderer{err: errors.New("no output")}

	status, err := o.Ingest(context.Background(), "track-c", "http://audio.test/c.mp3")
	if err != nil {
		t.Fatalf("Ingest returned error for a stage failure: %v", err)
	}
	if status.Spectrogram {
		t.Error("spectrogram flag true despite renderer failure")
	}
	if !status.Features {
		t.Error("extractor branch regressed with the renderer")
	}
}

func TestIngestTranscodeFailureSkipsDownstream(t *testing.T) {
	o, fs, _ := newTestOrchestrator(t)
	o.Transcoder = &fakeTranscoder{err: errors.New("not an mpeg stream")}

	status, err := o.Ingest(context.Background(), "track-d", "http://audio.test/d.mp3")
	if err != nil {
		t.Fatalf("Ingest returned error for a stage failure: %v", err)
	}
	if !status.MP3 {
		t.Error("mp3 flag false; the source was stored before transcoding")
	}
	if status.WAV || status.Spectrogram || status.Features {
		t.Errorf("downstream flags set despite transcode failure: %+v", status)
	}

	arts, err := fs.List("track-d")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(arts) != 1 {
		t.Errorf("stored %d artifacts, want only the mp3", len(arts))
	}
}

func TestIngestFetchFailureYieldsEmptyStatus(t *testing.T) {
	o, _, db := newTestOrchestrator(t)
	o.Fetcher = &fakeFetcher{err: fmt.Errorf("%w: status 503", domain.ErrUpstreamFetch)}

	status, err := o.Ingest(context.Background(), "track-e", "http://audio.test/e.mp3")
	if err != nil {
		t.Fatalf("Ingest returned error for an upstream failure: %v", err)
	}
	if status.MP3 || status.WAV || status.Spectrogram || status.Features {
		t.Errorf("status = %+v, want all flags false", status)
	}

	// The empty attempt still leaves a queryable record.
	if _, err := db.GetStatus("track-e"); err != nil {
		t.Errorf("no status record after failed fetch: %v", err)
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if _, err := o.Ingest(context.Background(), "  ", "http://audio.test/x.mp3"); !errors.Is(err, domain.ErrInput) {
		t.Errorf("empty track id: err = %v, want ErrInput", err)
	}
	if _, err := o.Ingest(context.Background(), "track-f", "ftp://audio.test/x.mp3"); !errors.Is(err, domain.ErrInput) {
		t.Errorf("bad scheme: err = %v, want ErrInput", err)
	}
	if _, err := o.Ingest(context.Background(), "track-f", "not a url"); !errors.Is(err, domain.ErrInput) {
		t.Errorf("unparseable url: err = %v, want ErrInput", err)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	o, fs, _ := newTestOrchestrator(t)
	ctx := context.Background()

	if _, err := o.Ingest(ctx, "track-g", "http://audio.test/g.mp3"); err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	status, err := o.Ingest(ctx, "track-g", "http://audio.test/g.mp3")
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if !status.Complete() {
		t.Errorf("second run status = %+v, want complete", status)
	}

	arts, err := fs.List("track-g")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(arts) != 4 {
		t.Errorf("second run changed the artifact set: %d entries", len(arts))
	}
}

func TestIngestMergePreservesEarlierProgress(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	// First run completes everything.
	if _, err := o.Ingest(ctx, "track-h", "http://audio.test/h.mp3"); err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}

	// A later, fully failing run must not demote the stored flags.
	o.Fetcher = &fakeFetcher{err: errors.New("gone")}
	status, err := o.Ingest(ctx, "track-h", "http://audio.test/h.mp3")
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if !status.Complete() {
		t.Errorf("merged status = %+v, want earlier progress preserved", status)
	}
}

func TestIngestContainsStagePanic(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	o.Renderer = panicRenderer{}

	status, err := o.Ingest(context.Background(), "track-i", "http://audio.test/i.mp3")
	if err != nil {
		t.Fatalf("Ingest returned error for a panicking stage: %v", err)
	}
	if status.Spectrogram {
		t.Error("spectrogram flag true despite panic")
	}
	if !status.Features {
		t.Error("sibling branch regressed with the panicking stage")
	}
}

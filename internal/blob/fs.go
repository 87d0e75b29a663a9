package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/emoteam/emopipe/internal/constants"
	"github.com/emoteam/emopipe/internal/domain"
)

// FSStore is a filesystem-backed Store. Each track namespace is one
// directory under the root; object creation goes through a temp file and a
// hard link so concurrent writers for the same key race safely.
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at dir, creating it if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact root cannot be empty")
	}
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create artifact root: %w", err)
	}
	return &FSStore{root: dir}, nil
}

func (s *FSStore) namespaceDir(trackID string) string {
	return filepath.Join(s.root, strings.ToLower(Sanitize(trackID)))
}

func (s *FSStore) EnsureNamespace(trackID string) error {
	trackID = domain.NormalizeTrackID(trackID)
	if trackID == "" {
		return domain.InputError("track_id", "cannot be empty")
	}
	// MkdirAll is a no-op when the directory exists.
	return os.MkdirAll(s.namespaceDir(trackID), constants.DirPermissions)
}

func (s *FSStore) Put(trackID string, kind domain.ArtifactKind, userID string, data []byte) (Outcome, error) {
	trackID = domain.NormalizeTrackID(trackID)
	if err := s.EnsureNamespace(trackID); err != nil {
		return Created, err
	}

	final := filepath.Join(s.namespaceDir(trackID), ObjectName(kind, trackID, userID))
	if _, err := os.Stat(final); err == nil {
		return AlreadyPresent, nil
	}

	// Write the payload to a unique temp file first, then link it into
	// place. Link fails with EEXIST when another writer got there first,
	// which is exactly the already-present outcome.
	tmp := final + ".tmp-" + uuid.New().String()
	if err := os.WriteFile(tmp, data, constants.FilePermissions); err != nil {
		return Created, fmt.Errorf("failed to write artifact: %w", err)
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, final); err != nil {
		if os.IsExist(err) {
			return AlreadyPresent, nil
		}
		return Created, fmt.Errorf("failed to commit artifact: %w", err)
	}
	return Created, nil
}

func (s *FSStore) Get(trackID string, kind domain.ArtifactKind, userID string) ([]byte, error) {
	trackID = domain.NormalizeTrackID(trackID)
	path := filepath.Join(s.namespaceDir(trackID), ObjectName(kind, trackID, userID))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, ObjectName(kind, trackID, userID))
		}
		return nil, err
	}
	return data, nil
}

func (s *FSStore) List(trackID string) ([]domain.Artifact, error) {
	trackID = domain.NormalizeTrackID(trackID)
	dir := s.namespaceDir(trackID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: track %s", domain.ErrNotFound, trackID)
		}
		return nil, err
	}

	artifacts := make([]domain.Artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.Contains(entry.Name(), ".tmp-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		kind, userID, ok := parseObjectName(entry.Name(), trackID)
		if !ok {
			continue
		}
		artifacts = append(artifacts, domain.Artifact{
			TrackID: trackID,
			Kind:    kind,
			UserID:  userID,
			Name:    entry.Name(),
			Size:    info.Size(),
		})
	}
	return artifacts, nil
}

// parseObjectName inverts ObjectName for listing.
func parseObjectName(name, trackID string) (domain.ArtifactKind, string, bool) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for _, kind := range []domain.ArtifactKind{
		domain.KindMP3, domain.KindWAV, domain.KindSpectrogram,
		domain.KindFeatures, domain.KindEDA,
	} {
		prefix := string(kind) + "-" + trackID
		if base == prefix && ext == kind.Ext() {
			return kind, "", true
		}
		if kind.UserScoped() && strings.HasPrefix(base, prefix+"-") && ext == kind.Ext() {
			return kind, strings.TrimPrefix(base, prefix+"-"), true
		}
	}
	return "", "", false
}

// Package blob implements the durable artifact store: one namespace per
// track, idempotent keyed writes, first writer wins.
package blob

import (
	"strings"

	"github.com/emoteam/emopipe/internal/constants"
	"github.com/emoteam/emopipe/internal/domain"
)

// Outcome reports what a Put did.
type Outcome int

const (
	// Created means this call wrote the object.
	Created Outcome = iota
	// AlreadyPresent means the object existed; the payload was not touched.
	AlreadyPresent
)

func (o Outcome) String() string {
	if o == AlreadyPresent {
		return "already_present"
	}
	return "created"
}

// Store is the artifact storage capability handed to the orchestrator and
// the inference engine. All operations are safe under concurrent use, for
// the same track and across tracks.
type Store interface {
	// EnsureNamespace creates or reuses the namespace for a track.
	// Never errors when the namespace already exists.
	EnsureNamespace(trackID string) error

	// Put writes an artifact at most once per identity key. A concurrent
	// or repeated write for an existing key returns AlreadyPresent and
	// leaves the stored payload untouched.
	Put(trackID string, kind domain.ArtifactKind, userID string, data []byte) (Outcome, error)

	// Get returns the stored payload, or domain.ErrNotFound.
	Get(trackID string, kind domain.ArtifactKind, userID string) ([]byte, error)

	// List returns descriptors for every artifact in a track namespace.
	List(trackID string) ([]domain.Artifact, error)
}

// ObjectName builds the stored object name for an identity key:
// kind-trackid for track-scoped kinds, kind-trackid-userid for user-scoped
// ones, plus the kind's extension, all lower-cased.
func ObjectName(kind domain.ArtifactKind, trackID, userID string) string {
	name := string(kind) + "-" + trackID
	if kind.UserScoped() && userID != "" {
		name += "-" + userID
	}
	return strings.ToLower(Sanitize(name)) + kind.Ext()
}

// Sanitize strips characters that are invalid in object names.
func Sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(constants.InvalidNameChars, r) {
			return -1
		}
		return r
	}, s)

	return strings.TrimRight(mapped, ". ")
}

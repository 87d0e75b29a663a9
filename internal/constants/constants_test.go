package constants

import (
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	// Test that default values are set correctly
	if DefaultPort != "8080" {
		t.Errorf("Expected DefaultPort to be '8080', got '%s'", DefaultPort)
	}

	if DefaultDBPath != "emopipe.db" {
		t.Errorf("Expected DefaultDBPath to be 'emopipe.db', got '%s'", DefaultDBPath)
	}

	if DefaultArtifactDir != "artifacts" {
		t.Errorf("Expected DefaultArtifactDir to be 'artifacts', got '%s'", DefaultArtifactDir)
	}

	if DefaultFetchLimit != 50*1024*1024 {
		t.Errorf("Expected DefaultFetchLimit to be 50MB, got %d", DefaultFetchLimit)
	}
}

func TestFetchPolicy(t *testing.T) {
	if FetchTimeout != 30*time.Second {
		t.Errorf("Expected FetchTimeout to be 30 seconds, got %v", FetchTimeout)
	}

	if FetchRetries != 1 {
		t.Errorf("Expected FetchRetries to be 1, got %d", FetchRetries)
	}
}

func TestExtensions(t *testing.T) {
	exts := []string{
		ExtMP3,
		ExtWAV,
		ExtPNG,
		ExtCSV,
		ExtJSON,
	}

	for _, e := range exts {
		if e == "" || e[0] != '.' {
			t.Errorf("Extension constant %q should start with a dot", e)
		}
	}
}

func TestEDASampleCount(t *testing.T) {
	if EDASampleCount != 896 {
		t.Errorf("Expected EDASampleCount to be 896, got %d", EDASampleCount)
	}
}

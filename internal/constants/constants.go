// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort        = "8080"
	DefaultDBPath      = "emopipe.db"
	DefaultArtifactDir = "artifacts"
	DefaultParamsPath  = "params.toml"
	DefaultFetchLimit  = 50 * 1024 * 1024 // refuse source downloads above 50MB
)

// Fetch policy: bounded timeout, one retry, then fail.
const (
	FetchTimeout    = 30 * time.Second
	FetchRetries    = 1
	FetchRetryDelay = 2 * time.Second
	MinFetchGap     = 200 * time.Millisecond
)

// Descriptor extraction
const (
	ExtractTimeout = 2 * time.Minute
)

// EDA biosignal
const (
	// EDASampleCount is the fixed length every stored reading is resampled
	// to before it reaches the model.
	EDASampleCount = 896
)

// File extensions per artifact kind
const (
	ExtMP3  = ".mp3"
	ExtWAV  = ".wav"
	ExtPNG  = ".png"
	ExtCSV  = ".csv"
	ExtJSON = ".json"
)

// MIME Types
const (
	MimeTypeMP3  = "audio/mpeg"
	MimeTypeWAV  = "audio/wav"
	MimeTypePNG  = "image/png"
	MimeTypeCSV  = "text/csv"
	MimeTypeJSON = "application/json"
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

// Characters never allowed in blob object names
const InvalidNameChars = "<>:\"/\\|?*"

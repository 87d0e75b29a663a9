package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Params is the processing parameter file, loaded once at startup and
// passed by reference into the extractor and inference engine. It fixes
// everything that must match the training-time preprocessing: the mel
// transform, the descriptor schema files, and the modality composition.
type Params struct {
	Spectrogram SpectrogramParams `toml:"spectrogram"`
	Features    FeatureParams     `toml:"features"`
	Model       ModelParams       `toml:"model"`
}

// SpectrogramParams fix the mel transform. Identical input bytes and
// identical parameters must yield an identical raster.
type SpectrogramParams struct {
	WindowSize int     `toml:"window_size"`
	HopSize    int     `toml:"hop_size"`
	MelBins    int     `toml:"mel_bins"`
	MinFreq    float64 `toml:"min_freq"`
	MaxFreq    float64 `toml:"max_freq"`
}

// FeatureParams locate the external extractor and the precomputed
// normalization vectors exported by the training pipeline.
type FeatureParams struct {
	ExtractorBin    string `toml:"extractor_bin"`
	ExtractorConfig string `toml:"extractor_config"`
	MeanPath        string `toml:"mean_path"`
	StdPath         string `toml:"std_path"`
	SelectedPath    string `toml:"selected_path"`
}

// ModelParams locate the trained weights and fix the modality layout.
// EDAChannels is configurable because recordings may arrive either as one
// combined signal or as separate arousal/valence channels.
type ModelParams struct {
	WeightsPath    string   `toml:"weights_path"`
	EDAChannels    []string `toml:"eda_channels"`
	DefaultEDAUser string   `toml:"default_eda_user"`
}

// LoadParams reads and validates the TOML parameter file.
func LoadParams(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file: %w", err)
	}

	var p Params
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse params file: %w", err)
	}

	p.applyDefaults()
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Params) applyDefaults() {
	if p.Spectrogram.WindowSize == 0 {
		p.Spectrogram.WindowSize = 2048
	}
	if p.Spectrogram.HopSize == 0 {
		p.Spectrogram.HopSize = 512
	}
	if p.Spectrogram.MelBins == 0 {
		p.Spectrogram.MelBins = 128
	}
	if len(p.Model.EDAChannels) == 0 {
		p.Model.EDAChannels = []string{"eda"}
	}
}

func (p *Params) validate() error {
	s := p.Spectrogram
	if s.WindowSize < 16 || s.WindowSize&(s.WindowSize-1) != 0 {
		return fmt.Errorf("spectrogram.window_size must be a power of two >= 16, got %d", s.WindowSize)
	}
	if s.HopSize <= 0 || s.HopSize > s.WindowSize {
		return fmt.Errorf("spectrogram.hop_size must be in (0, window_size], got %d", s.HopSize)
	}
	if s.MaxFreq != 0 && s.MaxFreq <= s.MinFreq {
		return fmt.Errorf("spectrogram.max_freq must exceed min_freq")
	}
	if p.Model.WeightsPath == "" {
		return fmt.Errorf("model.weights_path cannot be empty")
	}
	return nil
}

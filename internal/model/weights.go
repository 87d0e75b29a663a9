package model

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Layer is one dense layer in row-major form, sized Out×In.
type Layer struct {
	In, Out int
	W       []float64 // Out*In, row-major
	B       []float64 // Out
}

func (l *Layer) valid() error {
	if l.In <= 0 || l.Out <= 0 {
		return fmt.Errorf("non-positive layer dims %dx%d", l.Out, l.In)
	}
	if len(l.W) != l.In*l.Out {
		return fmt.Errorf("weight matrix has %d values, expected %d", len(l.W), l.In*l.Out)
	}
	if len(l.B) != l.Out {
		return fmt.Errorf("bias has %d values, expected %d", len(l.B), l.Out)
	}
	return nil
}

// Weights is the trained parameter set, persisted with encoding/gob.
// PoolRows/PoolCols fix the image pooling grid so rasters of any size map
// onto the image branch the same way they did at training time.
type Weights struct {
	PoolRows, PoolCols int
	EDAChannels        int
	FeatureCount       int

	Image   Layer // PoolRows*PoolCols -> hidden
	EDA     Layer // EDAChannels*896 -> hidden
	Feature Layer // FeatureCount -> hidden
	Fusion  Layer // 3*hidden -> hidden
	Arousal Layer // hidden -> 1
	Valence Layer // hidden -> 1
}

// LoadWeights reads and validates a gob weights file.
func LoadWeights(path string) (*Weights, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open weights: %w", err)
	}
	defer f.Close()

	var w Weights
	if err := gob.NewDecoder(f).Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}
	if err := w.validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	return &w, nil
}

// SaveWeights writes a gob weights file. Used by tooling and tests.
func SaveWeights(path string, w *Weights) error {
	if err := w.validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create weights file: %w", err)
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(w)
}

func (w *Weights) validate() error {
	if w.PoolRows <= 0 || w.PoolCols <= 0 {
		return fmt.Errorf("non-positive pooling grid %dx%d", w.PoolRows, w.PoolCols)
	}
	if w.EDAChannels <= 0 {
		return fmt.Errorf("non-positive eda channel count %d", w.EDAChannels)
	}
	if w.FeatureCount <= 0 {
		return fmt.Errorf("non-positive feature count %d", w.FeatureCount)
	}

	for name, l := range map[string]Layer{
		"image": w.Image, "eda": w.EDA, "feature": w.Feature,
		"fusion": w.Fusion, "arousal": w.Arousal, "valence": w.Valence,
	} {
		if err := l.valid(); err != nil {
			return fmt.Errorf("layer %s: %w", name, err)
		}
	}

	hidden := w.Image.Out
	if w.EDA.Out != hidden || w.Feature.Out != hidden {
		return fmt.Errorf("branch widths disagree")
	}
	if w.Image.In != w.PoolRows*w.PoolCols {
		return fmt.Errorf("image branch input %d does not match pooling grid", w.Image.In)
	}
	if w.Feature.In != w.FeatureCount {
		return fmt.Errorf("feature branch input %d does not match feature count", w.Feature.In)
	}
	if w.Fusion.In != 3*hidden {
		return fmt.Errorf("fusion input %d, expected %d", w.Fusion.In, 3*hidden)
	}
	if w.Arousal.In != w.Fusion.Out || w.Valence.In != w.Fusion.Out {
		return fmt.Errorf("head inputs do not match fusion output")
	}
	if w.Arousal.Out != 1 || w.Valence.Out != 1 {
		return fmt.Errorf("heads must be scalar")
	}
	return nil
}

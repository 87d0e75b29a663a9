package model

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/emoteam/emopipe/internal/constants"
	"github.com/emoteam/emopipe/internal/domain"
)

// tinyWeights builds a minimal valid parameter set with deterministic
// values so forward-pass results are hand-checkable.
func tinyWeights() *Weights {
	layer := func(in, out int, scale float64) Layer {
		w := make([]float64, in*out)
		for i := range w {
			w[i] = scale / float64(in)
		}
		b := make([]float64, out)
		return Layer{In: in, Out: out, W: w, B: b}
	}

	const hidden = 4
	return &Weights{
		PoolRows:     2,
		PoolCols:     2,
		EDAChannels:  1,
		FeatureCount: 3,
		Image:        layer(4, hidden, 1),
		EDA:          layer(constants.EDASampleCount, hidden, 1),
		Feature:      layer(3, hidden, 1),
		Fusion:       layer(3*hidden, hidden, 1),
		Arousal:      layer(hidden, 1, 1),
		Valence:      layer(hidden, 1, -1),
	}
}

func TestWeightsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.gob")
	if err := SaveWeights(path, tinyWeights()); err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}

	w, err := LoadWeights(path)
	if err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}
	if w.PoolRows != 2 || w.FeatureCount != 3 {
		t.Errorf("loaded metadata wrong: %+v", w)
	}
	if len(w.EDA.W) != constants.EDASampleCount*4 {
		t.Errorf("eda layer has %d weights", len(w.EDA.W))
	}
}

func TestWeightsValidation(t *testing.T) {
	w := tinyWeights()
	w.Fusion.In = 7 // breaks the branch concat width
	if err := SaveWeights(filepath.Join(t.TempDir(), "bad.gob"), w); err == nil {
		t.Error("expected validation error for inconsistent fusion input")
	}
}

func TestLoadWeightsMissingFile(t *testing.T) {
	if _, err := LoadWeights(filepath.Join(t.TempDir(), "absent.gob")); err == nil {
		t.Error("expected error for missing weights file")
	}
}

func TestNetworkPredict(t *testing.T) {
	net := NewNetwork(tinyWeights())

	img := mat.NewDense(8, 8, nil)
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			img.Set(r, c, 0.5)
		}
	}
	eda := make([]float64, constants.EDASampleCount)
	for i := range eda {
		eda[i] = 0.25
	}

	arousal, valence, err := net.Predict(Input{
		Image:    img,
		EDA:      eda,
		Features: []float64{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	// The valence head is the arousal head negated in tinyWeights.
	if math.Abs(arousal+valence) > 1e-9 {
		t.Errorf("arousal %v and valence %v are not mirrored", arousal, valence)
	}
	if arousal <= 0 {
		t.Errorf("arousal = %v, want positive for positive inputs", arousal)
	}

	// Same input, same output.
	a2, v2, err := net.Predict(Input{Image: img, EDA: eda, Features: []float64{1, 2, 3}})
	if err != nil {
		t.Fatalf("second Predict failed: %v", err)
	}
	if a2 != arousal || v2 != valence {
		t.Error("forward pass is not deterministic")
	}
}

func TestNetworkPredictRejectsBadShapes(t *testing.T) {
	net := NewNetwork(tinyWeights())
	img := mat.NewDense(4, 4, nil)

	if _, _, err := net.Predict(Input{Image: img, EDA: make([]float64, 10), Features: []float64{1, 2, 3}}); err == nil {
		t.Error("expected error for wrong eda length")
	}
	if _, _, err := net.Predict(Input{Image: img, EDA: make([]float64, constants.EDASampleCount), Features: []float64{1}}); err == nil {
		t.Error("expected error for wrong feature length")
	}
	if _, _, err := net.Predict(Input{EDA: make([]float64, constants.EDASampleCount), Features: []float64{1, 2, 3}}); err == nil {
		t.Error("expected error for nil image")
	}
}

func TestPoolImage(t *testing.T) {
	// 4x4 image with distinct quadrant values pools exactly onto 2x2.
	img := mat.NewDense(4, 4, nil)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			v := 0.0
			if r >= 2 {
				v += 2
			}
			if c >= 2 {
				v++
			}
			img.Set(r, c, v)
		}
	}

	got := poolImage(img, 2, 2)
	want := []float64{0, 1, 2, 3}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("pooled[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoaderRetriesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.gob")
	loader := NewLoader(path)

	if _, err := loader.Get(); !errors.Is(err, domain.ErrModelLoad) {
		t.Fatalf("Get with absent weights = %v, want ErrModelLoad", err)
	}

	// The weights show up; the next request succeeds.
	if err := SaveWeights(path, tinyWeights()); err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}
	first, err := loader.Get()
	if err != nil {
		t.Fatalf("Get after weights appeared failed: %v", err)
	}

	second, err := loader.Get()
	if err != nil {
		t.Fatalf("repeated Get failed: %v", err)
	}
	if first != second {
		t.Error("loader handed out different instances")
	}
}

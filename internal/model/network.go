// Package model implements the multimodal valence/arousal regression
// network: three modality branches fused into two scalar heads.
package model

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/emoteam/emopipe/internal/constants"
	"github.com/emoteam/emopipe/internal/domain"
)

// Input is one assembled batch-of-one sample.
type Input struct {
	// Image is the grayscale raster, values in [0, 1], any dimensions.
	Image *mat.Dense
	// EDA is the concatenated biosignal channels, 896 samples each.
	EDA []float64
	// Features is the selected descriptor row.
	Features []float64
}

// Network is an immutable loaded model. It holds no mutable state after
// construction, so concurrent Predict calls share one instance safely.
type Network struct {
	w       *Weights
	image   *mat.Dense
	eda     *mat.Dense
	feature *mat.Dense
	fusion  *mat.Dense
	arousal *mat.Dense
	valence *mat.Dense
}

// NewNetwork builds a network from validated weights.
func NewNetwork(w *Weights) *Network {
	dense := func(l Layer) *mat.Dense {
		return mat.NewDense(l.Out, l.In, l.W)
	}
	return &Network{
		w:       w,
		image:   dense(w.Image),
		eda:     dense(w.EDA),
		feature: dense(w.Feature),
		fusion:  dense(w.Fusion),
		arousal: dense(w.Arousal),
		valence: dense(w.Valence),
	}
}

// Predict runs the forward pass and returns the two unclamped outputs.
func (n *Network) Predict(in Input) (arousal, valence float64, err error) {
	if in.Image == nil {
		return 0, 0, fmt.Errorf("nil image tensor")
	}
	if len(in.EDA) != n.w.EDAChannels*constants.EDASampleCount {
		return 0, 0, fmt.Errorf("eda tensor has %d samples, expected %d",
			len(in.EDA), n.w.EDAChannels*constants.EDASampleCount)
	}
	if len(in.Features) != n.w.FeatureCount {
		return 0, 0, fmt.Errorf("feature tensor has %d values, expected %d",
			len(in.Features), n.w.FeatureCount)
	}

	imgVec := poolImage(in.Image, n.w.PoolRows, n.w.PoolCols)

	hImg := forward(n.image, n.w.Image.B, imgVec, true)
	hEDA := forward(n.eda, n.w.EDA.B, in.EDA, true)
	hFeat := forward(n.feature, n.w.Feature.B, in.Features, true)

	fused := make([]float64, 0, len(hImg)+len(hEDA)+len(hFeat))
	fused = append(fused, hImg...)
	fused = append(fused, hEDA...)
	fused = append(fused, hFeat...)

	h := forward(n.fusion, n.w.Fusion.B, fused, true)
	return forward(n.arousal, n.w.Arousal.B, h, false)[0],
		forward(n.valence, n.w.Valence.B, h, false)[0],
		nil
}

// forward computes act(W*x + b).
func forward(w *mat.Dense, bias, x []float64, relu bool) []float64 {
	rows, _ := w.Dims()
	out := mat.NewVecDense(rows, nil)
	out.MulVec(w, mat.NewVecDense(len(x), x))

	result := make([]float64, rows)
	for i := range result {
		v := out.AtVec(i) + bias[i]
		if relu && v < 0 {
			v = 0
		}
		result[i] = v
	}
	return result
}

// poolImage mean-pools an arbitrary raster down to a fixed grid and
// flattens it row-major.
func poolImage(img *mat.Dense, poolRows, poolCols int) []float64 {
	rows, cols := img.Dims()
	out := make([]float64, poolRows*poolCols)

	for pr := 0; pr < poolRows; pr++ {
		r0 := pr * rows / poolRows
		r1 := (pr + 1) * rows / poolRows
		if r1 <= r0 {
			r1 = r0 + 1
		}
		for pc := 0; pc < poolCols; pc++ {
			c0 := pc * cols / poolCols
			c1 := (pc + 1) * cols / poolCols
			if c1 <= c0 {
				c1 = c0 + 1
			}
			sum := 0.0
			for r := r0; r < r1 && r < rows; r++ {
				for c := c0; c < c1 && c < cols; c++ {
					sum += img.At(r, c)
				}
			}
			out[pr*poolCols+pc] = sum / float64((r1-r0)*(c1-c0))
		}
	}
	return out
}

// Loader lazily loads the network once per process and hands the same
// read-only instance to every caller. A failed load is returned to the
// current caller only; the next caller retries.
type Loader struct {
	path string

	mu  sync.Mutex
	net *Network
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Get returns the shared network, loading it on first use.
func (l *Loader) Get() (*Network, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.net != nil {
		return l.net, nil
	}

	w, err := LoadWeights(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelLoad, err)
	}
	l.net = NewNetwork(w)
	return l.net, nil
}

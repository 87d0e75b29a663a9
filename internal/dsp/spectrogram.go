// Package dsp renders log-scaled mel spectrograms of decoded waveforms as
// bare grayscale rasters, no axes or chrome.
package dsp

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/emoteam/emopipe/internal/config"
	"github.com/emoteam/emopipe/internal/domain"
	"github.com/emoteam/emopipe/internal/transcode"
)

const topDB = 80.0

// rasterMu serializes rasterization. The rendering primitive keeps global
// state and is not reentrant; every render in the process, whatever the
// track, takes this lock.
var rasterMu sync.Mutex

// Renderer turns WAV bytes into a spectrogram raster. Parameters are fixed
// at construction so identical input yields an identical image.
type Renderer struct {
	params config.SpectrogramParams
}

func NewRenderer(params config.SpectrogramParams) *Renderer {
	return &Renderer{params: params}
}

// RenderSpectrogram decodes the waveform, computes the log-mel power
// matrix and rasterizes it to a single-channel PNG.
func (r *Renderer) RenderSpectrogram(wavBytes []byte) ([]byte, error) {
	mono, sampleRate, err := transcode.DecodeWAV(wavBytes)
	if err != nil {
		return nil, err
	}
	if len(mono) < r.params.WindowSize {
		return nil, fmt.Errorf("%w: waveform shorter than one window", domain.ErrDecode)
	}

	melDB := r.logMel(mono, sampleRate)

	rasterMu.Lock()
	defer rasterMu.Unlock()
	return rasterize(melDB)
}

// logMel computes the log-scaled mel power spectrogram, mel bins by frames.
func (r *Renderer) logMel(mono []float64, sampleRate int) [][]float64 {
	p := r.params
	window := hannWindow(p.WindowSize)
	fft := fourier.NewFFT(p.WindowSize)
	bank := melFilterbank(p.MelBins, p.WindowSize, sampleRate, p.MinFreq, p.MaxFreq)

	frames := 1 + (len(mono)-p.WindowSize)/p.HopSize
	fftBins := p.WindowSize/2 + 1

	mel := make([][]float64, p.MelBins)
	for m := range mel {
		mel[m] = make([]float64, frames)
	}

	frame := make([]float64, p.WindowSize)
	coeffs := make([]complex128, fftBins)
	power := make([]float64, fftBins)

	for t := 0; t < frames; t++ {
		offset := t * p.HopSize
		for i := 0; i < p.WindowSize; i++ {
			frame[i] = mono[offset+i] * window[i]
		}
		fft.Coefficients(coeffs, frame)
		for i, c := range coeffs {
			re, im := real(c), imag(c)
			power[i] = re*re + im*im
		}
		for m, filter := range bank {
			sum := 0.0
			for i, w := range filter {
				if w != 0 {
					sum += w * power[i]
				}
			}
			mel[m][t] = sum
		}
	}

	return powerToDB(mel, topDB)
}

// rasterize maps the dB matrix onto an 8-bit grayscale image. Row zero is
// the highest mel band so the image reads like the training plots.
func rasterize(melDB [][]float64) ([]byte, error) {
	bins := len(melDB)
	if bins == 0 || len(melDB[0]) == 0 {
		return nil, fmt.Errorf("%w: empty spectrogram", domain.ErrDecode)
	}
	frames := len(melDB[0])

	img := image.NewGray(image.Rect(0, 0, frames, bins))
	for m := 0; m < bins; m++ {
		row := bins - 1 - m
		for t := 0; t < frames; t++ {
			v := (melDB[m][t] + topDB) / topDB // [-topDB, 0] -> [0, 1]
			img.Pix[row*img.Stride+t] = uint8(v*255.0 + 0.5)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode raster: %w", err)
	}
	return buf.Bytes(), nil
}

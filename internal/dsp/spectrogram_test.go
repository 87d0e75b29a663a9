package dsp

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/emoteam/emopipe/internal/config"
)

func testParams() config.SpectrogramParams {
	return config.SpectrogramParams{
		WindowSize: 1024,
		HopSize:    256,
		MelBins:    64,
	}
}

func sineWAV(t *testing.T, sampleRate int, freq float64, seconds float64) []byte {
	t.Helper()

	n := int(float64(sampleRate) * seconds)
	data := make([]int, n)
	for i := range data {
		data[i] = int(12000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}

	path := filepath.Join(t.TempDir(), "sine.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close encoder: %v", err)
	}
	f.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}
	return raw
}

func TestHannWindow(t *testing.T) {
	w := hannWindow(1024)
	if w[0] > 1e-9 || w[len(w)-1] > 1e-9 {
		t.Errorf("window endpoints = %v, %v, want 0", w[0], w[len(w)-1])
	}
	mid := w[len(w)/2]
	if math.Abs(mid-1.0) > 1e-4 {
		t.Errorf("window center = %v, want ~1", mid)
	}
}

func TestMelFilterbankShape(t *testing.T) {
	bank := melFilterbank(64, 1024, 22050, 0, 0)
	if len(bank) != 64 {
		t.Fatalf("bank has %d filters, want 64", len(bank))
	}
	for m, filter := range bank {
		if len(filter) != 513 {
			t.Fatalf("filter %d has %d bins, want 513", m, len(filter))
		}
		sum := 0.0
		for _, v := range filter {
			if v < 0 || v > 1.0+1e-9 {
				t.Fatalf("filter %d weight %v outside [0, 1]", m, v)
			}
			sum += v
		}
		if sum == 0 {
			t.Errorf("filter %d is all zero", m)
		}
	}
}

func TestPowerToDB(t *testing.T) {
	db := powerToDB([][]float64{{1.0, 0.1, 0.0}}, 80)

	if db[0][0] != 0 {
		t.Errorf("max bin = %v, want 0 dB", db[0][0])
	}
	if math.Abs(db[0][1]-(-10)) > 1e-9 {
		t.Errorf("0.1 power = %v, want -10 dB", db[0][1])
	}
	if db[0][2] != -80 {
		t.Errorf("zero power = %v, want floored at -80 dB", db[0][2])
	}
}

func TestRenderSpectrogramDeterministic(t *testing.T) {
	r := NewRenderer(testParams())
	wavBytes := sineWAV(t, 22050, 440, 0.5)

	first, err := r.RenderSpectrogram(wavBytes)
	if err != nil {
		t.Fatalf("RenderSpectrogram failed: %v", err)
	}
	second, err := r.RenderSpectrogram(wavBytes)
	if err != nil {
		t.Fatalf("second RenderSpectrogram failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical input produced different rasters")
	}
}

func TestRenderSpectrogramRaster(t *testing.T) {
	params := testParams()
	r := NewRenderer(params)
	wavBytes := sineWAV(t, 22050, 440, 0.5)

	raster, err := r.RenderSpectrogram(wavBytes)
	if err != nil {
		t.Fatalf("RenderSpectrogram failed: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(raster))
	if err != nil {
		t.Fatalf("output is not a decodable PNG: %v", err)
	}
	if _, ok := img.(*image.Gray); !ok {
		t.Errorf("raster type = %T, want single-channel *image.Gray", img)
	}

	bounds := img.Bounds()
	if bounds.Dy() != params.MelBins {
		t.Errorf("raster height = %d, want %d mel bins", bounds.Dy(), params.MelBins)
	}
	waveSamples := 22050 / 2
	wantFrames := 1 + (waveSamples-params.WindowSize)/params.HopSize
	if bounds.Dx() != wantFrames {
		t.Errorf("raster width = %d, want %d frames", bounds.Dx(), wantFrames)
	}
}

func TestRenderSpectrogramTooShort(t *testing.T) {
	r := NewRenderer(testParams())
	wavBytes := sineWAV(t, 22050, 440, 0.01) // fewer samples than one window

	if _, err := r.RenderSpectrogram(wavBytes); err == nil {
		t.Error("expected error for waveform shorter than one window")
	}
}

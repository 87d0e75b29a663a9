// Package transcode converts source MP3 audio into RIFF/WAVE for the
// downstream DSP and descriptor stages.
package transcode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/emoteam/emopipe/internal/domain"
)

// Transcoder is the audio conversion capability handed to the orchestrator.
type Transcoder interface {
	Encode(mp3Bytes []byte) ([]byte, error)
}

// WAVTranscoder decodes MP3 to 16-bit stereo PCM and re-encodes it as WAV.
// Output is deterministic for identical input bytes.
type WAVTranscoder struct {
	// TempDir holds the scratch file the WAV encoder needs a seekable
	// target for. Empty means the OS default.
	TempDir string
}

func NewWAVTranscoder(tempDir string) *WAVTranscoder {
	return &WAVTranscoder{TempDir: tempDir}
}

// Encode converts MP3 bytes to WAV bytes. Malformed input is a decode
// error local to the transcode stage.
func (t *WAVTranscoder) Encode(mp3Bytes []byte) ([]byte, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(mp3Bytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}

	// go-mp3 always emits 16-bit little-endian stereo PCM.
	var pcm bytes.Buffer
	if _, err := pcm.ReadFrom(dec); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}

	raw := pcm.Bytes()
	samples := make([]int, len(raw)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 2,
			SampleRate:  dec.SampleRate(),
		},
		Data:           samples,
		SourceBitDepth: 16,
	}

	return encodeWAV(t.TempDir, buf)
}

// encodeWAV writes the buffer through go-audio's encoder, which needs a
// seekable target, so it goes through a scratch file.
func encodeWAV(tempDir string, buf *audio.IntBuffer) ([]byte, error) {
	f, err := os.CreateTemp(tempDir, "transcode-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	enc := wav.NewEncoder(f, buf.Format.SampleRate, buf.SourceBitDepth, buf.Format.NumChannels, 1)
	if err := enc.Write(buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to finalize wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	return os.ReadFile(filepath.Clean(path))
}

// DecodeWAV parses WAV bytes into a mono float64 waveform in [-1, 1] plus
// its sample rate. Multi-channel input is averaged down to one channel.
func DecodeWAV(wavBytes []byte) ([]float64, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(wavBytes))
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: not a valid wav file", domain.ErrDecode)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, 0, fmt.Errorf("%w: no channels", domain.ErrDecode)
	}

	scale := 1.0
	if dec.BitDepth > 0 {
		scale = float64(int(1) << (dec.BitDepth - 1))
	}

	frames := len(buf.Data) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		mono[i] = sum / float64(channels) / scale
	}
	return mono, buf.Format.SampleRate, nil
}

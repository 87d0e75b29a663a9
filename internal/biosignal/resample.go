// Package biosignal handles EDA time series: payload codec and the fixed
// 896-sample resampling every reading goes through before inference.
package biosignal

import (
	"encoding/json"
	"fmt"

	"github.com/emoteam/emopipe/internal/constants"
	"github.com/emoteam/emopipe/internal/domain"
)

// Resample maps a raw reading to exactly 896 samples by piecewise-linear
// interpolation at 896 equally spaced positions across [0, len(raw)-1].
// A reading already at 896 samples is returned unchanged.
func Resample(raw []float64) ([]float64, error) {
	n := len(raw)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty biosignal", domain.ErrInput)
	}
	if n == constants.EDASampleCount {
		return raw, nil
	}
	if n == 1 {
		out := make([]float64, constants.EDASampleCount)
		for i := range out {
			out[i] = raw[0]
		}
		return out, nil
	}

	out := make([]float64, constants.EDASampleCount)
	step := float64(n-1) / float64(constants.EDASampleCount-1)
	for i := range out {
		pos := float64(i) * step
		lo := int(pos)
		if lo >= n-1 {
			out[i] = raw[n-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = raw[lo]*(1-frac) + raw[lo+1]*frac
	}
	return out, nil
}

// DecodePayload parses a stored EDA artifact, a JSON array of floats.
func DecodePayload(data []byte) ([]float64, error) {
	var samples []float64
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("%w: eda payload: %v", domain.ErrInput, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: eda payload: empty", domain.ErrInput)
	}
	return samples, nil
}

// EncodePayload serializes a raw reading for storage.
func EncodePayload(samples []float64) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: eda payload: empty", domain.ErrInput)
	}
	return json.Marshal(samples)
}

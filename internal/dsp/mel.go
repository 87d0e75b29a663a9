package dsp

import "math"

// hzToMel converts frequency to the mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts a mel value back to frequency.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilterbank builds a bank of triangular filters mapping fftBins power
// bins onto melBins mel bands between minFreq and maxFreq.
func melFilterbank(melBins, fftSize, sampleRate int, minFreq, maxFreq float64) [][]float64 {
	if maxFreq <= 0 || maxFreq > float64(sampleRate)/2 {
		maxFreq = float64(sampleRate) / 2
	}

	fftBins := fftSize/2 + 1
	melMin := hzToMel(minFreq)
	melMax := hzToMel(maxFreq)

	// melBins+2 evenly spaced mel points; each filter spans three of them.
	points := make([]float64, melBins+2)
	for i := range points {
		mel := melMin + (melMax-melMin)*float64(i)/float64(melBins+1)
		points[i] = melToHz(mel)
	}

	binFreq := func(bin int) float64 {
		return float64(bin) * float64(sampleRate) / float64(fftSize)
	}

	bank := make([][]float64, melBins)
	for m := 0; m < melBins; m++ {
		filter := make([]float64, fftBins)
		lower, center, upper := points[m], points[m+1], points[m+2]
		for bin := 0; bin < fftBins; bin++ {
			f := binFreq(bin)
			switch {
			case f <= lower || f >= upper:
				// outside the triangle
			case f <= center:
				if center > lower {
					filter[bin] = (f - lower) / (center - lower)
				}
			default:
				if upper > center {
					filter[bin] = (upper - f) / (upper - center)
				}
			}
		}
		bank[m] = filter
	}
	return bank
}

// hannWindow returns an n-point Hann window.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// powerToDB log-scales a power matrix relative to its maximum, floored at
// -topDB, matching the training-time preprocessing.
func powerToDB(power [][]float64, topDB float64) [][]float64 {
	ref := 0.0
	for _, row := range power {
		for _, v := range row {
			if v > ref {
				ref = v
			}
		}
	}
	if ref <= 0 {
		ref = 1e-10
	}

	out := make([][]float64, len(power))
	for i, row := range power {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			if v < 1e-10 {
				v = 1e-10
			}
			db := 10.0 * math.Log10(v/ref)
			if db < -topDB {
				db = -topDB
			}
			out[i][j] = db
		}
	}
	return out
}

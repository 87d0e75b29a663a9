// Package features runs the external acoustic-descriptor extractor and
// normalizes its output into the fixed feature vector the model expects.
package features

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/emoteam/emopipe/internal/config"
	"github.com/emoteam/emopipe/internal/constants"
	"github.com/emoteam/emopipe/internal/domain"
)

// Non-descriptor columns the extractor emits that never reach the model.
var droppedColumns = map[string]bool{
	"name":  true,
	"class": true,
}

// FeatureVector is one normalized, column-reduced descriptor row. Column
// order is fixed by configuration, never inferred per call.
type FeatureVector struct {
	Columns []string
	Values  []float64
}

// Extractor is the descriptor capability handed to the orchestrator.
type Extractor interface {
	ExtractDescriptors(ctx context.Context, wavBytes []byte) (*FeatureVector, error)
}

// SMILExtractor shells out to the openSMILE SMILExtract binary with a
// fixed descriptor config, then z-scores and reduces the resulting row.
type SMILExtractor struct {
	bin     string
	config  string
	stats   *Stats
	tempDir string
}

func NewSMILExtractor(params config.FeatureParams, stats *Stats, tempDir string) *SMILExtractor {
	return &SMILExtractor{
		bin:     params.ExtractorBin,
		config:  params.ExtractorConfig,
		stats:   stats,
		tempDir: tempDir,
	}
}

// ExtractDescriptors runs the external extractor on the waveform and
// returns the normalized selected-column row. Failures are extraction
// errors, local to the descriptor stage.
func (e *SMILExtractor) ExtractDescriptors(ctx context.Context, wavBytes []byte) (*FeatureVector, error) {
	scratch, err := os.MkdirTemp(e.tempDir, "descriptors-")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	defer os.RemoveAll(scratch)

	wavPath := filepath.Join(scratch, "input.wav")
	arffPath := filepath.Join(scratch, "output.arff")
	if err := os.WriteFile(wavPath, wavBytes, constants.FilePermissions); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.ExtractTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.bin,
		"-C", e.config,
		"-I", wavPath,
		"-O", arffPath,
		"-instname", wavPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: extractor process: %v: %s", domain.ErrExtraction, err, stderr.String())
	}

	row, err := parseARFF(arffPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	return e.normalize(row)
}

// normalize z-scores the raw row against the configured mean/std vectors
// and reduces it to the configured column subset, in order.
func (e *SMILExtractor) normalize(row *arffRow) (*FeatureVector, error) {
	vec := &FeatureVector{
		Columns: make([]string, len(e.stats.Selected)),
		Values:  make([]float64, len(e.stats.Selected)),
	}
	copy(vec.Columns, e.stats.Selected)

	for i, col := range e.stats.Selected {
		if droppedColumns[col] {
			return nil, fmt.Errorf("%w: non-feature column %q selected", domain.ErrExtraction, col)
		}
		raw, err := row.float(col)
		if err != nil {
			return nil, fmt.Errorf("%w: schema mismatch: %v", domain.ErrExtraction, err)
		}
		std := e.stats.Std[col]
		if std == 0 {
			return nil, fmt.Errorf("%w: zero std for column %q", domain.ErrExtraction, col)
		}
		vec.Values[i] = (raw - e.stats.Mean[col]) / std
	}
	return vec, nil
}

// EncodeCSV serializes the vector as a header row plus one value row, the
// artifact payload format.
func (v *FeatureVector) EncodeCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(v.Columns); err != nil {
		return nil, err
	}
	record := make([]string, len(v.Values))
	for i, val := range v.Values {
		record[i] = strconv.FormatFloat(val, 'g', -1, 64)
	}
	if err := w.Write(record); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// DecodeCSV parses a stored features artifact back into a vector.
func DecodeCSV(data []byte) (*FeatureVector, error) {
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) != 2 {
		return nil, fmt.Errorf("expected header and one row, got %d records", len(records))
	}
	if len(records[0]) != len(records[1]) {
		return nil, fmt.Errorf("header/value length mismatch")
	}

	vec := &FeatureVector{
		Columns: records[0],
		Values:  make([]float64, len(records[1])),
	}
	for i, raw := range records[1] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", records[0][i], err)
		}
		vec.Values[i] = v
	}
	return vec, nil
}

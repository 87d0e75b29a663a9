package features

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Stats holds the precomputed per-descriptor normalization vectors and the
// selected column list exported by the training pipeline. Loaded once at
// startup and passed by reference into the extractor.
type Stats struct {
	Mean     map[string]float64
	Std      map[string]float64
	Selected []string
}

// LoadStats reads the mean/std vectors and the selected-column list. The
// vector files are two-column CSVs (name,value); the selected file is one
// column name per row.
func LoadStats(meanPath, stdPath, selectedPath string) (*Stats, error) {
	mean, err := loadVector(meanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load mean vector: %w", err)
	}
	std, err := loadVector(stdPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load std vector: %w", err)
	}
	selected, err := loadColumnList(selectedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load selected columns: %w", err)
	}

	for _, col := range selected {
		if _, ok := mean[col]; !ok {
			return nil, fmt.Errorf("selected column %q has no mean", col)
		}
		if _, ok := std[col]; !ok {
			return nil, fmt.Errorf("selected column %q has no std", col)
		}
	}

	return &Stats{Mean: mean, Std: std, Selected: selected}, nil
}

func loadVector(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}

	vec := make(map[string]float64, len(records))
	for i, rec := range records {
		if len(rec) != 2 {
			return nil, fmt.Errorf("row %d: expected name,value", i+1)
		}
		v, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		vec[rec[0]] = v
	}
	return vec, nil
}

func loadColumnList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}

	cols := make([]string, 0, len(records))
	for _, rec := range records {
		for _, name := range rec {
			if name != "" {
				cols = append(cols, name)
			}
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns listed")
	}
	return cols, nil
}

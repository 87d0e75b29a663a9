package features

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// arffRow is one parsed data row keyed by attribute name, attribute order
// preserved separately.
type arffRow struct {
	names  []string
	values map[string]string
}

// parseARFF reads a single-row ARFF file as produced by the external
// extractor: @attribute declarations, @data, one CSV record.
func parseARFF(path string) (*arffRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	var dataLine string
	inData := false

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "@attribute"):
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return nil, fmt.Errorf("malformed attribute line: %s", line)
			}
			names = append(names, strings.Trim(fields[1], "'"))
		case strings.HasPrefix(lower, "@data"):
			inData = true
		case inData && dataLine == "":
			dataLine = line
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no attributes declared")
	}
	if dataLine == "" {
		return nil, fmt.Errorf("no data row")
	}

	fields := splitARFFRecord(dataLine)
	if len(fields) != len(names) {
		return nil, fmt.Errorf("data row has %d fields, expected %d", len(fields), len(names))
	}

	values := make(map[string]string, len(names))
	for i, name := range names {
		values[name] = fields[i]
	}
	return &arffRow{names: names, values: values}, nil
}

// splitARFFRecord splits a data line on commas, honoring single quotes
// around the instance name field.
func splitARFFRecord(line string) []string {
	var fields []string
	var cur strings.Builder
	quoted := false
	for _, r := range line {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == ',' && !quoted:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, strings.TrimSpace(cur.String()))
	return fields
}

// float returns the named attribute as a float.
func (r *arffRow) float(name string) (float64, error) {
	raw, ok := r.values[name]
	if !ok {
		return 0, fmt.Errorf("attribute %q missing", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %q: %w", name, err)
	}
	return v, nil
}

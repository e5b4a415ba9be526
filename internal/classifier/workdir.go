package classifier

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/andresmejia3/facecheck/internal/types"
)

// Work directory layout shared with batch representation:
//
//	labels.csv  <class index>,<image path>   (label = name of the image's parent dir)
//	reps.csv    one comma separated rep per line, same order as labels.csv
const (
	LabelsFile = "labels.csv"
	RepsFile   = "reps.csv"
)

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// LoadWorkDir reads labelled reps from dir.
func LoadWorkDir(dir string) ([]types.Sample, error) {
	labelRows, err := readCSV(filepath.Join(dir, LabelsFile))
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	repRows, err := readCSV(filepath.Join(dir, RepsFile))
	if err != nil {
		return nil, fmt.Errorf("read reps: %w", err)
	}
	if len(labelRows) != len(repRows) {
		return nil, fmt.Errorf("%d labels but %d reps", len(labelRows), len(repRows))
	}

	samples := make([]types.Sample, 0, len(labelRows))
	for i, row := range labelRows {
		if len(row) < 2 {
			return nil, fmt.Errorf("labels.csv line %d: want 2 fields, got %d", i+1, len(row))
		}
		path := row[1]
		rep := make(types.Rep, len(repRows[i]))
		for j, field := range repRows[i] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("reps.csv line %d: %w", i+1, err)
			}
			rep[j] = v
		}
		samples = append(samples, types.Sample{
			Label: filepath.Base(filepath.Dir(path)),
			Path:  path,
			Rep:   rep,
		})
	}
	return samples, nil
}

// WriteWorkDir writes samples in the layout LoadWorkDir reads. Class indices start at 1.
func WriteWorkDir(dir string, samples []types.Sample) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	classes := map[string]int{}
	var labels, reps [][]string
	for _, s := range samples {
		idx, ok := classes[s.Label]
		if !ok {
			idx = len(classes) + 1
			classes[s.Label] = idx
		}
		labels = append(labels, []string{strconv.Itoa(idx), s.Path})

		row := make([]string, len(s.Rep))
		for j, v := range s.Rep {
			row[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		reps = append(reps, row)
	}

	if err := writeCSV(filepath.Join(dir, LabelsFile), labels); err != nil {
		return err
	}
	return writeCSV(filepath.Join(dir, RepsFile), reps)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

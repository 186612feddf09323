// Package storage keeps recorded runs on disk. Each run is a directory
// holding metadata.json and cycles.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/servosteer/internal/steer"
)

const (
	metadataFile = "metadata.json"
	cyclesFile   = "cycles.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Source     string             `json:"source"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed,omitempty"`
	Dt         float64            `json:"dt,omitempty"`
	Integrator string             `json:"integrator,omitempty"`
	Cycles     int                `json:"cycles"`
	Servo      steer.Config       `json:"servo"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes a new run and returns its ID. ID, Timestamp and Cycles in meta
// are filled in.
func (s *Store) Save(meta RunMetadata, reports []steer.Report) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}

	now := time.Now()
	base := fmt.Sprintf("%s_%d", meta.Source, now.Unix())
	runID := base
	for i := 1; ; i++ {
		err := os.Mkdir(s.Dir(runID), 0755)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
		runID = fmt.Sprintf("%s-%d", base, i)
	}

	meta.ID = runID
	meta.Timestamp = now
	meta.Cycles = len(reports)

	if err := writeMetadata(filepath.Join(s.Dir(runID), metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeCycles(filepath.Join(s.Dir(runID), cyclesFile), reports); err != nil {
		return "", err
	}
	return runID, nil
}

func writeMetadata(path string, meta RunMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func writeCycles(path string, reports []steer.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header()); err != nil {
		return err
	}
	for _, r := range reports {
		if err := w.Write(Row(r)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns stored runs, newest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadCycles(runID string) ([]steer.Report, error) {
	file, err := os.Open(filepath.Join(s.Dir(runID), cyclesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	if len(records) < 2 {
		return []steer.Report{}, nil
	}

	reports := make([]steer.Report, 0, len(records)-1)
	for i, rec := range records[1:] {
		rep, err := ParseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("run %s line %d: %w", runID, i+2, err)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// CyclesPath is the CSV file of a run, readable by the replay source.
func (s *Store) CyclesPath(runID string) string {
	return filepath.Join(s.Dir(runID), cyclesFile)
}

func (s *Store) Delete(runID string) error {
	if _, err := s.Load(runID); err != nil {
		return err
	}
	return os.RemoveAll(s.Dir(runID))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

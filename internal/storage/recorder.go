package storage

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/san-kum/servosteer/internal/steer"
)

// Recorder keeps reports in memory until they are saved. With Max set, only
// the most recent Max reports are kept.
type Recorder struct {
	mu      sync.Mutex
	Max     int
	reports []steer.Report
}

func (rec *Recorder) Report(_ context.Context, r steer.Report) error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.reports = append(rec.reports, r)
	if rec.Max > 0 && len(rec.reports) > rec.Max {
		rec.reports = rec.reports[len(rec.reports)-rec.Max:]
	}
	return nil
}

// Reports returns a copy of the recorded reports.
func (rec *Recorder) Reports() []steer.Report {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]steer.Report, len(rec.reports))
	copy(out, rec.reports)
	return out
}

func (rec *Recorder) Len() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.reports)
}

type ExportData struct {
	Meta    RunMetadata    `json:"meta"`
	Reports []steer.Report `json:"cycles"`
}

// ExportJSON writes a run as a single JSON document.
func ExportJSON(path string, meta RunMetadata, reports []steer.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Meta: meta, Reports: reports})
}

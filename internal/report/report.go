// Package report defines the cutoff report: the sole contract between the
// cutoff identifier and the batch deleter.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Safety status values for the aggregate report.
const (
	StatusSafe           = "SAFE"
	StatusRequiresReview = "REQUIRES_REVIEW"
)

// Entity names used as keys in Report.Cutoffs.
const (
	EntityReading   = "reading"
	EntityContact   = "contact"
	EntityCommunity = "community"
)

// CutoffEntry certifies a primary-key upper bound for one entity: every row
// with ID <= CutoffID is eligible for deletion, verified by a post-hoc count.
type CutoffEntry struct {
	CutoffID           int64     `json:"cutoff_id"`
	EstimatedDeletions int64     `json:"estimated_deletions"`
	IsSafe             bool      `json:"is_safe"`
	CutoffDate         time.Time `json:"cutoff_date"`
}

// TableStats holds raw size statistics for one physical table.
type TableStats struct {
	Rows    int64   `json:"rows" db:"table_rows"`
	DataMB  float64 `json:"data_mb" db:"data_mb"`
	IndexMB float64 `json:"index_mb" db:"index_mb"`
	TotalMB float64 `json:"total_mb" db:"total_mb"`
}

// Report aggregates all cutoff entries plus table size statistics.
type Report struct {
	GeneratedAt  time.Time              `json:"generated_at"`
	RunID        string                 `json:"run_id"`
	SafetyStatus string                 `json:"safety_status"`
	Cutoffs      map[string]CutoffEntry `json:"cutoffs"`
	TableStats   map[string]TableStats  `json:"table_stats"`
}

// RequiresReview reports whether the deleter must refuse to auto-proceed.
func (r *Report) RequiresReview() bool {
	return r.SafetyStatus != StatusSafe
}

// Entry returns the cutoff entry for an entity, if present.
func (r *Report) Entry(entity string) (CutoffEntry, bool) {
	e, ok := r.Cutoffs[entity]
	return e, ok
}

// ComputeSafetyStatus derives the aggregate status: SAFE only when every
// entry passed its safety verification.
func (r *Report) ComputeSafetyStatus() {
	for _, e := range r.Cutoffs {
		if !e.IsSafe {
			r.SafetyStatus = StatusRequiresReview
			return
		}
	}
	r.SafetyStatus = StatusSafe
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}

// Load reads a report previously written by Save.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &r, nil
}

// DefaultFilename returns the timestamped report filename used when the
// operator does not pass --output.
func DefaultFilename(now time.Time) string {
	return fmt.Sprintf("cutoff_report_%s.json", now.Format("20060102_150405"))
}

// Package schema has configs, models and global variables for all parts of scorefuse.
package schema

import "time"

// TrialRecord represents the outcome of a single optimization trial.
// It includes the proposed fusion parameters, per-term metric values,
// the combined objective value and the direction-adjusted reward.
type TrialRecord struct {
	Trial      int                `json:"trial"`                 // Zero-based trial index
	State      TrialState         `json:"state"`                 // complete or failed
	Params     map[string]float64 `json:"params"`                // Proposed parameter values by name
	TermValues []float64          `json:"term_values,omitempty"` // Metric value per objective term
	Value      float64            `json:"value"`                 // Combined objective value
	Reward     float64            `json:"reward"`                // Value adjusted so that higher is always better
	Error      string             `json:"error,omitempty"`       // Failure reason for failed trials
	Elapsed    time.Duration      `json:"elapsed_ns"`            // Trial wall time
	Time       time.Time          `json:"time"`                  // Completion timestamp
}

// StudyResult summarizes a finished optimization study.
type StudyResult struct {
	StudyName  string             `json:"study_name"`
	Direction  Direction          `json:"direction"`
	BestTrial  int                `json:"best_trial"`
	BestValue  float64            `json:"best_value"`
	BestParams map[string]float64 `json:"best_params"`
	Trials     int                `json:"trials"`
	Failed     int                `json:"failed"`
	Elapsed    time.Duration      `json:"elapsed_ns"`
}

// StoreStatus reports the contents of a trial store.
type StoreStatus struct {
	Backend DatabaseBackend `json:"backend"`
	Studies int             `json:"studies"`
	Trials  int             `json:"trials"`
}

// StudyRow is a flattened study record as persisted in the trial store.
type StudyRow struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
	Config    string    `json:"config"`
	CreatedAt time.Time `json:"created_at"`
}

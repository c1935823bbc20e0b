package pipeline

import (
	"time"

	"triadbalance/domain/balance"
	"triadbalance/domain/core"
	"triadbalance/internal/aggregate"
	"triadbalance/internal/transition"
)

// Report is the per-subject result of the pipeline
type Report struct {
	SubjectID      core.SubjectID
	RunID          core.RunID
	Replica        int
	ROIs           int
	TimePoints     int
	Windows        int
	Triangles      int
	DroppedWindows int
	Subnetwork     []int

	Lifetime    aggregate.Result
	Energy      aggregate.Result
	SubLifetime *aggregate.Result
	SubEnergy   *aggregate.Result
	Transitions transition.Matrix

	Surrogates []*Report
	Elapsed    time.Duration

	convention balance.Convention
}

// Summary is the JSON form of a Report. Missing values are null.
type Summary struct {
	SubjectID      string            `json:"subject_id"`
	RunID          string            `json:"run_id"`
	Replica        int               `json:"replica"`
	ROIs           int               `json:"rois"`
	TimePoints     int               `json:"timepoints"`
	Windows        int               `json:"windows"`
	Triangles      int               `json:"triangles"`
	DroppedWindows int               `json:"dropped_windows"`
	Convention     string            `json:"convention"`
	Order          []int             `json:"code_order"`
	Lifetime       []aggregate.Entry `json:"lifetime"`
	Energy         []aggregate.Entry `json:"energy"`
	Subnetwork     *SubnetSummary    `json:"subnetwork,omitempty"`
	Transitions    [][]*float64      `json:"transitions"`
	Counts         [4][4]int         `json:"transition_counts"`
	Surrogates     []Summary         `json:"surrogates,omitempty"`
}

// SubnetSummary reports subnetwork aggregates with the ROIs they cover
type SubnetSummary struct {
	ROIs     []int             `json:"rois"`
	Lifetime []aggregate.Entry `json:"lifetime"`
	Energy   []aggregate.Entry `json:"energy"`
}

// Summary renders the report under its configured code convention
func (r *Report) Summary() Summary {
	conv := r.convention
	if conv == "" {
		conv = balance.ConventionRaw
	}
	order := make([]int, len(balance.Canonical))
	for i, c := range balance.Canonical {
		order[i] = conv.Display(c)
	}

	out := Summary{
		SubjectID:      r.SubjectID.String(),
		RunID:          r.RunID.String(),
		Replica:        r.Replica,
		ROIs:           r.ROIs,
		TimePoints:     r.TimePoints,
		Windows:        r.Windows,
		Triangles:      r.Triangles,
		DroppedWindows: r.DroppedWindows,
		Convention:     string(conv),
		Order:          order,
		Lifetime:       r.Lifetime.Entries(conv),
		Energy:         r.Energy.Entries(conv),
		Transitions:    r.Transitions.Rows(),
		Counts:         r.Transitions.Counts,
	}
	if r.SubLifetime != nil && r.SubEnergy != nil {
		out.Subnetwork = &SubnetSummary{
			ROIs:     r.Subnetwork,
			Lifetime: r.SubLifetime.Entries(conv),
			Energy:   r.SubEnergy.Entries(conv),
		}
	}
	for _, sr := range r.Surrogates {
		out.Surrogates = append(out.Surrogates, sr.Summary())
	}
	return out
}

// Package session keeps per-user dashboard state between page renders and
// applies widget events to it.
package session

import (
	"github.com/ag3dash/server/internal/data/vobs"
	"github.com/ag3dash/server/internal/query"
)

// SampleSetRow is a sample-set table row with the user's selection overlaid.
type SampleSetRow struct {
	vobs.SampleSet
	Selected bool `json:"selected"`
}

// State is everything the dashboard remembers for one session.
type State struct {
	// SampleSets is the editable selection table; nil until initialized.
	SampleSets   []SampleSetRow    `json:"sample_sets"`
	SelectedSets []string          `json:"selected_sets"`
	Filter       query.FilterState `json:"filter"`
	ResetEpoch   int               `json:"reset_epoch"`
}

// Initialized reports whether the selection table has been populated.
func (s State) Initialized() bool {
	return s.SampleSets != nil
}

// Clone returns a deep copy so event handlers never alias the stored state.
func (s State) Clone() State {
	out := State{
		Filter:     s.Filter.Clone(),
		ResetEpoch: s.ResetEpoch,
	}
	if s.SampleSets != nil {
		out.SampleSets = make([]SampleSetRow, len(s.SampleSets))
		copy(out.SampleSets, s.SampleSets)
	}
	if s.SelectedSets != nil {
		out.SelectedSets = append([]string{}, s.SelectedSets...)
	}
	return out
}

// newTable overlays Selected=false onto the loaded sample-set table.
func newTable(sets []vobs.SampleSet) []SampleSetRow {
	rows := make([]SampleSetRow, len(sets))
	for i, s := range sets {
		rows[i] = SampleSetRow{SampleSet: s}
	}
	return rows
}

func selectedIDs(rows []SampleSetRow) []string {
	ids := []string{}
	for _, r := range rows {
		if r.Selected {
			ids = append(ids, r.SampleSet.SampleSet)
		}
	}
	return ids
}

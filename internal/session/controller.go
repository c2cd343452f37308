package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ag3dash/server/internal/query"
)

var (
	// ErrInvalidYear is returned when a year filter value is not an integer.
	ErrInvalidYear = errors.New("invalid year")
	// ErrStaleEpoch is returned for selection edits made against a table
	// that has since been reset.
	ErrStaleEpoch = errors.New("selection table was reset")
)

// OnSampleSetTableEdited applies the Selected flags of edited onto the
// session's table. Rows are matched by sample set identifier; identifiers not
// in the table are ignored, so the selection always stays a subset of the
// loaded sample sets. SelectedSets is recomputed in table row order.
func OnSampleSetTableEdited(s State, edited []SampleSetRow) State {
	next := s.Clone()
	flags := make(map[string]bool, len(edited))
	for _, r := range edited {
		flags[r.SampleSet.SampleSet] = r.Selected
	}
	for i := range next.SampleSets {
		if sel, ok := flags[next.SampleSets[i].SampleSet.SampleSet]; ok {
			next.SampleSets[i].Selected = sel
		}
	}
	next.SelectedSets = selectedIDs(next.SampleSets)
	return next
}

// OnSelectionSubmitted treats ids as the complete set of checked rows, which
// is what an HTML form posts: every row not listed becomes unselected.
func OnSelectionSubmitted(s State, ids []string) State {
	checked := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		checked[id] = struct{}{}
	}
	edited := make([]SampleSetRow, len(s.SampleSets))
	for i, r := range s.SampleSets {
		_, sel := checked[r.SampleSet.SampleSet]
		edited[i] = SampleSetRow{SampleSet: r.SampleSet, Selected: sel}
	}
	return OnSampleSetTableEdited(s, edited)
}

// CheckEpoch rejects edits rendered before the last reset.
func CheckEpoch(s State, epoch int) error {
	if epoch != s.ResetEpoch {
		return fmt.Errorf("%w: form epoch %d, current %d", ErrStaleEpoch, epoch, s.ResetEpoch)
	}
	return nil
}

// OnResetRequested clears every selection and advances the reset epoch.
func OnResetRequested(s State) State {
	next := s.Clone()
	for i := range next.SampleSets {
		next.SampleSets[i].Selected = false
	}
	next.SelectedSets = []string{}
	next.ResetEpoch++
	return next
}

// OnMultiselectChanged overwrites the chosen values of one dimension.
func OnMultiselectChanged(s State, dimension string, values []string) (State, error) {
	d, err := query.ParseDimension(dimension)
	if err != nil {
		return s, err
	}
	next := s.Clone()
	switch d {
	case query.Countries:
		next.Filter.Countries = nonEmpty(values)
	case query.Taxa:
		next.Filter.Taxa = nonEmpty(values)
	case query.Years:
		years := make([]int, 0, len(values))
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			y, err := strconv.Atoi(v)
			if err != nil {
				return s, fmt.Errorf("%w: %q", ErrInvalidYear, v)
			}
			years = append(years, y)
		}
		next.Filter.Years = years
	}
	return next, nil
}

// OnFiltersCleared drops every filter value.
func OnFiltersCleared(s State) State {
	next := s.Clone()
	next.Filter = query.FilterState{Countries: []string{}, Taxa: []string{}, Years: []int{}}
	return next
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ag3dash/server/internal/data/vobs"
	"github.com/ag3dash/server/internal/query"
)

func row(id string, selected bool) SampleSetRow {
	return SampleSetRow{SampleSet: vobs.SampleSet{SampleSet: id}, Selected: selected}
}

func stateWith(ids ...string) State {
	rows := make([]SampleSetRow, len(ids))
	for i, id := range ids {
		rows[i] = row(id, false)
	}
	return State{SampleSets: rows, SelectedSets: []string{}}
}

func TestOnSampleSetTableEdited_SingleSelection(t *testing.T) {
	s := stateWith("AG1000G-X")

	next := OnSampleSetTableEdited(s, []SampleSetRow{row("AG1000G-X", true)})

	assert.Equal(t, []string{"AG1000G-X"}, next.SelectedSets)
	assert.True(t, next.SampleSets[0].Selected)
	assert.False(t, s.SampleSets[0].Selected, "input state must not change")
	assert.Equal(t, "To use these sample sets in your analysis, declare a variable like this:\n"+
		"```\nsample_sets = [\n    'AG1000G-X',\n]\n```\n", query.SampleSetsSnippet(next.SelectedSets))
}

func TestOnSampleSetTableEdited_RowOrderAndUnknownIDs(t *testing.T) {
	s := stateWith("A", "B", "C", "D")

	next := OnSampleSetTableEdited(s, []SampleSetRow{
		row("D", true), row("B", true), row("ZZZ", true), row("A", false),
	})

	assert.Equal(t, []string{"B", "D"}, next.SelectedSets)
	assert.Len(t, next.SampleSets, 4)
}

func TestOnSampleSetTableEdited_SelectionMatchesFlags(t *testing.T) {
	s := stateWith("A", "B", "C", "D", "E")
	for mask := 0; mask < 32; mask++ {
		var edited []SampleSetRow
		var want []string
		for i, id := range []string{"A", "B", "C", "D", "E"} {
			sel := mask&(1<<i) != 0
			edited = append(edited, row(id, sel))
			if sel {
				want = append(want, id)
			}
		}
		next := OnSampleSetTableEdited(s, edited)
		if want == nil {
			want = []string{}
		}
		assert.Equal(t, want, next.SelectedSets, "mask %05b", mask)
	}
}

func TestOnSelectionSubmitted(t *testing.T) {
	s := OnSampleSetTableEdited(stateWith("A", "B", "C"), []SampleSetRow{row("A", true)})

	next := OnSelectionSubmitted(s, []string{"C"})
	assert.Equal(t, []string{"C"}, next.SelectedSets)
	assert.False(t, next.SampleSets[0].Selected)
}

func TestOnResetRequested(t *testing.T) {
	s := stateWith("A", "B", "C")
	s = OnSampleSetTableEdited(s, []SampleSetRow{row("A", true), row("C", true)})
	require.Len(t, s.SelectedSets, 2)

	next := OnResetRequested(s)

	assert.Empty(t, next.SelectedSets)
	assert.NotNil(t, next.SelectedSets)
	for _, r := range next.SampleSets {
		assert.False(t, r.Selected, r.SampleSet.SampleSet)
	}
	assert.Equal(t, s.ResetEpoch+1, next.ResetEpoch)
}

func TestCheckEpoch(t *testing.T) {
	s := OnResetRequested(stateWith("A"))
	assert.NoError(t, CheckEpoch(s, 1))
	assert.ErrorIs(t, CheckEpoch(s, 0), ErrStaleEpoch)
}

func TestOnMultiselectChanged(t *testing.T) {
	s := stateWith()

	s, err := OnMultiselectChanged(s, "countries", []string{"Kenya", "Angola"})
	require.NoError(t, err)
	s, err = OnMultiselectChanged(s, "years", []string{"2012", "2010"})
	require.NoError(t, err)
	s, err = OnMultiselectChanged(s, "taxa", []string{"gambiae"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Kenya", "Angola"}, s.Filter.Countries)
	assert.Equal(t, []int{2012, 2010}, s.Filter.Years)
	assert.Equal(t, "country in ['Kenya', 'Angola'] and taxon in ['gambiae'] and year in [2010, 2012]",
		query.Compile(s.Filter).Expr())

	s, err = OnMultiselectChanged(s, "countries", nil)
	require.NoError(t, err)
	assert.Empty(t, s.Filter.Countries)
}

func TestOnMultiselectChanged_Errors(t *testing.T) {
	s := stateWith()
	s.Filter.Taxa = []string{"gambiae"}

	got, err := OnMultiselectChanged(s, "regions", []string{"x"})
	assert.ErrorIs(t, err, query.ErrUnknownDimension)
	assert.Equal(t, s, got)

	got, err = OnMultiselectChanged(s, "years", []string{"2012", "twenty"})
	assert.ErrorIs(t, err, ErrInvalidYear)
	assert.Empty(t, got.Filter.Years)
}

func TestOnFiltersCleared(t *testing.T) {
	s := stateWith()
	s.Filter = query.FilterState{Countries: []string{"Kenya"}, Years: []int{2012}}

	next := OnFiltersCleared(s)
	assert.True(t, next.Filter.Empty())
	assert.Equal(t, []string{"Kenya"}, s.Filter.Countries)
}

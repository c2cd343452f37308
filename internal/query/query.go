// Package query compiles filter selections over sample metadata into a
// structured predicate that can be evaluated against the in-memory table and
// rendered as pandas-style query text for display.
package query

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ag3dash/server/internal/data/vobs"
)

// Dimension is one independently selectable filter.
type Dimension string

const (
	Countries Dimension = "countries"
	Taxa      Dimension = "taxa"
	Years     Dimension = "years"
)

// Dimensions lists the filter dimensions in clause order.
var Dimensions = []Dimension{Countries, Taxa, Years}

// ErrUnknownDimension is returned for dimension names outside Dimensions.
var ErrUnknownDimension = errors.New("unknown filter dimension")

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(strings.ToLower(strings.TrimSpace(s))); d {
	case Countries, Taxa, Years:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
}

// Column is the sample metadata column the dimension filters on.
func (d Dimension) Column() string {
	switch d {
	case Countries:
		return "country"
	case Taxa:
		return "taxon"
	case Years:
		return "year"
	}
	return ""
}

// Label is the widget label used by the query builder page.
func (d Dimension) Label() string {
	switch d {
	case Countries:
		return "Countries:"
	case Taxa:
		return "Taxa (species):"
	case Years:
		return "Years:"
	}
	return string(d)
}

// FilterState holds the chosen values per dimension. An empty dimension
// places no constraint.
type FilterState struct {
	Countries []string `json:"countries"`
	Taxa      []string `json:"taxa"`
	Years     []int    `json:"years"`
}

// Empty reports whether no dimension is constrained.
func (f FilterState) Empty() bool {
	return len(f.Countries) == 0 && len(f.Taxa) == 0 && len(f.Years) == 0
}

// Clone returns a deep copy. Nil and empty dimensions stay distinct.
func (f FilterState) Clone() FilterState {
	return FilterState{
		Countries: cloneSlice(f.Countries),
		Taxa:      cloneSlice(f.Taxa),
		Years:     cloneSlice(f.Years),
	}
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

// Values returns the chosen values of d as strings.
func (f FilterState) Values(d Dimension) []string {
	switch d {
	case Countries:
		return append([]string(nil), f.Countries...)
	case Taxa:
		return append([]string(nil), f.Taxa...)
	case Years:
		out := make([]string, len(f.Years))
		for i, y := range f.Years {
			out[i] = strconv.Itoa(y)
		}
		return out
	}
	return nil
}

// Clause is a membership test "<column> in [values]". Exactly one of
// Strings or Ints is used, depending on the column type.
type Clause struct {
	Dimension Dimension
	Strings   []string
	Ints      []int

	strSet map[string]struct{}
	intSet map[int]struct{}
}

func newStringClause(d Dimension, values []string) Clause {
	c := Clause{Dimension: d, Strings: append([]string(nil), values...), strSet: make(map[string]struct{}, len(values))}
	for _, v := range values {
		c.strSet[v] = struct{}{}
	}
	return c
}

func newIntClause(d Dimension, values []int) Clause {
	c := Clause{Dimension: d, Ints: append([]int(nil), values...), intSet: make(map[int]struct{}, len(values))}
	sort.Ints(c.Ints)
	for _, v := range values {
		c.intSet[v] = struct{}{}
	}
	return c
}

// Match reports whether the record satisfies the clause.
func (c Clause) Match(r vobs.SampleRecord) bool {
	switch c.Dimension {
	case Countries:
		_, ok := c.strSet[r.Country]
		return ok
	case Taxa:
		_, ok := c.strSet[r.Taxon]
		return ok
	case Years:
		_, ok := c.intSet[r.Year]
		return ok
	}
	return false
}

// String renders the clause as pandas query text.
func (c Clause) String() string {
	var b strings.Builder
	b.WriteString(c.Dimension.Column())
	b.WriteString(" in ")
	if c.Dimension == Years {
		b.WriteString(pyIntList(c.Ints))
	} else {
		b.WriteString(pyStrList(c.Strings))
	}
	return b.String()
}

// Predicate is the conjunction of its clauses. Zero clauses match every row.
type Predicate struct {
	Clauses []Clause
}

// Compile builds the predicate for f. Clauses follow the fixed order
// countries, taxa, years; years are sorted ascending while countries and
// taxa keep their selection order.
func Compile(f FilterState) Predicate {
	var p Predicate
	if len(f.Countries) > 0 {
		p.Clauses = append(p.Clauses, newStringClause(Countries, f.Countries))
	}
	if len(f.Taxa) > 0 {
		p.Clauses = append(p.Clauses, newStringClause(Taxa, f.Taxa))
	}
	if len(f.Years) > 0 {
		p.Clauses = append(p.Clauses, newIntClause(Years, f.Years))
	}
	return p
}

// MatchAll reports whether the predicate places no constraint.
func (p Predicate) MatchAll() bool { return len(p.Clauses) == 0 }

// Match evaluates the predicate for one record.
func (p Predicate) Match(r vobs.SampleRecord) bool {
	for _, c := range p.Clauses {
		if !c.Match(r) {
			return false
		}
	}
	return true
}

// Apply returns the matching records in table order.
func (p Predicate) Apply(records []vobs.SampleRecord) []vobs.SampleRecord {
	if p.MatchAll() {
		return records
	}
	out := make([]vobs.SampleRecord, 0, len(records)/4)
	for _, r := range records {
		if p.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the number of matching records.
func (p Predicate) Count(records []vobs.SampleRecord) int {
	if p.MatchAll() {
		return len(records)
	}
	n := 0
	for _, r := range records {
		if p.Match(r) {
			n++
		}
	}
	return n
}

// Expr renders the full predicate as one pandas query string. It is empty
// when the predicate matches everything.
func (p Predicate) Expr() string {
	parts := make([]string, len(p.Clauses))
	for i, c := range p.Clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, " and ")
}

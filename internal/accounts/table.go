package accounts

import (
	"sort"
	"strings"
	"time"

	"finnastats/internal/config"
)

// TotalName labels the synthetic row summing every organisation.
const TotalName = "total"

// Subgroup is an authentication method. Null marks accounts without one.
type Subgroup struct {
	Name string
	Null bool
}

// NullSubgroup is the method of accounts with no method recorded.
func NullSubgroup() Subgroup {
	return Subgroup{Null: true}
}

// Key is the case-normalised identity used for grouping.
func (s Subgroup) Key() string {
	if s.Null {
		return ""
	}
	return strings.ToLower(s.Name)
}

// Label is the display name; the null method shows as NULL.
func (s Subgroup) Label() string {
	if s.Null {
		return config.NullMethod
	}
	return s.Name
}

// ParseSubgroups converts configured method names, where NULL denotes the
// null method. A JSON null in the settings decodes to "" and is read the
// same way.
func ParseSubgroups(names []string) []Subgroup {
	subgroups := make([]Subgroup, 0, len(names))
	for _, name := range names {
		if name == config.NullMethod || name == "" {
			subgroups = append(subgroups, NullSubgroup())
			continue
		}
		subgroups = append(subgroups, Subgroup{Name: name})
	}
	return subgroups
}

// Triple is one grouped count from a Source.
type Triple struct {
	Group    string
	Subgroup Subgroup
	Count    int64
}

// Row holds the counts of one organisation. Counts always has an entry for
// every subgroup of its table, keyed by Subgroup.Key.
type Row struct {
	Name   string
	Total  int64
	Counts map[string]int64
}

// Values returns the per-subgroup counts in subgroup order.
func (r Row) Values(subgroups []Subgroup) []int64 {
	values := make([]int64, len(subgroups))
	for i, s := range subgroups {
		values[i] = r.Counts[s.Key()]
	}
	return values
}

// Table is an aggregation result. Rows[0] is the total row.
type Table struct {
	GeneratedAt time.Time
	Subgroups   []Subgroup
	Rows        []Row

	index map[string]int
}

func newTable(generatedAt time.Time, subgroups []Subgroup, groups []string) *Table {
	t := &Table{
		GeneratedAt: generatedAt,
		Subgroups:   subgroups,
		Rows:        make([]Row, 0, len(groups)+1),
		index:       make(map[string]int, len(groups)),
	}
	t.Rows = append(t.Rows, t.emptyRow(TotalName))
	for _, g := range groups {
		t.index[strings.ToLower(g)] = len(t.Rows)
		t.Rows = append(t.Rows, t.emptyRow(g))
	}
	return t
}

func (t *Table) emptyRow(name string) Row {
	counts := make(map[string]int64, len(t.Subgroups))
	for _, s := range t.Subgroups {
		counts[s.Key()] = 0
	}
	return Row{Name: name, Counts: counts}
}

// add folds one triple into its row and the total row. It reports false for
// a group or subgroup outside the table.
func (t *Table) add(tr Triple) bool {
	i, ok := t.index[strings.ToLower(tr.Group)]
	if !ok {
		return false
	}
	key := tr.Subgroup.Key()
	if _, ok := t.Rows[0].Counts[key]; !ok {
		return false
	}

	t.Rows[i].Counts[key] += tr.Count
	t.Rows[i].Total += tr.Count
	t.Rows[0].Counts[key] += tr.Count
	t.Rows[0].Total += tr.Count
	return true
}

// Total returns the total row.
func (t *Table) Total() Row {
	return t.Rows[0]
}

// Row returns the row of an organisation, matched case-insensitively.
func (t *Table) Row(name string) (Row, bool) {
	if strings.EqualFold(name, TotalName) {
		return t.Rows[0], true
	}
	i, ok := t.index[strings.ToLower(name)]
	if !ok {
		return Row{}, false
	}
	return t.Rows[i], true
}

// Suffixed returns a copy whose row names end in suffix.
func (t *Table) Suffixed(suffix string) *Table {
	out := &Table{
		GeneratedAt: t.GeneratedAt,
		Subgroups:   t.Subgroups,
		Rows:        make([]Row, len(t.Rows)),
		index:       t.index,
	}
	for i, r := range t.Rows {
		counts := make(map[string]int64, len(r.Counts))
		for k, v := range r.Counts {
			counts[k] = v
		}
		out.Rows[i] = Row{Name: r.Name + suffix, Total: r.Total, Counts: counts}
	}
	return out
}

// uniqueSubgroups drops case-insensitive duplicates, keeping the first.
func uniqueSubgroups(subgroups []Subgroup) []Subgroup {
	seen := make(map[string]bool, len(subgroups))
	out := make([]Subgroup, 0, len(subgroups))
	for _, s := range subgroups {
		if seen[s.Key()] {
			continue
		}
		seen[s.Key()] = true
		out = append(out, s)
	}
	return out
}

// uniqueGroups drops case-insensitive duplicates, keeping the first spelling.
func uniqueGroups(groups []string) []string {
	seen := make(map[string]bool, len(groups))
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		key := strings.ToLower(g)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, g)
	}
	return out
}

// sortSubgroups orders discovered subgroups by key, the null method first.
func sortSubgroups(subgroups []Subgroup) {
	sort.SliceStable(subgroups, func(i, j int) bool {
		a, b := subgroups[i], subgroups[j]
		if a.Null != b.Null {
			return a.Null
		}
		if a.Key() != b.Key() {
			return a.Key() < b.Key()
		}
		return a.Name < b.Name
	})
}

// sortGroups orders discovered groups by lower-cased name.
func sortGroups(groups []string) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := strings.ToLower(groups[i]), strings.ToLower(groups[j])
		if a != b {
			return a < b
		}
		return groups[i] < groups[j]
	})
}

// Copyright 2025 DFRAS Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dataset holds the immutable delivery-domain record tables loaded
// once at process start and shared read-only across requests.
package dataset

import (
	"sort"
	"strings"
	"time"
)

// Row is a single CSV record keyed by column name.
type Row map[string]string

// Table is a homogeneous ordered sequence of rows with named columns.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Len returns the number of rows in the table.
func (t Table) Len() int {
	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// HasColumn reports whether the table carries the named column.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns all values of the named column in row order.
// An unknown column yields an empty slice, never an error.
func (t Table) Column(name string) []string {
	if !t.HasColumn(name) {
		return nil
	}
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		values = append(values, row[name])
	}
	return values
}

// ValueCount is one entry of a frequency ranking.
type ValueCount struct {
	Value string
	Count int
}

// ValueCounts returns the distinct non-blank values of a column ranked by
// descending frequency. Ties keep the order of first appearance in the table,
// so the ranking is deterministic for a fixed snapshot.
func (t Table) ValueCounts(column string) []ValueCount {
	if !t.HasColumn(column) {
		return nil
	}
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, row := range t.Rows {
		v := strings.TrimSpace(row[column])
		if v == "" {
			continue
		}
		if _, ok := counts[v]; !ok {
			firstSeen[v] = i
		}
		counts[v]++
	}

	ranked := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		ranked = append(ranked, ValueCount{Value: v, Count: c})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return firstSeen[ranked[i].Value] < firstSeen[ranked[j].Value]
	})
	return ranked
}

// Filter returns a new table containing the rows for which keep returns true.
// Column metadata is shared with the receiver; rows are never mutated.
func (t Table) Filter(keep func(Row) bool) Table {
	filtered := Table{Name: t.Name, Columns: t.Columns}
	for _, row := range t.Rows {
		if keep(row) {
			filtered.Rows = append(filtered.Rows, row)
		}
	}
	return filtered
}

// Head returns a copy of the table truncated to at most n rows.
func (t Table) Head(n int) Table {
	if n < 0 || n >= len(t.Rows) {
		return t
	}
	return Table{Name: t.Name, Columns: t.Columns, Rows: t.Rows[:n]}
}

// CountWhere returns the number of rows matching the predicate.
func (t Table) CountWhere(match func(Row) bool) int {
	n := 0
	for _, row := range t.Rows {
		if match(row) {
			n++
		}
	}
	return n
}

// Uniques returns the distinct non-blank values of a column in first-seen order.
func (t Table) Uniques(column string) []string {
	if !t.HasColumn(column) {
		return nil
	}
	seen := make(map[string]struct{})
	var uniques []string
	for _, row := range t.Rows {
		v := strings.TrimSpace(row[column])
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		uniques = append(uniques, v)
	}
	return uniques
}

// timestampLayouts covers the formats the sample CSVs use for date columns.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses a CSV timestamp value. The zero time and false are
// returned for blank or unparseable values.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// DateRange returns the earliest and latest parseable timestamps found in any
// column whose name contains "date" or "time". The ok result is false when the
// table has no such values.
func (t Table) DateRange() (earliest, latest time.Time, ok bool) {
	for _, col := range t.Columns {
		lower := strings.ToLower(col)
		if !strings.Contains(lower, "date") && !strings.Contains(lower, "time") {
			continue
		}
		for _, row := range t.Rows {
			ts, parsed := ParseTime(row[col])
			if !parsed {
				continue
			}
			if !ok {
				earliest, latest, ok = ts, ts, true
				continue
			}
			if ts.Before(earliest) {
				earliest = ts
			}
			if ts.After(latest) {
				latest = ts
			}
		}
	}
	return earliest, latest, ok
}

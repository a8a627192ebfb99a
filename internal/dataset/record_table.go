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

package dataset

import (
	"time"
)

// Table names of the delivery sample dataset. Each corresponds to one CSV file.
const (
	TableOrders          = "orders"
	TableWarehouses      = "warehouses"
	TableFleetLogs       = "fleet_logs"
	TableExternalFactors = "external_factors"
	TableClients         = "clients"
	TableDrivers         = "drivers"
	TableFeedback        = "feedback"
	TableWarehouseLogs   = "warehouse_logs"
)

// TableNames lists all dataset tables in loading order.
var TableNames = []string{
	TableOrders,
	TableWarehouses,
	TableFleetLogs,
	TableExternalFactors,
	TableClients,
	TableDrivers,
	TableFeedback,
	TableWarehouseLogs,
}

// RecordTable is the process-lifetime snapshot of all dataset tables.
// It is immutable after loading and safe for concurrent readers.
type RecordTable struct {
	Orders          Table
	Warehouses      Table
	FleetLogs       Table
	ExternalFactors Table
	Clients         Table
	Drivers         Table
	Feedback        Table
	WarehouseLogs   Table

	Source   string
	LoadedAt time.Time
}

// Empty returns a RecordTable with all tables present but no rows. The
// pipeline operates on it without special-casing a missing dataset.
func Empty() *RecordTable {
	rt := &RecordTable{LoadedAt: time.Now()}
	for _, name := range TableNames {
		*rt.table(name) = Table{Name: name}
	}
	return rt
}

// table maps a table name to the corresponding snapshot field.
func (rt *RecordTable) table(name string) *Table {
	switch name {
	case TableOrders:
		return &rt.Orders
	case TableWarehouses:
		return &rt.Warehouses
	case TableFleetLogs:
		return &rt.FleetLogs
	case TableExternalFactors:
		return &rt.ExternalFactors
	case TableClients:
		return &rt.Clients
	case TableDrivers:
		return &rt.Drivers
	case TableFeedback:
		return &rt.Feedback
	case TableWarehouseLogs:
		return &rt.WarehouseLogs
	default:
		return nil
	}
}

// TableByName returns the named table. Unknown names yield an empty table.
func (rt *RecordTable) TableByName(name string) Table {
	if t := rt.table(name); t != nil {
		return *t
	}
	return Table{Name: name}
}

// Counts returns the row count per table.
func (rt *RecordTable) Counts() map[string]int {
	counts := make(map[string]int, len(TableNames))
	for _, name := range TableNames {
		counts[name] = rt.TableByName(name).Len()
	}
	return counts
}

// TableSummary describes one table for the response data summary.
type TableSummary struct {
	TotalCount int      `json:"total_count"`
	Columns    []string `json:"columns"`
	Earliest   string   `json:"earliest,omitempty"`
	Latest     string   `json:"latest,omitempty"`
}

// Summary returns per-table counts, columns and date coverage.
func (rt *RecordTable) Summary() map[string]TableSummary {
	summary := make(map[string]TableSummary, len(TableNames))
	for _, name := range TableNames {
		t := rt.TableByName(name)
		s := TableSummary{TotalCount: t.Len(), Columns: t.Columns}
		if earliest, latest, ok := t.DateRange(); ok {
			s.Earliest = earliest.Format("2006-01-02")
			s.Latest = latest.Format("2006-01-02")
		}
		summary[name] = s
	}
	return summary
}

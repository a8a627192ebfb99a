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

// Package selector narrows the dataset snapshot to the working set relevant
// for one query.
package selector

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oppachoriya-tal/dfras/internal/classifier"
	"github.com/oppachoriya-tal/dfras/internal/dataset"
)

// maxWorkingRows caps every table in the working set. The sample datasets are
// far below this; the cap only guards against pathological inputs.
const maxWorkingRows = 10000

// locationColumns are the order columns a location entity is matched against.
var locationColumns = []string{"city", "delivery_city", "state", "delivery_state"}

// monthsByName resolves month names appearing as time-period entities.
var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// Selector builds per-query working sets from the shared dataset snapshot.
// The clock is injected so time-period filtering stays reproducible in tests.
type Selector struct {
	now    func() time.Time
	logger *zap.Logger
}

// New creates a Selector using the wall clock.
func New(logger *zap.Logger) *Selector {
	return NewWithClock(logger, time.Now)
}

// NewWithClock creates a Selector with an explicit clock.
func NewWithClock(logger *zap.Logger, now func() time.Time) *Selector {
	return &Selector{now: now, logger: logger}
}

// Select returns the working set for the extracted entities. Orders are
// filtered by location, client and time period; every dimension whose columns
// are absent from the data degrades to "no filter applied". The remaining
// tables are carried whole, size-capped. Select never fails.
func (s *Selector) Select(rt *dataset.RecordTable, entities classifier.Entities) *dataset.RecordTable {
	ws := dataset.Empty()
	ws.Source = rt.Source
	ws.LoadedAt = rt.LoadedAt

	orders := rt.Orders
	orders = filterByLocation(orders, entities.Locations)
	orders = s.filterByClient(orders, rt.Clients, entities.Clients)
	orders = s.filterByTime(orders, entities.TimePeriods)

	ws.Orders = orders.Head(maxWorkingRows)
	ws.Warehouses = rt.Warehouses.Head(maxWorkingRows)
	ws.FleetLogs = rt.FleetLogs.Head(maxWorkingRows)
	ws.ExternalFactors = rt.ExternalFactors.Head(maxWorkingRows)
	ws.Clients = rt.Clients.Head(maxWorkingRows)
	ws.Drivers = rt.Drivers.Head(maxWorkingRows)
	ws.Feedback = rt.Feedback.Head(maxWorkingRows)
	ws.WarehouseLogs = rt.WarehouseLogs.Head(maxWorkingRows)

	s.logger.Debug("Selected working set",
		zap.Int("orders_in", rt.Orders.Len()),
		zap.Int("orders_out", ws.Orders.Len()),
		zap.Strings("locations", entities.Locations),
		zap.Strings("time_periods", entities.TimePeriods),
	)
	return ws
}

// filterByLocation keeps orders whose city or state columns match any
// location entity. Without location entities or location columns the table
// passes through unchanged.
func filterByLocation(orders dataset.Table, locations []string) dataset.Table {
	if len(locations) == 0 {
		return orders
	}
	var columns []string
	for _, col := range locationColumns {
		if orders.HasColumn(col) {
			columns = append(columns, col)
		}
	}
	if len(columns) == 0 {
		return orders
	}
	return orders.Filter(func(r dataset.Row) bool {
		for _, col := range columns {
			for _, loc := range locations {
				if valuesOverlap(r[col], loc) {
					return true
				}
			}
		}
		return false
	})
}

// filterByClient resolves client-name entities to client ids and keeps orders
// for those ids. When no entity resolves to a known client the filter is
// skipped entirely rather than producing a guaranteed-empty working set.
func (s *Selector) filterByClient(orders, clients dataset.Table, names []string) dataset.Table {
	if len(names) == 0 || !orders.HasColumn("client_id") || !clients.HasColumn("client_name") {
		return orders
	}

	ids := make(map[string]struct{})
	for _, row := range clients.Rows {
		for _, name := range names {
			if valuesOverlap(row["client_name"], name) {
				ids[row["client_id"]] = struct{}{}
			}
		}
	}
	if len(ids) == 0 {
		s.logger.Debug("No client entity resolved to a known client, skipping client filter",
			zap.Strings("names", names))
		return orders
	}

	return orders.Filter(func(r dataset.Row) bool {
		_, ok := ids[r["client_id"]]
		return ok
	})
}

// filterByTime applies the fixed time-period vocabulary against the order
// date. Filters stack when a query names several periods. Rows whose date
// does not parse are excluded once any time filter is active.
func (s *Selector) filterByTime(orders dataset.Table, periods []string) dataset.Table {
	if len(periods) == 0 || !orders.HasColumn("order_date") {
		return orders
	}

	now := s.now()
	filtered := orders
	for _, period := range periods {
		p := strings.ToLower(period)
		switch {
		case strings.Contains(p, "yesterday"):
			yesterday := now.AddDate(0, 0, -1)
			filtered = filterOrderDate(filtered, func(ts time.Time) bool {
				return sameDate(ts, yesterday)
			})
		case strings.Contains(p, "last week"):
			cutoff := now.AddDate(0, 0, -7)
			filtered = filterOrderDate(filtered, func(ts time.Time) bool {
				return !ts.Before(cutoff)
			})
		case strings.Contains(p, "last month"):
			cutoff := now.AddDate(0, 0, -30)
			filtered = filterOrderDate(filtered, func(ts time.Time) bool {
				return !ts.Before(cutoff)
			})
		case strings.Contains(p, "festival") || strings.Contains(p, "holiday"):
			filtered = filterOrderDate(filtered, func(ts time.Time) bool {
				return ts.Month() == time.November || ts.Month() == time.December
			})
		default:
			if month, ok := monthsByName[p]; ok {
				filtered = filterOrderDate(filtered, func(ts time.Time) bool {
					return ts.Month() == month
				})
			}
		}
	}
	return filtered
}

func filterOrderDate(orders dataset.Table, keep func(time.Time) bool) dataset.Table {
	return orders.Filter(func(r dataset.Row) bool {
		ts, ok := dataset.ParseTime(r["order_date"])
		return ok && keep(ts)
	})
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// valuesOverlap reports whether either string contains the other,
// case-insensitively. Entity strings and column values rarely agree on
// exact casing or completeness ("CA" vs "ca", "Mumbai" vs "Navi Mumbai").
func valuesOverlap(value, entity string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	e := strings.ToLower(strings.TrimSpace(entity))
	if v == "" || e == "" {
		return false
	}
	return strings.Contains(v, e) || strings.Contains(e, v)
}

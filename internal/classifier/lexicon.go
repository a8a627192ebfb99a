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

package classifier

import (
	"github.com/oppachoriya-tal/dfras/internal/dataset"
)

// BuildLexicon derives the entity gazetteer from a loaded dataset snapshot.
// Every distinct city, state, client name, warehouse name, failure reason and
// order status becomes a recognizable entity. Empty tables contribute nothing,
// so the classifier still works against an empty dataset.
func BuildLexicon(rt *dataset.RecordTable) Lexicon {
	if rt == nil {
		return Lexicon{}
	}
	var lex Lexicon
	lex.Cities = uniqueValues(
		rt.Orders.Uniques("city"),
		rt.Orders.Uniques("delivery_city"),
		rt.Warehouses.Uniques("city"),
	)
	lex.States = uniqueValues(
		rt.Orders.Uniques("state"),
		rt.Orders.Uniques("delivery_state"),
		rt.Warehouses.Uniques("state"),
	)
	lex.Clients = uniqueValues(rt.Clients.Uniques("client_name"))
	lex.Warehouses = uniqueValues(rt.Warehouses.Uniques("warehouse_name"))
	lex.FailureReasons = uniqueValues(rt.Orders.Uniques("failure_reason"))
	lex.Statuses = uniqueValues(rt.Orders.Uniques("status"))
	return lex
}

func uniqueValues(groups ...[]string) []string {
	var out []string
	for _, group := range groups {
		for _, v := range group {
			out = appendUnique(out, v)
		}
	}
	return out
}

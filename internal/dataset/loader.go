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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Loader reads the delivery sample dataset from a directory of CSV files.
type Loader struct {
	dataPath string
	logger   *zap.Logger
}

// NewLoader creates a dataset loader rooted at dataPath.
func NewLoader(dataPath string, logger *zap.Logger) *Loader {
	return &Loader{dataPath: dataPath, logger: logger}
}

// Load reads all dataset tables. A missing or malformed file degrades to an
// empty table so the service can start and report partial data rather than
// fail; the only returned error is a completely absent dataset directory,
// which callers are expected to treat as "operate on an empty snapshot".
func (l *Loader) Load() (*RecordTable, error) {
	rt := Empty()
	rt.Source = l.dataPath
	rt.LoadedAt = time.Now()

	if _, err := os.Stat(l.dataPath); err != nil {
		return rt, fmt.Errorf("dataset directory not available: %w", err)
	}

	for _, name := range TableNames {
		path := filepath.Join(l.dataPath, name+".csv")
		table, err := readCSVTable(name, path)
		if err != nil {
			l.logger.Warn("Failed to load dataset table, continuing with empty table",
				zap.String("table", name),
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		*rt.table(name) = table
		l.logger.Info("Loaded dataset table",
			zap.String("table", name),
			zap.Int("rows", table.Len()),
			zap.Int("columns", len(table.Columns)),
		)
	}

	return rt, nil
}

// readCSVTable parses one CSV file into a Table using its header row as the
// column names. Short records are padded so every row carries every column.
func readCSVTable(name, path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{Name: name}, err
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return Table{Name: name}, nil
		}
		return Table{Name: name}, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make([]string, len(header))
	for i, col := range header {
		columns[i] = strings.TrimSpace(col)
	}

	table := Table{Name: name, Columns: columns}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return table, fmt.Errorf("failed to read record: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

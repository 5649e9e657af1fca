package oracle

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Result table columns:
// source_file,scope,name,result,compilation_id,metric,value
const (
	colSourceFile = iota
	colScope
	colName
	colMarker
	colCompilationID
	colMetric
	colValue
	resultColumns
)

// ModuleResult is one accepted module row of a result table.
type ModuleResult struct {
	SourceFile    string
	Module        string
	CompilationID string
	Value         float64
}

// SumResults reads a measurement result table and sums the module results
// that belong to this build.
//
// Rows that are not 7-column "result" rows for scope "module" are ignored,
// as are rows whose metric differs from metric (unless metric is empty) and
// rows whose compilation id is not in ids (unless ids is empty). A second
// accepted row for the same source file returns ErrDuplicateResult: summing
// it would silently double-count the module.
func SumResults(r io.Reader, metric string, ids map[string]bool) (float64, []ModuleResult, error) {
	rows, err := readRows(r)
	if err != nil {
		return 0, nil, err
	}

	var (
		total   float64
		modules []ModuleResult
		seen    = make(map[string]bool)
	)
	for i, row := range rows {
		if len(row) != resultColumns {
			continue
		}
		if strings.TrimSpace(row[colMarker]) != "result" {
			continue
		}
		if strings.TrimSpace(row[colScope]) != "module" {
			continue
		}
		if metric != "" && strings.TrimSpace(row[colMetric]) != metric {
			continue
		}
		id := strings.TrimSpace(row[colCompilationID])
		if len(ids) > 0 && !ids[id] {
			continue
		}

		src := row[colSourceFile]
		name := strings.TrimSpace(row[colName])
		if seen[src] {
			return 0, nil, fmt.Errorf("row %d: %w %s (%s)", i+1, ErrDuplicateResult, name, src)
		}
		seen[src] = true

		value, err := strconv.ParseFloat(strings.TrimSpace(row[colValue]), 64)
		if err != nil {
			return 0, nil, fmt.Errorf("row %d: parse value for module %s: %w", i+1, name, err)
		}
		total += value
		modules = append(modules, ModuleResult{
			SourceFile:    src,
			Module:        name,
			CompilationID: id,
			Value:         value,
		})
	}

	if len(modules) == 0 {
		return 0, nil, ErrNoResults
	}
	return total, modules, nil
}

// ReadCompilationIDs collects the compilation ids a build recorded.
//
// Two layouts are accepted:
//
//	module,<name>,<id>
//	<source_file>,module|function,<name>,compilation,<id>
func ReadCompilationIDs(r io.Reader) (map[string]bool, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	for _, row := range rows {
		switch {
		case len(row) == 3 && (row[0] == "module" || row[0] == "function"):
			ids[strings.TrimSpace(row[2])] = true
		case len(row) == 5 && strings.TrimSpace(row[3]) == "compilation":
			ids[strings.TrimSpace(row[4])] = true
		}
	}
	return ids, nil
}

// readRows reads a loosely formatted CSV file with a varying field count.
func readRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, row)
	}
}

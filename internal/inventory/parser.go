// Package inventory imports product CSV files into the catalog. An import
// either writes every row or none of them.
package inventory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Column names of the import file.
const (
	ColumnID          = "id"
	ColumnName        = "nombre"
	ColumnDescription = "descripcion"
	ColumnPrice       = "precio"
	ColumnStock       = "stock"
	ColumnImage       = "imagen"
)

// RequiredColumns must all appear in the header, in any order.
var RequiredColumns = []string{ColumnID, ColumnName, ColumnDescription, ColumnPrice, ColumnStock, ColumnImage}

// Cells that may not be blank. descripcion is required in the header only.
var requiredCells = []string{ColumnID, ColumnName, ColumnPrice, ColumnStock, ColumnImage}

const imageSeparator = "|"

// RowError is one problem found in the file. Line is the 1-based file line;
// the header is line 1.
type RowError struct {
	Line   int    `json:"line"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("line %d, column %s: %s", e.Line, e.Column, e.Reason)
}

// RowErrors flattens an error built by this package into its row errors.
func RowErrors(err error) []RowError {
	var out []RowError
	for _, e := range multierr.Errors(err) {
		var rowErr *RowError
		if errors.As(e, &rowErr) {
			out = append(out, *rowErr)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

// Row is a parsed and validated data row.
type Row struct {
	Line        int
	ID          string
	Name        string
	Description string
	Price       int64
	Stock       int
	Images      []string
}

// Parse reads the whole file and validates every row. The error, when not
// nil, combines one *RowError per problem.
func Parse(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &RowError{Line: 1, Reason: "file is empty"}
	}
	if err != nil {
		return nil, &RowError{Line: 1, Reason: fmt.Sprintf("unreadable header: %v", err)}
	}
	index, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var (
		rows  []Row
		errs  error
		seen  = make(map[string]int)
		nrows int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, multierr.Append(errs, fmt.Errorf("read csv: %w", err))
			}
			errs = multierr.Append(errs, &RowError{Line: parseErr.StartLine, Reason: fmt.Sprintf("malformed row: %v", parseErr.Err)})
			continue
		}
		line, _ := reader.FieldPos(0)
		nrows++

		row, rowErrs := parseRecord(line, record, index)
		if rowErrs != nil {
			errs = multierr.Append(errs, rowErrs)
			continue
		}
		if first, dup := seen[row.ID]; dup {
			errs = multierr.Append(errs, &RowError{Line: line, Column: ColumnID, Reason: fmt.Sprintf("duplicate id %q, first seen on line %d", row.ID, first)})
			continue
		}
		seen[row.ID] = line
		rows = append(rows, row)
	}

	if nrows == 0 && errs == nil {
		return nil, &RowError{Line: 1, Reason: "file has no data rows"}
	}
	if errs != nil {
		return nil, errs
	}
	return rows, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if key == "" {
			continue
		}
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	var errs error
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			errs = multierr.Append(errs, &RowError{Line: 1, Column: col, Reason: "missing required column"})
		}
	}
	if errs != nil {
		return nil, errs
	}
	return index, nil
}

func parseRecord(line int, record []string, index map[string]int) (Row, error) {
	cell := func(col string) string {
		i := index[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var errs error
	fail := func(col, reason string) {
		errs = multierr.Append(errs, &RowError{Line: line, Column: col, Reason: reason})
	}

	for _, col := range requiredCells {
		if cell(col) == "" {
			fail(col, "is required")
		}
	}

	row := Row{
		Line:        line,
		ID:          cell(ColumnID),
		Name:        cell(ColumnName),
		Description: cell(ColumnDescription),
	}

	if raw := cell(ColumnPrice); raw != "" {
		price, err := parsePrice(raw)
		if err != nil {
			fail(ColumnPrice, err.Error())
		}
		row.Price = price
	}
	if raw := cell(ColumnStock); raw != "" {
		stock, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			fail(ColumnStock, fmt.Sprintf("%q is not a whole number", raw))
		case stock < 0:
			fail(ColumnStock, fmt.Sprintf("must be 0 or more, got %d", stock))
		default:
			row.Stock = stock
		}
	}
	if raw := cell(ColumnImage); raw != "" {
		for _, part := range strings.Split(raw, imageSeparator) {
			candidate := strings.TrimSpace(part)
			if candidate == "" {
				continue
			}
			if err := validateImageURL(candidate); err != nil {
				fail(ColumnImage, err.Error())
				continue
			}
			row.Images = append(row.Images, candidate)
		}
		if len(row.Images) == 0 && errs == nil {
			fail(ColumnImage, "no image url given")
		}
	}

	if errs != nil {
		return Row{}, errs
	}
	return row, nil
}

// parsePrice accepts whole pesos, optionally with a decimal part that is
// rounded to the nearest peso.
func parsePrice(raw string) (int64, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	if value.IsNegative() {
		return 0, fmt.Errorf("must be 0 or more, got %s", raw)
	}
	return value.Round(0).IntPart(), nil
}

func validateImageURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must use http or https", raw)
	}
	return nil
}

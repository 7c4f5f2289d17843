// Package tabular maps spreadsheet-like grids onto ledger rows. It is shared
// by the Google Sheets and xlsx backends so both read and write the same
// layout.
package tabular

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"abonnements/internal/core"
)

// Header is the canonical header written to empty sheets.
var Header = []string{"Name", "Price", "Period", "NextDue"}

const (
	colName = iota
	colPrice
	colPeriod
	colNextDue
)

// headerAliases lists accepted spellings per column, lowercased. The French
// names come from sheets created by the first versions of the app.
var headerAliases = [4][]string{
	colName:    {"name", "nom"},
	colPrice:   {"price", "prix"},
	colPeriod:  {"period", "périodicité", "periodicite", "périodicite"},
	colNextDue: {"nextdue", "next_due", "next due", "prochaine échéance", "prochaine echeance"},
}

// Layout records in which grid column each field lives.
type Layout struct {
	cols [4]int
}

// DefaultLayout is the canonical column order.
func DefaultLayout() Layout {
	return Layout{cols: [4]int{0, 1, 2, 3}}
}

// ParseHeader resolves the column positions from a header row. Missing
// columns are an error: the sheet is not a ledger.
func ParseHeader(header []string) (Layout, error) {
	var l Layout
	var missing []string
	for field, aliases := range headerAliases {
		l.cols[field] = -1
		for i, h := range header {
			if matchesAlias(h, aliases) {
				l.cols[field] = i
				break
			}
		}
		if l.cols[field] == -1 {
			missing = append(missing, Header[field])
		}
	}
	if len(missing) > 0 {
		return Layout{}, fmt.Errorf("unexpected ledger header: missing %s; got headers=%v", strings.Join(missing, ","), header)
	}
	return l, nil
}

func matchesAlias(h string, aliases []string) bool {
	h = strings.ToLower(strings.TrimSpace(h))
	for _, a := range aliases {
		if h == a {
			return true
		}
	}
	return false
}

// IsHeader reports whether the row looks like a ledger header.
func IsHeader(row []string) bool {
	_, err := ParseHeader(row)
	return err == nil
}

// Decode turns data rows into ledger rows. Index is the 1-based position
// among data rows. Fully empty rows keep their position but are skipped.
func (l Layout) Decode(rows [][]string) []core.Row {
	out := make([]core.Row, 0, len(rows))
	for i, cells := range rows {
		r := core.Row{
			Index:   i + 1,
			Name:    cell(cells, l.cols[colName]),
			Price:   cell(cells, l.cols[colPrice]),
			Period:  cell(cells, l.cols[colPeriod]),
			NextDue: cell(cells, l.cols[colNextDue]),
		}
		if r.Name == "" && r.Price == "" && r.Period == "" && r.NextDue == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Encode lays a ledger row out as grid cells.
func (l Layout) Encode(r core.Row) []string {
	width := 0
	for _, c := range l.cols {
		if c+1 > width {
			width = c + 1
		}
	}
	cells := make([]string, width)
	cells[l.cols[colName]] = r.Name
	cells[l.cols[colPrice]] = r.Price
	cells[l.cols[colPeriod]] = r.Period
	cells[l.cols[colNextDue]] = r.NextDue
	return cells
}

// NameColumn returns the grid column holding names.
func (l Layout) NameColumn() int {
	return l.cols[colName]
}

func cell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

// CellText converts a cell value as returned by a spreadsheet API into text.
// Numeric cells come back as float64 when values are read unformatted; they
// are rendered in the canonical price form so the normalizer never sees
// locale formatting or exponent notation.
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		if math.Trunc(x) == x && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return core.FormatPrice(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// ToStrings converts a row of cell values into text.
func ToStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = CellText(v)
	}
	return out
}

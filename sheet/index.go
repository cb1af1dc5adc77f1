// Package sheet indexes order spreadsheets by shipment identifier. The
// identifier column is detected heuristically (known header names first,
// then a pattern scan over sample values) and duplicate identifiers abort
// the whole operation: a sheet that maps one code to two orders cannot be
// joined safely.
package sheet

import (
	"strings"

	"github.com/lightmkt/labelproc/ident"
)

// Row is one spreadsheet data row: the header order plus the cell values.
type Row struct {
	Columns []string
	Values  map[string]string
}

// Get returns the cell value for a column, or "".
func (r Row) Get(column string) string { return r.Values[column] }

// ProductInfo returns the value of the first column whose name mentions the
// product-info field, in header order.
func (r Row) ProductInfo() string {
	for _, col := range r.Columns {
		name := strings.ToLower(accentFold(col))
		if strings.Contains(name, "product") || strings.Contains(name, "produto") {
			return r.Values[col]
		}
	}
	return ""
}

// Index maps normalized identifiers to their spreadsheet rows. Keys are
// unique by construction.
type Index struct {
	scheme ident.Scheme
	column string
	rows   map[string]Row
}

// Known identifier column headers, tried in order before falling back to a
// value scan. The lists mirror the export formats seen in the field.
var headerCandidates = map[ident.Scheme][]string{
	ident.SchemeTracking: {
		"tracking_number",
		"Tracking Number",
		"TrackingNumber",
		"tracking",
		"Tracking",
		"Número de Rastreio",
		"numero_rastreio",
		"Código de Rastreio",
		"codigo_rastreio",
		"N° de rastreamento",
		"Numero de rastreamento",
		"rastreio",
		"Rastreio",
	},
	ident.SchemeOrder: {
		"order_sn",
		"Order SN",
		"order_id",
		"Pedido",
		"ID do pedido",
		"Número do pedido",
		"numero_pedido",
	},
}

// Build indexes a Source under the given scheme. It fails with
// *ColumnNotFoundError when no identifier column can be detected, with
// *DuplicateIdentifierError when any identifier repeats after normalization,
// and with ErrNoRows for a header-only sheet. Rows whose resolved identifier
// is empty are skipped. No partial index is ever returned.
func Build(src Source, scheme ident.Scheme) (*Index, error) {
	headers := src.Headers()
	records, err := src.Records()
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 || len(records) == 0 {
		return nil, ErrNoRows
	}

	column := detectColumn(headers, records, scheme)
	if column < 0 {
		return nil, &ColumnNotFoundError{Scheme: scheme, Headers: headers}
	}

	rows := make(map[string]Row, len(records))
	var duplicates []string
	for _, record := range records {
		row := makeRow(headers, record)
		raw := row.Values[headers[column]]
		id := scheme.Normalize(raw)
		if scheme.Pattern().FindString(id) != id {
			// The cell may embed the code in a larger string; take the
			// first pattern match.
			id, _ = scheme.ExtractFirst(raw)
		}
		if id == "" {
			continue
		}
		if _, exists := rows[id]; exists {
			duplicates = append(duplicates, id)
			continue
		}
		rows[id] = row
	}
	if len(duplicates) > 0 {
		return nil, &DuplicateIdentifierError{Identifiers: duplicates}
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return &Index{scheme: scheme, column: headers[column], rows: rows}, nil
}

// Lookup resolves an identifier (normalized first) to its row.
func (ix *Index) Lookup(id string) (Row, bool) {
	row, ok := ix.rows[ix.scheme.Normalize(id)]
	return row, ok
}

// Len returns the number of indexed rows.
func (ix *Index) Len() int { return len(ix.rows) }

// Column returns the detected identifier column header.
func (ix *Index) Column() string { return ix.column }

// Keys returns the indexed identifiers in unspecified order.
func (ix *Index) Keys() []string {
	out := make([]string, 0, len(ix.rows))
	for k := range ix.rows {
		out = append(out, k)
	}
	return out
}

func detectColumn(headers []string, records [][]string, scheme ident.Scheme) int {
	// Pass 1: exact header match. Pass 2: case-insensitive. Pass 3:
	// accent-insensitive, so "Numero de Rastreio" still hits.
	for _, candidate := range headerCandidates[scheme] {
		for i, h := range headers {
			if h == candidate {
				return i
			}
		}
	}
	for _, candidate := range headerCandidates[scheme] {
		for i, h := range headers {
			if strings.EqualFold(h, candidate) {
				return i
			}
		}
	}
	for _, candidate := range headerCandidates[scheme] {
		folded := accentFold(candidate)
		for i, h := range headers {
			if strings.EqualFold(accentFold(h), folded) {
				return i
			}
		}
	}
	// Fallback: scan each column's sample value against the identifier
	// pattern and take the first column that matches.
	sample := records[0]
	for i := range headers {
		if i < len(sample) && scheme.Matches(sample[i]) {
			return i
		}
	}
	return -1
}

func makeRow(headers []string, record []string) Row {
	values := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(record) {
			values[h] = record[i]
		} else {
			values[h] = ""
		}
	}
	return Row{Columns: headers, Values: values}
}

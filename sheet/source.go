package sheet

import (
	"fmt"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Source is the tabular-file capability the indexer consumes: a header row
// plus data rows whose cells align with the headers.
type Source interface {
	Headers() []string
	Records() ([][]string, error)
}

// Workbook is an xlsx-backed Source reading the first sheet of a file.
type Workbook struct {
	headers []string
	records [][]string
}

// OpenWorkbook loads the first sheet of an xlsx file into memory.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Workbook{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	wb := &Workbook{}
	if len(rows) > 0 {
		wb.headers = rows[0]
		wb.records = rows[1:]
	}
	return wb, nil
}

func (w *Workbook) Headers() []string { return w.headers }

func (w *Workbook) Records() ([][]string, error) { return w.records, nil }

// foldAccents strips combining marks so "Número" matches "Numero".
var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func accentFold(s string) string {
	out, _, err := transform.String(foldAccents, s)
	if err != nil {
		return s
	}
	return out
}

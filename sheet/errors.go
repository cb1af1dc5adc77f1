package sheet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lightmkt/labelproc/ident"
)

// ErrNoRows indicates the spreadsheet carries a header but no data rows (or
// nothing at all). An empty index is never produced silently.
var ErrNoRows = errors.New("spreadsheet has no data rows")

// ColumnNotFoundError indicates no identifier column could be detected.
type ColumnNotFoundError struct {
	Scheme  ident.Scheme
	Headers []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("no %s identifier column found among %d headers; expected a column of codes such as BR123456789BR", e.Scheme, len(e.Headers))
}

// DuplicateIdentifierError aborts indexing when an identifier repeats after
// normalization. Identifiers carries the full duplicate list; the message
// caps the display.
type DuplicateIdentifierError struct {
	Identifiers []string
}

const duplicateDisplayCap = 10

func (e *DuplicateIdentifierError) Error() string {
	shown := e.Identifiers
	extra := 0
	if len(shown) > duplicateDisplayCap {
		extra = len(shown) - duplicateDisplayCap
		shown = shown[:duplicateDisplayCap]
	}
	msg := "duplicate identifiers in spreadsheet: " + strings.Join(shown, ", ")
	if extra > 0 {
		msg += fmt.Sprintf(" and %d more", extra)
	}
	return msg
}

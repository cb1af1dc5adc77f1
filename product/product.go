// Package product parses the semi-structured "product info" field exported
// by the marketplace into structured product entries. The field concatenates
// one block per product, optionally delimited by bracketed numeric markers:
//
//	[1] SKU Reference No.: ABC-1; Variation Name: Red; Quantity: 2 [2] ...
package product

import (
	"regexp"
	"strconv"
	"strings"
)

// Detail is one product entry extracted from a spreadsheet row.
type Detail struct {
	SKU       string
	Variation string
	Quantity  int
}

var (
	blockMarker      = regexp.MustCompile(`\[[0-9]+\]`)
	skuPattern       = regexp.MustCompile(`(?i)SKU Reference No\.?:?\s*([^;,]+)`)
	variationPattern = regexp.MustCompile(`(?i)Variation Name:?\s*([^;]+)`)
	quantityPattern  = regexp.MustCompile(`(?i)Quantity:?\s*([0-9]+)`)
)

// Parse extracts zero or more Details from a product-info blob. It is a pure
// function: absence of markers or fields yields an empty list, never an
// error. Blocks with neither SKU nor variation are discarded.
func Parse(info string) []Detail {
	if strings.TrimSpace(info) == "" {
		return nil
	}

	var out []Detail
	for _, block := range blockMarker.Split(info, -1) {
		if d, ok := parseBlock(block); ok {
			out = append(out, d)
		}
	}
	if out == nil {
		// No marker-delimited blocks yielded anything; treat the whole text
		// as a single implicit block.
		if d, ok := parseBlock(info); ok {
			out = append(out, d)
		}
	}
	return out
}

func parseBlock(block string) (Detail, bool) {
	if strings.TrimSpace(block) == "" {
		return Detail{}, false
	}
	d := Detail{Quantity: 1}
	if m := skuPattern.FindStringSubmatch(block); m != nil {
		d.SKU = strings.TrimSpace(m[1])
	}
	if m := variationPattern.FindStringSubmatch(block); m != nil {
		d.Variation = strings.TrimSpace(m[1])
	}
	if m := quantityPattern.FindStringSubmatch(block); m != nil {
		if q, err := strconv.Atoi(m[1]); err == nil && q >= 1 {
			d.Quantity = q
		}
	}
	if d.SKU == "" && d.Variation == "" {
		return Detail{}, false
	}
	return d, true
}

package compositor

import (
	"strconv"
	"strings"

	"github.com/lightmkt/labelproc/product"
)

// TableConfig fixes the product-table geometry. Wrapping is by character
// count, not font metrics: the row-height arithmetic and the overflow
// decision are specified in terms of these thresholds.
type TableConfig struct {
	SKUWidth       float64 // mm
	VariationWidth float64 // mm
	QuantityWidth  float64 // mm
	SKUChars       int     // wrap threshold for the SKU column
	VariationChars int     // wrap threshold for the variation column
	FontSize       float64 // pt
	LineHeight     float64 // mm per wrapped line
	RowPadding     float64 // mm base padding per row
	TablePadding   float64 // mm around the whole table
	// OverflowLineLimit forces an overflow page when any row's line count
	// reaches it, regardless of total height.
	OverflowLineLimit int
}

// rowPlan is the computed layout of one product row.
type rowPlan struct {
	sku       []string
	variation []string
	quantity  string
	lines     int
	height    float64
}

// tablePlan is the computed layout of a full product table.
type tablePlan struct {
	rows     []rowPlan
	height   float64 // total, including table padding
	maxLines int
}

func (c TableConfig) totalWidth() float64 {
	return c.SKUWidth + c.VariationWidth + c.QuantityWidth
}

// plan computes wrapped lines and heights for the product rows. Row height
// is base padding plus the maximum line count across the three columns
// times the line height.
func (c TableConfig) plan(details []product.Detail) tablePlan {
	p := tablePlan{height: c.TablePadding}
	for _, d := range details {
		row := rowPlan{
			sku:       wrapChars(d.SKU, c.SKUChars),
			variation: wrapChars(d.Variation, c.VariationChars),
			quantity:  strconv.Itoa(d.Quantity),
		}
		row.lines = len(row.sku)
		if n := len(row.variation); n > row.lines {
			row.lines = n
		}
		row.height = c.RowPadding + float64(row.lines)*c.LineHeight
		if row.lines > p.maxLines {
			p.maxLines = row.lines
		}
		p.rows = append(p.rows, row)
		p.height += row.height
	}
	return p
}

// wrapChars word-wraps text into chunks of at most max characters. Words
// longer than max are hard-split. The result always has at least one line
// so an empty cell still occupies a row.
func wrapChars(text string, max int) []string {
	text = strings.TrimSpace(text)
	if max <= 0 || text == "" {
		return []string{text}
	}
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		for len([]rune(word)) > max {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			runes := []rune(word)
			lines = append(lines, string(runes[:max]))
			word = string(runes[max:])
		}
		switch {
		case current == "":
			current = word
		case len([]rune(current))+1+len([]rune(word)) <= max:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

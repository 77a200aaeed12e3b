package extraction

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFLayoutStrategy walks glyph positions instead of the raw content stream.
// Glyphs are grouped into rows by their Y coordinate and rows into column
// clusters by X gaps, which recovers reading order on multi-column pages and
// lets the strategy report table-like regions.
type PDFLayoutStrategy struct{}

func NewPDFLayoutStrategy() *PDFLayoutStrategy {
	return &PDFLayoutStrategy{}
}

func (s *PDFLayoutStrategy) Name() string { return "pdf-layout" }

func (s *PDFLayoutStrategy) Supports(contentType string) bool {
	return isPDF(contentType)
}

// columnGap is the horizontal distance (in points) between glyph runs that
// starts a new cell within a row.
const columnGap = 18.0

func (s *PDFLayoutStrategy) Extract(data []byte, contentType string) Candidate {
	cand := Candidate{Strategy: s.Name()}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		cand.Err = fmt.Errorf("open pdf: %w", err)
		return cand
	}

	var b strings.Builder
	pages := 0
	tables := 0
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pages++

		rows := groupRows(p.Content().Text)
		inTable := false
		for _, row := range rows {
			cells := splitCells(row)
			if len(cells) >= 3 {
				// Multi-column run: treat consecutive such rows as one table.
				if !inTable {
					tables++
					inTable = true
				}
				b.WriteString(strings.Join(cells, "\t"))
			} else {
				inTable = false
				b.WriteString(strings.Join(cells, " "))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	cand.Text = strings.TrimSpace(b.String())
	cand.PageCount = pages
	cand.TableCount = tables
	return cand
}

// groupRows buckets glyphs by rounded Y coordinate and returns rows in
// top-to-bottom order, each row sorted left to right.
func groupRows(texts []pdf.Text) [][]pdf.Text {
	byY := make(map[int][]pdf.Text)
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		y := int(math.Round(t.Y))
		byY[y] = append(byY[y], t)
	}

	ys := make([]int, 0, len(byY))
	for y := range byY {
		ys = append(ys, y)
	}
	// PDF Y grows upward, so descending Y is reading order.
	sort.Sort(sort.Reverse(sort.IntSlice(ys)))

	rows := make([][]pdf.Text, 0, len(ys))
	for _, y := range ys {
		row := byY[y]
		sort.Slice(row, func(i, j int) bool { return row[i].X < row[j].X })
		rows = append(rows, row)
	}
	return rows
}

// splitCells joins a row's glyphs into cell strings, starting a new cell
// wherever the horizontal gap exceeds columnGap.
func splitCells(row []pdf.Text) []string {
	var cells []string
	var cell strings.Builder
	lastEnd := math.Inf(-1)
	for _, t := range row {
		if cell.Len() > 0 && t.X-lastEnd > columnGap {
			cells = append(cells, strings.TrimSpace(cell.String()))
			cell.Reset()
		}
		cell.WriteString(t.S)
		lastEnd = t.X + t.W
	}
	if trimmed := strings.TrimSpace(cell.String()); trimmed != "" {
		cells = append(cells, trimmed)
	}
	return cells
}

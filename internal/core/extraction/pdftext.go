package extraction

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

func isPDF(contentType string) bool {
	switch mediaType(contentType) {
	case "application/pdf", "application/x-pdf":
		return true
	}
	return false
}

// PDFTextStrategy walks each page's content stream and collects its plain
// text. Fast and good enough for digitally-born PDFs; it carries no layout
// information.
type PDFTextStrategy struct{}

func NewPDFTextStrategy() *PDFTextStrategy {
	return &PDFTextStrategy{}
}

func (s *PDFTextStrategy) Name() string { return "pdf-text" }

func (s *PDFTextStrategy) Supports(contentType string) bool {
	return isPDF(contentType)
}

func (s *PDFTextStrategy) Extract(data []byte, contentType string) Candidate {
	cand := Candidate{Strategy: s.Name()}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		cand.Err = fmt.Errorf("open pdf: %w", err)
		return cand
	}

	var b strings.Builder
	fonts := make(map[string]*pdf.Font)
	pages := 0
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pages++
		text, err := p.GetPlainText(fonts)
		if err != nil {
			// A single broken page should not void the rest of the document.
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	cand.Text = strings.TrimSpace(b.String())
	cand.PageCount = pages
	return cand
}

package extraction

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"code.sajari.com/docconv"
)

// DocconvStrategy delegates to sajari/docconv, which dispatches on media type
// and handles the office formats the native strategies do not (DOCX, ODT,
// RTF, HTML, ...). For PDFs it competes with the native strategies and wins
// whenever its converter extracts more text.
type DocconvStrategy struct {
	useReadability bool
}

func NewDocconvStrategy(useReadability bool) *DocconvStrategy {
	return &DocconvStrategy{useReadability: useReadability}
}

func (s *DocconvStrategy) Name() string { return "docconv" }

func (s *DocconvStrategy) Supports(contentType string) bool {
	mt := mediaType(contentType)
	if strings.HasPrefix(mt, "text/") {
		return true
	}
	switch mt {
	case "application/pdf", "application/x-pdf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/msword",
		"application/vnd.oasis.opendocument.text",
		"application/rtf",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/xml",
		"application/json":
		return true
	}
	return false
}

func (s *DocconvStrategy) Extract(data []byte, contentType string) Candidate {
	cand := Candidate{Strategy: s.Name()}

	res, err := docconv.Convert(bytes.NewReader(data), mediaType(contentType), s.useReadability)
	if err != nil {
		cand.Err = fmt.Errorf("docconv: %w", err)
		return cand
	}

	cand.Text = strings.TrimSpace(res.Body)
	if res.Meta != nil {
		if n, err := strconv.Atoi(res.Meta["PageCount"]); err == nil {
			cand.PageCount = n
		}
	}
	return cand
}

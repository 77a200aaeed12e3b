package extraction

import (
	"strings"
	"unicode"
)

// PlainTextStrategy decodes text-like media types directly, dropping invalid
// UTF-8 sequences and non-printable control characters.
type PlainTextStrategy struct{}

func NewPlainTextStrategy() *PlainTextStrategy {
	return &PlainTextStrategy{}
}

func (s *PlainTextStrategy) Name() string { return "plaintext" }

func (s *PlainTextStrategy) Supports(contentType string) bool {
	mt := mediaType(contentType)
	if strings.HasPrefix(mt, "text/") {
		return true
	}
	switch mt {
	case "application/json", "application/xml", "application/csv":
		return true
	}
	return false
}

func (s *PlainTextStrategy) Extract(data []byte, contentType string) Candidate {
	return Candidate{
		Strategy: s.Name(),
		Text:     CleanDecode(data),
	}
}

// CleanDecode converts raw bytes into the best-effort plain text the arbiter
// also falls back to when every strategy comes up empty: invalid UTF-8 is
// dropped and control characters other than whitespace are stripped.
func CleanDecode(data []byte) string {
	valid := strings.ToValidUTF8(string(data), "")
	var b strings.Builder
	b.Grow(len(valid))
	for _, r := range valid {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// mediaType strips any parameters (e.g. "; charset=utf-8") and lowercases.
func mediaType(contentType string) string {
	mt := contentType
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

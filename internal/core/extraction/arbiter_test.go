package extraction

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidemeka/ingesta/internal/core"
)

type fakeStrategy struct {
	name     string
	supports bool
	text     string
	pages    int
	err      error
	panics   bool
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Supports(contentType string) bool { return f.supports }

func (f *fakeStrategy) Extract(data []byte, contentType string) Candidate {
	if f.panics {
		panic("fake strategy exploded")
	}
	return Candidate{Strategy: f.name, Text: f.text, PageCount: f.pages, Err: f.err}
}

func newTestArbiter(t *testing.T, strategies ...Strategy) *Arbiter {
	t.Helper()
	arb, err := NewArbiter(slog.Default(), strategies...)
	require.NoError(t, err)
	t.Cleanup(arb.Release)
	return arb
}

func TestArbiterPicksLongestCandidate(t *testing.T) {
	short := &fakeStrategy{name: "short", supports: true, text: strings.Repeat("s", 200)}
	long := &fakeStrategy{name: "long", supports: true, text: strings.Repeat("l", 350), pages: 3}
	arb := newTestArbiter(t, short, long)

	res, err := arb.Extract([]byte("input"), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, "long", res.Strategy)
	assert.Equal(t, 350, res.CharCount)
	assert.Equal(t, 3, res.PageCount)
	assert.False(t, res.LowConfidence)

	// Every strategy that ran leaves a provenance record, losers included.
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "short", res.Candidates[0].Strategy)
	assert.Equal(t, 200, res.Candidates[0].CharCount)
	assert.Equal(t, "long", res.Candidates[1].Strategy)
	assert.Equal(t, 350, res.Candidates[1].CharCount)
}

func TestArbiterTieGoesToFirstRegistered(t *testing.T) {
	a := &fakeStrategy{name: "first", supports: true, text: strings.Repeat("x", 100)}
	b := &fakeStrategy{name: "second", supports: true, text: strings.Repeat("y", 100)}
	arb := newTestArbiter(t, a, b)

	res, err := arb.Extract([]byte("input"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "first", res.Strategy)
}

func TestArbiterRawDecodeFallback(t *testing.T) {
	failing := &fakeStrategy{name: "failing", supports: true, err: errors.New("parse error")}
	empty := &fakeStrategy{name: "empty", supports: true, text: ""}
	arb := newTestArbiter(t, failing, empty)

	res, err := arb.Extract([]byte("plain bytes survive"), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, RawDecodeStrategy, res.Strategy)
	assert.True(t, res.LowConfidence)
	assert.Equal(t, "plain bytes survive", res.Text)

	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "parse error", res.Candidates[0].Error)
	assert.Empty(t, res.Candidates[1].Error)
}

func TestArbiterRecoversStrategyPanic(t *testing.T) {
	bomb := &fakeStrategy{name: "bomb", supports: true, panics: true}
	ok := &fakeStrategy{name: "ok", supports: true, text: "some extracted text"}
	arb := newTestArbiter(t, bomb, ok)

	res, err := arb.Extract([]byte("input"), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, "ok", res.Strategy)
	require.Len(t, res.Candidates, 2)
	assert.Contains(t, res.Candidates[0].Error, "strategy panic")
}

func TestArbiterRejectsUnsupportedInput(t *testing.T) {
	t.Run("empty bytes", func(t *testing.T) {
		arb := newTestArbiter(t, &fakeStrategy{name: "any", supports: true})
		_, err := arb.Extract(nil, "text/plain")
		assert.ErrorIs(t, err, core.ErrUnsupportedInput)
	})

	t.Run("no eligible strategy", func(t *testing.T) {
		arb := newTestArbiter(t, &fakeStrategy{name: "any", supports: false})
		_, err := arb.Extract([]byte("input"), "video/mp4")
		assert.ErrorIs(t, err, core.ErrUnsupportedInput)
	})
}

func TestNewArbiterRequiresStrategies(t *testing.T) {
	_, err := NewArbiter(slog.Default())
	assert.Error(t, err)
}

func TestCleanDecodeStripsControlCharacters(t *testing.T) {
	in := []byte("hello\x00world\x01 \tkeep\nnewlines\xff\xfe")
	out := CleanDecode(in)

	assert.NotContains(t, out, "\x00")
	assert.NotContains(t, out, "\x01")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "world")
	assert.Contains(t, out, "\tkeep\nnewlines")
}

package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"snippethost/internal/core/app"
	"snippethost/internal/data/history"
	"snippethost/internal/engine/abi"
	"snippethost/internal/engine/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResult() app.ParseResult {
	return app.ParseResult{
		Library: "/opt/lib/libjson.so",
		Parser:  "parse_json",
		Input:   "a.json",
		Scopes: []abi.Scope{
			abi.Scope(`{"name":"first","start":0}`),
			abi.Scope(`{"name":"second","start":10}`),
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" YAML ")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteParseResultJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteParseResult(&buf, FormatJSON, sampleResult()))

	out := buf.String()
	assert.Contains(t, out, `"parser": "parse_json"`)
	assert.Less(t, strings.Index(out, `"first"`), strings.Index(out, `"second"`))
	assert.NotContains(t, out, "run_id")
}

func TestWriteParseResultYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteParseResult(&buf, FormatYAML, sampleResult()))

	var doc struct {
		Library string           `yaml:"library"`
		Scopes  []map[string]any `yaml:"scopes"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "/opt/lib/libjson.so", doc.Library)
	require.Len(t, doc.Scopes, 2)
	assert.Equal(t, "second", doc.Scopes[1]["name"])
}

func TestWriteParseResultEmptyScopes(t *testing.T) {
	var buf bytes.Buffer
	result := sampleResult()
	result.Scopes = nil
	require.NoError(t, WriteParseResult(&buf, FormatJSON, result))
	assert.Contains(t, buf.String(), `"scopes": []`)
}

func TestRenderLibraries(t *testing.T) {
	assert.Equal(t, "No libraries loaded.\n", RenderLibraries(nil))

	out := RenderLibraries([]registry.LibraryInfo{
		{
			Path:        "/opt/lib/libjson.so",
			Description: "json",
			Parsers:     []registry.ParserInfo{{Name: "parse_json", Description: "objects"}},
		},
		{Path: "/opt/lib/libempty.so"},
	})
	assert.Contains(t, out, "Libraries (2)")
	assert.Contains(t, out, "parse_json")
	assert.Contains(t, out, "/opt/lib/libempty.so")
}

func TestRenderHistory(t *testing.T) {
	assert.Equal(t, "No parse runs recorded.\n", RenderHistory(nil))

	runs := []history.Run{
		{ID: "b", Parser: "p", Input: "bad.json", Error: "boom", CreatedAt: time.Now()},
		{ID: "a", Parser: "p", Input: "ok.json", Success: true, ScopeCount: 2, CreatedAt: time.Now()},
	}
	out := RenderHistory(runs)
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "ok.json")
}

func TestHistoryTSV(t *testing.T) {
	created := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	out := HistoryTSV([]history.Run{{
		ID:         "id-1",
		Library:    "lib",
		Parser:     "p",
		Input:      "in",
		Success:    true,
		ScopeCount: 4,
		Duration:   1500 * time.Microsecond,
		Error:      "a\tb",
		CreatedAt:  created,
	}})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id-1\t2026-02-13T10:00:00Z\tlib\tp\tin\ttrue\t4\t1.500\ta b", lines[1])
}

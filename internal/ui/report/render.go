// Package report renders parse results, registry listings and parse history
// for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"snippethost/internal/core/app"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json or yaml)", value)
	}
}

type parseDocument struct {
	RunID   string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Library string `json:"library" yaml:"library"`
	Parser  string `json:"parser" yaml:"parser"`
	Input   string `json:"input" yaml:"input"`
	Scopes  []any  `json:"scopes" yaml:"scopes"`
}

// WriteParseResult writes result in format. Scopes are emitted as the
// structured values the parser produced, in parser order.
func WriteParseResult(w io.Writer, format Format, result app.ParseResult) error {
	doc := parseDocument{
		RunID:   result.RunID,
		Library: result.Library,
		Parser:  result.Parser,
		Input:   result.Input,
		Scopes:  make([]any, 0, len(result.Scopes)),
	}
	for i, scope := range result.Scopes {
		var v any
		if err := json.Unmarshal(scope, &v); err != nil {
			return fmt.Errorf("decode scope %d: %w", i, err)
		}
		doc.Scopes = append(doc.Scopes, v)
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// Package abi defines the value types exchanged with parser plugins.
//
// A parser export has the C signature
//
//	char *parser(const char *input_path);
//
// and returns a NUL-terminated UTF-8 JSON document tagged with exactly one of
// "ok" (an array of scopes) or "err" (a message). Libraries may export
// FreeSymbol to release strings returned by their parsers.
package abi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FreeSymbol is the optional export used to release parser results.
const FreeSymbol = "snippet_free"

// Scope is one unit of parsed configuration. The host keeps it as raw JSON.
type Scope json.RawMessage

func (s Scope) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return s, nil
}

func (s *Scope) UnmarshalJSON(data []byte) error {
	if s == nil {
		return fmt.Errorf("abi.Scope: UnmarshalJSON on nil pointer")
	}
	*s = append((*s)[0:0], data...)
	return nil
}

// Callable is a resolved parser entry point. It returns the raw tagged result
// text; a nil slice means the plugin returned NULL.
type Callable func(input string) []byte

// Result is the decoded tagged result of a parser call.
type Result struct {
	Scopes []Scope
	Err    string
	Failed bool
}

type wireResult struct {
	Ok  *[]Scope `json:"ok"`
	Err *string  `json:"err"`
}

// DecodeResult validates and decodes a tagged result. A protocol violation is
// reported as an error; a plugin-reported failure is a Result with Failed set.
func DecodeResult(raw []byte) (Result, error) {
	if raw == nil {
		return Result{}, fmt.Errorf("parser returned no result")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var wire wireResult
	if err := dec.Decode(&wire); err != nil {
		return Result{}, fmt.Errorf("malformed parser result: %w", err)
	}
	switch {
	case wire.Ok != nil && wire.Err != nil:
		return Result{}, fmt.Errorf("parser result carries both ok and err")
	case wire.Err != nil:
		return Result{Err: *wire.Err, Failed: true}, nil
	case wire.Ok != nil:
		scopes := *wire.Ok
		if scopes == nil {
			scopes = []Scope{}
		}
		return Result{Scopes: scopes}, nil
	default:
		return Result{}, fmt.Errorf("parser result carries neither ok nor err")
	}
}

// EncodeOK and EncodeErr build tagged results. Plugins written in Go and test
// doubles use them.
func EncodeOK(scopes []Scope) []byte {
	if scopes == nil {
		scopes = []Scope{}
	}
	data, _ := json.Marshal(map[string][]Scope{"ok": scopes})
	return data
}

func EncodeErr(message string) []byte {
	data, _ := json.Marshal(map[string]string{"err": message})
	return data
}

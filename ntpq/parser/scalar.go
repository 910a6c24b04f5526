/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package parser

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind of Value
type Kind int

// Value kinds, in the order we try them
const (
	KindInt Kind = iota
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

// Value is a number or a string from the right side of "label: value" line
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Str   string
}

// IntValue returns Value holding i
func IntValue(i int64) Value {
	return Value{Kind: KindInt, Int: i}
}

// FloatValue returns Value holding f
func FloatValue(f float64) Value {
	return Value{Kind: KindFloat, Float: f}
}

// StringValue returns Value holding s
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// ParseValue tries integer, then float, then falls back to trimmed string
func ParseValue(s string) Value {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i)
	}
	// NaN and Inf can't be represented in JSON, keep them as text
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return FloatValue(f)
	}
	return StringValue(s)
}

// AsInt returns integer value, ok is false for other kinds
func (v Value) AsInt() (int64, bool) {
	return v.Int, v.Kind == KindInt
}

// AsFloat returns numeric value as float, ok is false for strings
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return v.Str
	}
}

// MarshalJSON renders numbers as JSON numbers and everything else as strings
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInt:
		return json.Marshal(v.Int)
	case KindFloat:
		return json.Marshal(v.Float)
	default:
		return json.Marshal(v.Str)
	}
}

// ScalarStatusBlock is a set of "label: value" lines
type ScalarStatusBlock map[string]Value

// ParseScalarBlock parses "label: value" lines. Only the first colon separates,
// so values may contain colons. Blank lines are skipped.
func ParseScalarBlock(lines []string) (ScalarStatusBlock, error) {
	block := ScalarStatusBlock{}
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		label, value, found := strings.Cut(line, ":")
		if !found {
			return nil, malformed("no colon", line)
		}
		block[strings.TrimSpace(label)] = ParseValue(value)
	}
	return block, nil
}

// ParseSysStats parses output of `ntpq -c sysstat`
func ParseSysStats(raw string) (ScalarStatusBlock, error) {
	return ParseScalarBlock(splitLines(raw))
}

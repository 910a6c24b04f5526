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

/*
Package parser turns text printed by ntpq into typed structures.
Nothing here does I/O.
*/
package parser

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by parsers
var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrDuplicateRecord = errors.New("duplicate record")
)

func malformed(reason, line string) error {
	return fmt.Errorf("%w: %s: %q", ErrMalformedRecord, reason, line)
}

// splitLines splits text into lines, dropping carriage returns left by the terminal and trailing blank lines
func splitLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

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
	"strings"
)

// ntpq prints "calibration interval   4 s" without a colon
const calibrationIntervalPrefix = "calibration interval"

// kerninfo starts with "associd=0 status=0615 leap_none, sync_ntp, ..."
const kerninfoHeaderPrefix = "associd="

// NormalizeCalibrationInterval returns a copy of lines with the
// calibration interval line rewritten as "calibration interval:<value>"
func NormalizeCalibrationInterval(lines []string) []string {
	res := make([]string, len(lines))
	for i, line := range lines {
		if strings.HasPrefix(line, calibrationIntervalPrefix) {
			rest := ""
			// one separator character follows the label
			if len(line) > len(calibrationIntervalPrefix) {
				rest = line[len(calibrationIntervalPrefix)+1:]
			}
			line = calibrationIntervalPrefix + ":" + rest
		}
		res[i] = line
	}
	return res
}

// ParseKernelInfo parses output of `ntpq -c kerninfo`
func ParseKernelInfo(raw string) (ScalarStatusBlock, error) {
	lines := splitLines(raw)
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), kerninfoHeaderPrefix) {
		lines = lines[1:]
	}
	return ParseScalarBlock(NormalizeCalibrationInterval(lines))
}

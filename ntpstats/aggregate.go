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

package ntpstats

import (
	"errors"
	"fmt"

	"github.com/facebook/ntpstats/ntpq/parser"
)

// ErrDivisionByZero is returned when daemon uptime is zero and rates can't be computed
var ErrDivisionByZero = errors.New("division by zero: uptime is 0")

// UptimeLabel is the sysstat line with seconds since ntpd start
const UptimeLabel = "uptime"

func (d *DirectionSummary) add(v parser.IPVersion, count uint64) {
	switch v {
	case parser.IPv6:
		d.IPv6.Count += count
	default:
		d.IPv4.Count += count
	}
	d.Total.Count += count
}

func (d *DirectionSummary) setRates(uptime uint64) {
	for _, b := range []*Bucket{&d.IPv4, &d.IPv6, &d.Total} {
		b.PacketsPerSecond = b.Count / uptime
	}
}

// Uptime returns daemon uptime in seconds from sysstat block
func Uptime(sysstats parser.ScalarStatusBlock) (uint64, error) {
	v, ok := sysstats[UptimeLabel]
	if !ok {
		return 0, fmt.Errorf("%w: no %q in sysstat", parser.ErrMalformedRecord, UptimeLabel)
	}
	i, ok := v.AsInt()
	if !ok || i < 0 {
		return 0, fmt.Errorf("%w: %s is not a non-negative integer: %q", parser.ErrMalformedRecord, UptimeLabel, v.String())
	}
	return uint64(i), nil
}

// Summarize folds per interface counters into host totals and computes rates over uptime
func Summarize(table parser.InterfaceStatsTable, sysstats parser.ScalarStatusBlock) (PacketSummary, error) {
	var summary PacketSummary
	uptime, err := Uptime(sysstats)
	if err != nil {
		return summary, err
	}
	if uptime == 0 {
		return summary, ErrDivisionByZero
	}
	for _, addrs := range table {
		for _, s := range addrs {
			summary.Received.add(s.IPVersion, s.Received)
			summary.Sent.add(s.IPVersion, s.Sent)
		}
	}
	summary.Received.setRates(uptime)
	summary.Sent.setRates(uptime)
	return summary, nil
}

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
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ifstats prints a blank line left after the password prompt and then 3 lines of column headers,
// the last one is a rule of equal signs
const ifstatsHeaderLines = 4

// ifstatsFields are columns of the first line of every ifstats record
var ifstatsFields = []string{
	"interface_number",
	"interface_name",
	"drop",
	"flag",
	"time_to_live",
	"multicast",
	"received",
	"sent",
	"failed",
	"peers",
	"uptime",
}

// IPVersion of the interface address
type IPVersion int

// IP versions
const (
	IPv4 IPVersion = 4
	IPv6 IPVersion = 6
)

func (v IPVersion) String() string {
	return fmt.Sprintf("IPv%d", int(v))
}

// MarshalText renders version as "IPv4" or "IPv6"
func (v IPVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// AddressIPVersion tells IP version by the way ntpq prints the address: IPv6 addresses are in brackets
func AddressIPVersion(address string) IPVersion {
	if strings.HasPrefix(strings.TrimSpace(address), "[") {
		return IPv6
	}
	return IPv4
}

// InterfaceAddressStats are counters of one address ntpd listens on
type InterfaceAddressStats struct {
	Index     string    `json:"-"`
	Interface string    `json:"-"`
	Address   string    `json:"-"`
	Drop      string    `json:"drop"`
	Flag      uint64    `json:"flag"`
	TTL       uint64    `json:"time_to_live"`
	Multicast uint64    `json:"multicast"`
	Received  uint64    `json:"received"`
	Sent      uint64    `json:"sent"`
	Failed    uint64    `json:"failed"`
	Peers     uint64    `json:"peers"`
	Uptime    uint64    `json:"uptime"`
	IPVersion IPVersion `json:"ip_version"`
}

// InterfaceStatsTable maps interface name to address to stats
type InterfaceStatsTable map[string]map[string]*InterfaceAddressStats

// Add inserts stats, failing if this interface address was already seen
func (t InterfaceStatsTable) Add(s *InterfaceAddressStats) error {
	addrs, ok := t[s.Interface]
	if !ok {
		addrs = map[string]*InterfaceAddressStats{}
		t[s.Interface] = addrs
	}
	if _, found := addrs[s.Address]; found {
		return fmt.Errorf("%w: interface %s address %s", ErrDuplicateRecord, s.Interface, s.Address)
	}
	addrs[s.Address] = s
	return nil
}

// Len returns number of interface addresses in the table
func (t InterfaceStatsTable) Len() int {
	n := 0
	for _, addrs := range t {
		n += len(addrs)
	}
	return n
}

// ParseInterfaceStats parses output of `ntpq -c ifstats`.
// After the header every address takes two lines: counters, then the address itself.
func ParseInterfaceStats(raw string) (InterfaceStatsTable, error) {
	table := InterfaceStatsTable{}
	lines := splitLines(raw)
	if len(lines) < ifstatsHeaderLines {
		return nil, malformed(fmt.Sprintf("expected %d header lines, got %d", ifstatsHeaderLines, len(lines)), raw)
	}
	if rule := strings.TrimSpace(lines[ifstatsHeaderLines-1]); rule == "" || strings.Trim(rule, "=") != "" {
		return nil, malformed("no rule closing the header", lines[ifstatsHeaderLines-1])
	}
	body := lines[ifstatsHeaderLines:]
	for i := 0; i < len(body); i += 2 {
		if i+1 >= len(body) {
			return nil, malformed("record without address line", body[i])
		}
		s, err := parseInterfaceRecord(body[i], body[i+1])
		if err != nil {
			return nil, err
		}
		if err := table.Add(s); err != nil {
			return nil, err
		}
	}
	log.Debugf("parsed %d interface addresses on %d interfaces", table.Len(), len(table))
	return table, nil
}

func parseInterfaceRecord(countersLine, addressLine string) (*InterfaceAddressStats, error) {
	tokens := strings.Fields(countersLine)
	if len(tokens) != len(ifstatsFields) {
		return nil, malformed(fmt.Sprintf("expected %d fields, got %d", len(ifstatsFields), len(tokens)), countersLine)
	}
	address := strings.TrimSpace(addressLine)
	if address == "" {
		return nil, malformed("empty address", addressLine)
	}
	s := &InterfaceAddressStats{
		Index:     tokens[0],
		Interface: tokens[1],
		Drop:      tokens[2],
		Address:   address,
		IPVersion: AddressIPVersion(address),
	}
	// flags are printed as hex
	flag, err := strconv.ParseUint(tokens[3], 16, 64)
	if err != nil {
		return nil, malformed(fmt.Sprintf("bad %s %q", ifstatsFields[3], tokens[3]), countersLine)
	}
	s.Flag = flag
	counters := []*uint64{&s.TTL, &s.Multicast, &s.Received, &s.Sent, &s.Failed, &s.Peers, &s.Uptime}
	for i, dst := range counters {
		idx := i + 4
		v, err := strconv.ParseUint(tokens[idx], 10, 64)
		if err != nil {
			return nil, malformed(fmt.Sprintf("bad %s %q", ifstatsFields[idx], tokens[idx]), countersLine)
		}
		*dst = v
	}
	return s, nil
}

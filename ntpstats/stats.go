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
	"encoding/json"
	"fmt"

	"github.com/facebook/ntpstats/ntpq/parser"
)

// Bucket is a packet count and its average rate over daemon uptime
type Bucket struct {
	Count            uint64 `json:"count"`
	PacketsPerSecond uint64 `json:"packets_per_second"`
}

// DirectionSummary splits packets of one direction by IP version
type DirectionSummary struct {
	IPv4  Bucket `json:"IPv4"`
	IPv6  Bucket `json:"IPv6"`
	Total Bucket `json:"total"`
}

// PacketSummary is host level packet counters
type PacketSummary struct {
	Sent     DirectionSummary `json:"sent"`
	Received DirectionSummary `json:"received"`
}

// HostStatistics is everything we collect about a host
type HostStatistics struct {
	Hostname   string
	Interfaces parser.InterfaceStatsTable
	SysStats   parser.ScalarStatusBlock
	Kernel     parser.ScalarStatusBlock
	Packets    PacketSummary
}

func (h *HostStatistics) String() string {
	return fmt.Sprintf("NTPRefImplStats(hostname=%s)", h.Hostname)
}

type hostJSON struct {
	Packets PacketSummary            `json:"packets"`
	SysStat parser.ScalarStatusBlock `json:"sysstat"`
	Kernel  parser.ScalarStatusBlock `json:"kernel"`
}

type statisticsJSON struct {
	Interfaces parser.InterfaceStatsTable `json:"interfaces"`
	Host       hostJSON                   `json:"host"`
}

type hostStatisticsJSON struct {
	Hostname   string         `json:"hostname"`
	Statistics statisticsJSON `json:"statistics"`
}

// MarshalJSON nests everything under "statistics", host level values under "host"
func (h *HostStatistics) MarshalJSON() ([]byte, error) {
	return json.Marshal(hostStatisticsJSON{
		Hostname: h.Hostname,
		Statistics: statisticsJSON{
			Interfaces: h.Interfaces,
			Host: hostJSON{
				Packets: h.Packets,
				SysStat: h.SysStats,
				Kernel:  h.Kernel,
			},
		},
	})
}

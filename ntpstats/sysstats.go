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
	"os"
	"sync"
	"time"

	"github.com/eclesh/welford"
	"github.com/shirou/gopsutil/process"
)

var procStartTime = time.Now()

// SysStats keeps exporter's own health counters
type SysStats struct {
	sync.Mutex
	durations *welford.Stats
	runs      uint64
	failures  uint64
}

// NewSysStats returns empty SysStats
func NewSysStats() *SysStats {
	return &SysStats{durations: welford.New()}
}

// AddCollection records how long a collection took and whether it failed
func (s *SysStats) AddCollection(d time.Duration, err error) {
	s.Lock()
	defer s.Unlock()
	s.runs++
	if err != nil {
		s.failures++
		return
	}
	s.durations.Add(float64(d.Milliseconds()))
}

// Collect returns process and collection stats
func (s *SysStats) Collect() (map[string]float64, error) {
	stats := make(map[string]float64)
	s.Lock()
	stats["collect.runs"] = float64(s.runs)
	stats["collect.failures"] = float64(s.failures)
	if s.runs > s.failures {
		stats["collect.duration_ms.mean"] = s.durations.Mean()
		stats["collect.duration_ms.stddev"] = s.durations.Stddev()
	}
	s.Unlock()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	stats["process.uptime"] = float64(time.Now().Unix() - procStartTime.Unix())
	if val, err := proc.MemoryInfo(); err == nil {
		stats["process.rss"] = float64(val.RSS)
		stats["process.vms"] = float64(val.VMS)
	}
	if val, err := proc.NumFDs(); err == nil {
		stats["process.num_fds"] = float64(val)
	}
	if val, err := proc.NumThreads(); err == nil {
		stats["process.num_threads"] = float64(val)
	}
	return stats, nil
}

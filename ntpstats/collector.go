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
	"context"
	"fmt"
	"time"

	"github.com/facebook/ntpstats/ntpq"
	"github.com/facebook/ntpstats/ntpq/parser"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Querier runs a single ntpq query and returns its raw output
type Querier interface {
	Run(ctx context.Context, host string, query ntpq.Query, cred *ntpq.Credential) (string, error)
}

// Collector gathers statistics of ntpd through ntpq
type Collector struct {
	Querier Querier
	// Timeout is the deadline of a single collection, 0 means no deadline
	Timeout time.Duration
}

// NewCollector returns Collector running ntpq as configured
func NewCollector(cfg *Config) *Collector {
	return &Collector{
		Querier: ntpq.NewSession(cfg.NTPQPath, cfg.PromptTimeout, cfg.EOFTimeout),
		Timeout: cfg.CollectTimeout,
	}
}

func (c *Collector) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Collector) interfaceStatistics(ctx context.Context, host string, cred *ntpq.Credential) (parser.InterfaceStatsTable, error) {
	raw, err := c.Querier.Run(ctx, host, ntpq.QueryInterfaceStats, cred)
	if err != nil {
		return nil, fmt.Errorf("getting interface stats from %s: %w", host, err)
	}
	table, err := parser.ParseInterfaceStats(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing interface stats from %s: %w", host, err)
	}
	return table, nil
}

func (c *Collector) scalarBlock(ctx context.Context, host string, query ntpq.Query, parse func(string) (parser.ScalarStatusBlock, error)) (parser.ScalarStatusBlock, error) {
	raw, err := c.Querier.Run(ctx, host, query, nil)
	if err != nil {
		return nil, fmt.Errorf("getting %s from %s: %w", query, host, err)
	}
	block, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing %s from %s: %w", query, host, err)
	}
	log.Debugf("parsed %d %s values from %s", len(block), query, host)
	return block, nil
}

// InterfaceStatistics returns per interface address counters of host
func (c *Collector) InterfaceStatistics(ctx context.Context, host string, cred *ntpq.Credential) (parser.InterfaceStatsTable, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.interfaceStatistics(ctx, host, cred)
}

// HostStatistics runs ifstats, sysstat and kerninfo queries in parallel and aggregates results.
// If more than one query fails, the error reported is the one from the query earliest in that list.
func (c *Collector) HostStatistics(ctx context.Context, host string, cred *ntpq.Credential) (*HostStatistics, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stats := &HostStatistics{Hostname: host}
	// one slot per query, in priority order
	errs := make([]error, 3)
	// failed query doesn't cancel others, so errs never depends on who finished first
	var eg errgroup.Group
	eg.Go(func() error {
		stats.Interfaces, errs[0] = c.interfaceStatistics(ctx, host, cred)
		return errs[0]
	})
	eg.Go(func() error {
		stats.SysStats, errs[1] = c.scalarBlock(ctx, host, ntpq.QuerySystemStats, parser.ParseSysStats)
		return errs[1]
	})
	eg.Go(func() error {
		stats.Kernel, errs[2] = c.scalarBlock(ctx, host, ntpq.QueryKernelInfo, parser.ParseKernelInfo)
		return errs[2]
	})
	if err := eg.Wait(); err != nil {
		for _, e := range errs {
			if e != nil {
				return nil, e
			}
		}
	}

	packets, err := Summarize(stats.Interfaces, stats.SysStats)
	if err != nil {
		return nil, fmt.Errorf("summarizing packets of %s: %w", host, err)
	}
	stats.Packets = packets
	log.Debugf("collected %s: %d interface addresses, %d packets received, %d packets sent",
		stats, stats.Interfaces.Len(), packets.Received.Total.Count, packets.Sent.Total.Count)
	return stats, nil
}

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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/facebook/ntpstats/ntpq"
	"github.com/facebook/ntpstats/ntpq/parser"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// blank line is what is left after the password prompt
const ifstatsOutput = "\r\n" +
	"    interface name                                        send\r\n" +
	" #  address/broadcast     drop flag ttl mc received sent failed peers   uptime\r\n" +
	"==============================================================================\r\n" +
	"  0 v6wildcard                 D    81   0  0        0    0      0     0     1000\r\n" +
	"    [::]:123\r\n" +
	"  1 v4wildcard                 D    89   0  0        0    0      0     0     1000\r\n" +
	"    0.0.0.0:123\r\n" +
	"  2 eth0                       .    19   0  0     5000 4000      0     3     1000\r\n" +
	"    192.0.2.5:123\r\n" +
	"  3 eth0                       .    11   0  0     3000 2000      1     2     1000\r\n" +
	"    [2001:db8::1]:123\r\n"

const sysstatOutput = "uptime:                 1000\r\n" +
	"sysstats reset:         1000\r\n" +
	"packets received:       8000\r\n" +
	"leap indicator:         00\r\n"

const kerninfoOutput = "associd=0 status=0615 leap_none, sync_ntp, 1 event, clock_sync,\r\n" +
	"pll offset:            0.000123 s\r\n" +
	"pll frequency:         -12.34\r\n" +
	"pll time constant:     6\r\n" +
	"calibration interval   17\r\n"

func testCredential(t *testing.T) *ntpq.Credential {
	cred, err := ntpq.NewCredential("md5", 42, "secret")
	require.NoError(t, err)
	return cred
}

// expectHealthyHost makes querier answer every query with sample output
func expectHealthyHost(q *MockQuerier, host string, cred *ntpq.Credential) {
	q.EXPECT().Run(gomock.Any(), host, ntpq.QueryInterfaceStats, cred).Return(ifstatsOutput, nil)
	q.EXPECT().Run(gomock.Any(), host, ntpq.QuerySystemStats, nil).Return(sysstatOutput, nil)
	q.EXPECT().Run(gomock.Any(), host, ntpq.QueryKernelInfo, nil).Return(kerninfoOutput, nil)
}

func TestNewCollector(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NTPQPath = "/usr/sbin/ntpq"
	cfg.CollectTimeout = 10 * time.Second
	c := NewCollector(cfg)
	require.Equal(t, 10*time.Second, c.Timeout)
	s, ok := c.Querier.(*ntpq.Session)
	require.True(t, ok)
	require.Equal(t, "/usr/sbin/ntpq", s.Path)
	require.Equal(t, cfg.PromptTimeout, s.PromptTimeout)
	require.Equal(t, cfg.EOFTimeout, s.EOFTimeout)
}

func TestHostStatistics(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := NewMockQuerier(ctrl)
	cred := testCredential(t)
	expectHealthyHost(q, "ntp1", cred)

	c := &Collector{Querier: q}
	stats, err := c.HostStatistics(context.Background(), "ntp1", cred)
	require.NoError(t, err)
	require.Equal(t, "ntp1", stats.Hostname)
	require.Equal(t, 4, stats.Interfaces.Len())
	require.Equal(t, parser.IntValue(1000), stats.SysStats["uptime"])
	require.Equal(t, parser.IntValue(17), stats.Kernel["calibration interval"])

	want := PacketSummary{
		Received: DirectionSummary{
			IPv4:  Bucket{Count: 5000, PacketsPerSecond: 5},
			IPv6:  Bucket{Count: 3000, PacketsPerSecond: 3},
			Total: Bucket{Count: 8000, PacketsPerSecond: 8},
		},
		Sent: DirectionSummary{
			IPv4:  Bucket{Count: 4000, PacketsPerSecond: 4},
			IPv6:  Bucket{Count: 2000, PacketsPerSecond: 2},
			Total: Bucket{Count: 6000, PacketsPerSecond: 6},
		},
	}
	require.Equal(t, want, stats.Packets)
}

func TestHostStatisticsErrorPriority(t *testing.T) {
	ifstatsErr := errors.New("ifstats failed")
	sysstatErr := errors.New("sysstat failed")
	kerninfoErr := errors.New("kerninfo failed")
	// slow returns its error after the others already failed
	slow := func(err error) func(context.Context, string, ntpq.Query, *ntpq.Credential) (string, error) {
		return func(context.Context, string, ntpq.Query, *ntpq.Credential) (string, error) {
			time.Sleep(50 * time.Millisecond)
			return "", err
		}
	}

	tests := []struct {
		name     string
		ifstats  func(context.Context, string, ntpq.Query, *ntpq.Credential) (string, error)
		sysstat  func(context.Context, string, ntpq.Query, *ntpq.Credential) (string, error)
		kerninfo func(context.Context, string, ntpq.Query, *ntpq.Credential) (string, error)
		want     error
	}{
		{
			name:     "all fail, ifstats last",
			ifstats:  slow(ifstatsErr),
			sysstat:  failWith(sysstatErr),
			kerninfo: failWith(kerninfoErr),
			want:     ifstatsErr,
		},
		{
			name:     "sysstat and kerninfo fail, sysstat last",
			ifstats:  answer(ifstatsOutput),
			sysstat:  slow(sysstatErr),
			kerninfo: failWith(kerninfoErr),
			want:     sysstatErr,
		},
		{
			name:     "only kerninfo fails",
			ifstats:  answer(ifstatsOutput),
			sysstat:  answer(sysstatOutput),
			kerninfo: slow(kerninfoErr),
			want:     kerninfoErr,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			q := NewMockQuerier(ctrl)
			q.EXPECT().Run(gomock.Any(), "ntp1", ntpq.QueryInterfaceStats, gomock.Any()).DoAndReturn(tt.ifstats)
			q.EXPECT().Run(gomock.Any(), "ntp1", ntpq.QuerySystemStats, gomock.Any()).DoAndReturn(tt.sysstat)
			q.EXPECT().Run(gomock.Any(), "ntp1", ntpq.QueryKernelInfo, gomock.Any()).DoAndReturn(tt.kerninfo)

			c := &Collector{Querier: q}
			stats, err := c.HostStatistics(context.Background(), "ntp1", nil)
			require.ErrorIs(t, err, tt.want)
			require.Nil(t, stats)
		})
	}
}

func failWith(err error) func(context.Context, string, ntpq.Query, *ntpq.Credential) (string, error) {
	return func(context.Context, string, ntpq.Query, *ntpq.Credential) (string, error) {
		return "", err
	}
}

func answer(out string) func(context.Context, string, ntpq.Query, *ntpq.Credential) (string, error) {
	return func(context.Context, string, ntpq.Query, *ntpq.Credential) (string, error) {
		return out, nil
	}
}

func TestHostStatisticsParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		ifstats  string
		sysstat  string
		kerninfo string
		want     error
	}{
		{
			name:     "malformed ifstats",
			ifstats:  ifstatsOutput + "  4 eth1   . 19 0 0 1 2\r\n    192.0.2.6:123\r\n",
			sysstat:  sysstatOutput,
			kerninfo: kerninfoOutput,
			want:     parser.ErrMalformedRecord,
		},
		{
			name:     "ifstats cut right after password prompt",
			ifstats:  " \r\n",
			sysstat:  sysstatOutput,
			kerninfo: kerninfoOutput,
			want:     parser.ErrMalformedRecord,
		},
		{
			name:     "duplicate ifstats address",
			ifstats:  ifstatsOutput + "  4 eth0                       .    19   0  0     1 1      0     3     1000\r\n    192.0.2.5:123\r\n",
			sysstat:  sysstatOutput,
			kerninfo: kerninfoOutput,
			want:     parser.ErrDuplicateRecord,
		},
		{
			name:     "kerninfo line without colon",
			ifstats:  ifstatsOutput,
			sysstat:  sysstatOutput,
			kerninfo: kerninfoOutput + "garbage\r\n",
			want:     parser.ErrMalformedRecord,
		},
		{
			name:     "no uptime",
			ifstats:  ifstatsOutput,
			sysstat:  "packets received:       8000\r\n",
			kerninfo: kerninfoOutput,
			want:     parser.ErrMalformedRecord,
		},
		{
			name:     "zero uptime",
			ifstats:  ifstatsOutput,
			sysstat:  "uptime:                 0\r\n",
			kerninfo: kerninfoOutput,
			want:     ErrDivisionByZero,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			q := NewMockQuerier(ctrl)
			q.EXPECT().Run(gomock.Any(), "ntp1", ntpq.QueryInterfaceStats, gomock.Any()).Return(tt.ifstats, nil)
			q.EXPECT().Run(gomock.Any(), "ntp1", ntpq.QuerySystemStats, gomock.Any()).Return(tt.sysstat, nil)
			q.EXPECT().Run(gomock.Any(), "ntp1", ntpq.QueryKernelInfo, gomock.Any()).Return(tt.kerninfo, nil)

			c := &Collector{Querier: q}
			_, err := c.HostStatistics(context.Background(), "ntp1", nil)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHostStatisticsTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := NewMockQuerier(ctrl)
	blockUntilDone := func(ctx context.Context, _ string, _ ntpq.Query, _ *ntpq.Credential) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	q.EXPECT().Run(gomock.Any(), "ntp1", gomock.Any(), gomock.Any()).DoAndReturn(blockUntilDone).Times(3)

	c := &Collector{Querier: q, Timeout: 10 * time.Millisecond}
	_, err := c.HostStatistics(context.Background(), "ntp1", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInterfaceStatistics(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := NewMockQuerier(ctrl)
	cred := testCredential(t)
	q.EXPECT().Run(gomock.Any(), "ntp1", ntpq.QueryInterfaceStats, cred).Return(ifstatsOutput, nil)

	c := &Collector{Querier: q}
	table, err := c.InterfaceStatistics(context.Background(), "ntp1", cred)
	require.NoError(t, err)
	require.Equal(t, 4, table.Len())
	require.Equal(t, uint64(5000), table["eth0"]["192.0.2.5:123"].Received)
	require.Equal(t, parser.IPv6, table["eth0"]["[2001:db8::1]:123"].IPVersion)
}

func TestInterfaceStatisticsError(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := NewMockQuerier(ctrl)
	q.EXPECT().Run(gomock.Any(), "ntp1", ntpq.QueryInterfaceStats, gomock.Any()).Return("", ntpq.ErrHandshakeTimeout)

	c := &Collector{Querier: q}
	_, err := c.InterfaceStatistics(context.Background(), "ntp1", nil)
	require.ErrorIs(t, err, ntpq.ErrHandshakeTimeout)
	require.Equal(t, fmt.Sprintf("getting interface stats from ntp1: %v", ntpq.ErrHandshakeTimeout), err.Error())
}

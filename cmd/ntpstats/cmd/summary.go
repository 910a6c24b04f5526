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

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/facebook/ntpstats/ntpstats"
	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var okString = color.GreenString("[ OK ]")
var warnString = color.YellowString("[WARN]")

func init() {
	RootCmd.AddCommand(summaryCmd)
}

func printBucket(w io.Writer, direction, version string, b ntpstats.Bucket) {
	status := okString
	if b.Count == 0 {
		status = warnString
	}
	fmt.Fprintf(w, "%s %-8s %-5s %s packets, %s packets/s\n",
		status,
		direction,
		version,
		color.BlueString("%d", b.Count),
		color.BlueString("%d", b.PacketsPerSecond),
	)
}

func printSummary(w io.Writer, stats *ntpstats.HostStatistics) {
	fmt.Fprintf(w, "%s: %d interface addresses\n", stats.Hostname, stats.Interfaces.Len())
	for _, d := range []struct {
		name string
		sum  ntpstats.DirectionSummary
	}{
		{"received", stats.Packets.Received},
		{"sent", stats.Packets.Sent},
	} {
		printBucket(w, d.name, "IPv4", d.sum.IPv4)
		printBucket(w, d.name, "IPv6", d.sum.IPv6)
		printBucket(w, d.name, "total", d.sum.Total)
	}
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print host packet totals and rates",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, cred, err := prepare(cmd)
		if err != nil {
			log.Fatal(err)
		}
		stats, err := ntpstats.NewCollector(cfg).HostStatistics(context.Background(), cfg.Server, cred)
		if err != nil {
			log.Fatal(err)
		}
		printSummary(os.Stdout, stats)
	},
}

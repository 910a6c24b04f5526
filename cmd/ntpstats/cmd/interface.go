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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/facebook/ntpstats/ntpq/parser"
	"github.com/facebook/ntpstats/ntpstats"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var interfaceTableFlag bool

func init() {
	RootCmd.AddCommand(interfaceCmd)
	interfaceCmd.Flags().BoolVarP(&interfaceTableFlag, "table", "t", false, "print a table instead of JSON")
}

// interfaceRows returns table rows sorted by interface index
func interfaceRows(table parser.InterfaceStatsTable) [][]string {
	records := make([]*parser.InterfaceAddressStats, 0, table.Len())
	for _, addrs := range table {
		for _, s := range addrs {
			records = append(records, s)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if len(records[i].Index) != len(records[j].Index) {
			return len(records[i].Index) < len(records[j].Index)
		}
		return records[i].Index < records[j].Index
	})
	rows := make([][]string, 0, len(records))
	for _, s := range records {
		rows = append(rows, []string{
			s.Index,
			s.Interface,
			s.Address,
			s.IPVersion.String(),
			s.Drop,
			fmt.Sprintf("%x", s.Flag),
			fmt.Sprintf("%d", s.TTL),
			fmt.Sprintf("%d", s.Multicast),
			fmt.Sprintf("%d", s.Received),
			fmt.Sprintf("%d", s.Sent),
			fmt.Sprintf("%d", s.Failed),
			fmt.Sprintf("%d", s.Peers),
			fmt.Sprintf("%d", s.Uptime),
		})
	}
	return rows
}

func printInterfaceTable(w io.Writer, table parser.InterfaceStatsTable) error {
	t := tablewriter.NewWriter(w)
	t.Header("#", "interface", "address", "version", "drop", "flag", "ttl", "mc", "received", "sent", "failed", "peers", "uptime")
	for _, row := range interfaceRows(table) {
		if err := t.Append(row); err != nil {
			return fmt.Errorf("adding row for %s: %w", row[2], err)
		}
	}
	return t.Render()
}

func printInterfaceJSON(table parser.InterfaceStatsTable) error {
	toPrint, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(toPrint))
	return nil
}

var interfaceCmd = &cobra.Command{
	Use:   "interface",
	Short: "Print per interface address statistics of ntpd",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, cred, err := prepare(cmd)
		if err != nil {
			log.Fatal(err)
		}
		table, err := ntpstats.NewCollector(cfg).InterfaceStatistics(context.Background(), cfg.Server, cred)
		if err != nil {
			log.Fatal(err)
		}
		if interfaceTableFlag {
			if err := printInterfaceTable(os.Stdout, table); err != nil {
				log.Fatal(err)
			}
			return
		}
		if err := printInterfaceJSON(table); err != nil {
			log.Fatal(err)
		}
	},
}

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

	"github.com/davecgh/go-spew/spew"
	"github.com/facebook/ntpstats/ntpstats"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var hostDumpFlag bool

func init() {
	RootCmd.AddCommand(hostCmd)
	hostCmd.Flags().BoolVarP(&hostDumpFlag, "dump", "d", false, "dump collected structures instead of printing JSON")
}

func printHostStats(stats *ntpstats.HostStatistics, dump bool) error {
	if dump {
		spew.Dump(stats)
		return nil
	}
	toPrint, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(toPrint))
	return nil
}

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Print host statistics of ntpd in JSON format",
	Long:  "Print ifstats, sysstat and kerninfo of ntpd along with host packet totals and rates over ntpd uptime.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, cred, err := prepare(cmd)
		if err != nil {
			log.Fatal(err)
		}
		stats, err := ntpstats.NewCollector(cfg).HostStatistics(context.Background(), cfg.Server, cred)
		if err != nil {
			log.Fatal(err)
		}
		if err := printHostStats(stats, hostDumpFlag); err != nil {
			log.Fatal(err)
		}
	},
}

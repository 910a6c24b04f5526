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
	"os"
	"os/signal"

	"github.com/facebook/ntpstats/ntpstats"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

func init() {
	RootCmd.AddCommand(exporterCmd)
	exporterCmd.Flags().IntVarP(&flagsConfig.Exporter.ListenPort, "port", "p", flagsConfig.Exporter.ListenPort, "port prometheus metrics exporter is listening on")
	exporterCmd.Flags().DurationVarP(&flagsConfig.Exporter.Interval, "interval", "i", flagsConfig.Exporter.Interval, "how often to collect stats from ntpd")
}

var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Periodically collect host statistics and export them to prometheus",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, cred, err := prepare(cmd)
		if err != nil {
			log.Fatal(err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
		defer stop()

		exporter := ntpstats.NewPrometheusExporter(ntpstats.NewCollector(cfg), cfg.Server, cred, cfg.Exporter)
		if err := exporter.Start(ctx); err != nil {
			log.Fatal(err)
		}
	},
}

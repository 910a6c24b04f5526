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
	"fmt"
	"os"
	"strings"

	"github.com/facebook/ntpstats/ntpq"
	"github.com/facebook/ntpstats/ntpstats"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// RootCmd is a main entry point. It's exported so ntpstats could be easily extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "ntpstats",
	Short: "Collect ntpd statistics through ntpq",
}

var (
	verbose      bool
	configFlag   string
	passwordFlag string
	// flagsConfig receives values of flags which override the config file
	flagsConfig = ntpstats.DefaultConfig()
)

// names of flags PrepareConfig knows how to apply
var overridableFlags = []string{"server", "ntpq", "timeout", "auth-type", "key-id", "keys-file", "port", "interval"}

func init() {
	f := RootCmd.PersistentFlags()
	f.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	f.StringVarP(&configFlag, "config", "c", "", "path to the config")
	f.StringVarP(&flagsConfig.Server, "server", "S", flagsConfig.Server, "server to query")
	f.StringVar(&flagsConfig.NTPQPath, "ntpq", flagsConfig.NTPQPath, "path to ntpq binary")
	f.DurationVar(&flagsConfig.PromptTimeout, "timeout", flagsConfig.PromptTimeout, "how long to wait for each ntpq prompt")
	f.StringVar(&flagsConfig.Auth.Type, "auth-type", flagsConfig.Auth.Type, "key type used for privileged queries")
	f.Uint32Var(&flagsConfig.Auth.KeyID, "key-id", 0, "key id used for privileged queries, 0 disables authentication")
	f.StringVar(&flagsConfig.Auth.KeysFile, "keys-file", "", fmt.Sprintf("ntpd keys file to read the key from, like %s", ntpq.DefaultKeysFile))
	f.StringVar(&passwordFlag, "password", "", "key secret. Read from keys file or terminal if empty")
}

// ConfigureVerbosity configures log verbosity based on parsed flags. Needs to be called by any subcommand.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

// Execute is the main entry point for CLI interface
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func prepareConfig(cmd *cobra.Command) (*ntpstats.Config, error) {
	setFlags := map[string]bool{}
	for _, name := range overridableFlags {
		setFlags[name] = cmd.Flags().Changed(name)
	}
	return ntpstats.PrepareConfig(configFlag, flagsConfig, setFlags)
}

// credential builds the key for privileged queries. nil means queries run unauthenticated.
func credential(cfg *ntpstats.Config) (*ntpq.Credential, error) {
	if cfg.Auth.KeyID == 0 {
		log.Warning("no key id given, ifstats will likely be refused by ntpd")
		return nil, nil
	}
	if passwordFlag != "" {
		return ntpq.NewCredential(cfg.Auth.Type, cfg.Auth.KeyID, passwordFlag)
	}
	if cfg.Auth.KeysFile != "" {
		return ntpq.ReadKeysFile(cfg.Auth.KeysFile, cfg.Auth.KeyID)
	}
	alg, err := ntpq.ParseAlgorithm(cfg.Auth.Type)
	if err != nil {
		return nil, err
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("key %d needs a secret: use --password or --keys-file", cfg.Auth.KeyID)
	}
	fmt.Fprintf(os.Stderr, "%s Password: ", alg.PromptLabel())
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return ntpq.NewCredential(cfg.Auth.Type, cfg.Auth.KeyID, strings.TrimSpace(string(secret)))
}

// prepare is what every collecting subcommand starts with
func prepare(cmd *cobra.Command) (*ntpstats.Config, *ntpq.Credential, error) {
	ConfigureVerbosity()
	cfg, err := prepareConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	cred, err := credential(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cred, nil
}

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
	"fmt"
	"os"
	"time"

	"github.com/facebook/ntpstats/ntpq"
	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

// AuthConfig describes where to get the key for privileged queries
type AuthConfig struct {
	Type     string `yaml:"type"`      // key type, md5
	KeyID    uint32 `yaml:"key_id"`    // key id, as in ntpd keys file
	KeysFile string `yaml:"keys_file"` // ntpd keys file to read the secret from
}

// Validate AuthConfig is sane
func (c *AuthConfig) Validate() error {
	if _, err := ntpq.ParseAlgorithm(c.Type); err != nil {
		return err
	}
	return nil
}

// ExporterConfig describes Prometheus exporter
type ExporterConfig struct {
	ListenPort int           `yaml:"listen_port"` // port to serve /metrics on
	Interval   time.Duration `yaml:"interval"`    // how often to collect
}

// Validate ExporterConfig is sane
func (c *ExporterConfig) Validate() error {
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port must be between 0 and 65535")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be greater than zero")
	}
	return nil
}

// Config specifies how we talk to ntpq
type Config struct {
	Server         string         `yaml:"server"`          // host to query
	NTPQPath       string         `yaml:"ntpq_path"`       // path to ntpq binary
	PromptTimeout  time.Duration  `yaml:"prompt_timeout"`  // how long to wait for each handshake prompt
	EOFTimeout     time.Duration  `yaml:"eof_timeout"`     // how long to wait for ntpq to finish printing
	CollectTimeout time.Duration  `yaml:"collect_timeout"` // overall deadline of one collection, 0 means none
	Auth           AuthConfig     `yaml:"auth"`
	Exporter       ExporterConfig `yaml:"exporter"`
}

// DefaultConfig returns Config initialized with default values
func DefaultConfig() *Config {
	return &Config{
		Server:         "localhost",
		NTPQPath:       ntpq.DefaultPath,
		PromptTimeout:  ntpq.DefaultPromptTimeout,
		EOFTimeout:     ntpq.DefaultEOFTimeout,
		CollectTimeout: time.Minute,
		Auth: AuthConfig{
			Type:     string(ntpq.AlgorithmMD5),
			KeysFile: "",
		},
		Exporter: ExporterConfig{
			ListenPort: 9123,
			Interval:   time.Minute,
		},
	}
}

// Validate config is sane
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server must be specified")
	}
	if c.NTPQPath == "" {
		return fmt.Errorf("ntpq_path must be specified")
	}
	if c.PromptTimeout <= 0 {
		return fmt.Errorf("prompt_timeout must be greater than zero")
	}
	if c.EOFTimeout <= 0 {
		return fmt.Errorf("eof_timeout must be greater than zero")
	}
	if c.CollectTimeout < 0 {
		return fmt.Errorf("collect_timeout must be 0 or positive")
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}
	if err := c.Exporter.Validate(); err != nil {
		return fmt.Errorf("invalid exporter config: %w", err)
	}
	return nil
}

// ReadConfig reads config from the file
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(cData, &c)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// PrepareConfig prepares final version of config based on defaults, on-disk config and CLI flags, and validates resulting config.
// Only fields of flags which names are set in setFlags override the file.
func PrepareConfig(cfgPath string, flags *Config, setFlags map[string]bool) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	warn := func(name string) {
		log.Warningf("overriding %s from CLI flag", name)
	}
	if cfgPath != "" {
		cfg, err = ReadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config from %q: %w", cfgPath, err)
		}
	}
	if flags != nil {
		if setFlags["server"] {
			warn("server")
			cfg.Server = flags.Server
		}
		if setFlags["ntpq"] {
			warn("ntpq_path")
			cfg.NTPQPath = flags.NTPQPath
		}
		if setFlags["timeout"] {
			warn("prompt_timeout")
			cfg.PromptTimeout = flags.PromptTimeout
		}
		if setFlags["auth-type"] {
			warn("auth.type")
			cfg.Auth.Type = flags.Auth.Type
		}
		if setFlags["key-id"] {
			warn("auth.key_id")
			cfg.Auth.KeyID = flags.Auth.KeyID
		}
		if setFlags["keys-file"] {
			warn("auth.keys_file")
			cfg.Auth.KeysFile = flags.Auth.KeysFile
		}
		if setFlags["port"] {
			warn("exporter.listen_port")
			cfg.Exporter.ListenPort = flags.Exporter.ListenPort
		}
		if setFlags["interval"] {
			warn("exporter.interval")
			cfg.Exporter.Interval = flags.Exporter.Interval
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	log.Debugf("config: %+v", cfg)
	return cfg, nil
}

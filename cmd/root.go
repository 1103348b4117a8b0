// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd is the kernel's command-line front end: a small cobra tree
// that boots a PadOS instance (scheduler + VFS) standalone, for simulation
// and integration testing on a host machine rather than on target hardware.
package cmd

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kavionic/padkernel/cfg"
)

// yamlTags makes viper.Unmarshal match keys against the Config yaml tags,
// the same keys cfg.BindFlags binds.
var yamlTags = viper.DecoderConfigOption(func(c *mapstructure.DecoderConfig) { c.TagName = "yaml" })

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	KernelConfig  cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "padkernel",
	Short: "Boot a PadOS kernel instance and mount its root filesystem",
	Long: `padkernel boots a standalone PadOS kernel instance: it starts the
          scheduler, registers filesystem drivers, and mounts a root volume,
          the same sequence a target board runs at power-on.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		return cfg.ValidateConfig(&KernelConfig)
	},
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(bootCmd)
}

func initConfig() {
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&KernelConfig, yamlTags)
		return
	}
	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&KernelConfig, yamlTags)
}

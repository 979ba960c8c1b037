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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is the CLI's entry point. Exported so someip-cli could be
// extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "someip-cli",
	Short: "find, list and call SOME/IP services from the command line",
}

var rootIfaceFlag string
var rootVerboseFlag bool

func init() {
	RootCmd.PersistentFlags().StringVarP(&rootIfaceFlag, "iface", "i", "", "interface to join the SD multicast group on (empty uses the default)")
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
}

// ConfigureVerbosity sets log verbosity from the parsed persistent flags.
// Subcommands call this first.
func ConfigureVerbosity() {
	log.SetLevel(log.WarnLevel)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

// Execute is the main entry point for the CLI interface.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

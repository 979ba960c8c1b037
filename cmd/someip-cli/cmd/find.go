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
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	someip "github.com/reneherrero/someip-go/someip/protocol"
	"github.com/reneherrero/someip-go/someip/sd"
)

var (
	findServiceFlag    uint16
	findInstanceFlag   uint16
	findMajorFlag      uint8
	findMinorFlag      uint32
	findWindowFlag     time.Duration
	findMinVersionFlag string
	findMaxVersionFlag string
)

func init() {
	RootCmd.AddCommand(findCmd)
	findCmd.Flags().Uint16Var(&findServiceFlag, "service", 0, "service_id to search for")
	findCmd.Flags().Uint16Var(&findInstanceFlag, "instance", uint16(someip.InstanceIDAny), "instance_id to search for (default: any)")
	findCmd.Flags().Uint8Var(&findMajorFlag, "major", 1, "major_version to search for")
	findCmd.Flags().Uint32Var(&findMinorFlag, "minor", 0, "minor_version to search for")
	findCmd.Flags().DurationVar(&findWindowFlag, "window", 2*time.Second, "how long to collect OfferService replies")
	findCmd.Flags().StringVar(&findMinVersionFlag, "min-version", "", "only print offers at or above this major.minor version")
	findCmd.Flags().StringVar(&findMaxVersionFlag, "max-version", "", "only print offers at or below this major.minor version")
	_ = findCmd.MarkFlagRequired("service")
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Broadcast FindService and print the offers received",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := runFind(); err != nil {
			log.Fatal(err)
		}
	},
}

func runFind() error {
	c, err := sd.NewClient(rootIfaceFlag, 0x0001)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), findWindowFlag+time.Second)
	defer cancel()

	offers, err := c.Find(ctx, someip.ServiceID(findServiceFlag), someip.InstanceID(findInstanceFlag), findMajorFlag, findMinorFlag, findWindowFlag)
	if err != nil {
		return err
	}
	if findMinVersionFlag != "" || findMaxVersionFlag != "" {
		if offers, err = sd.FilterByVersion(offers, findMinVersionFlag, findMaxVersionFlag); err != nil {
			return err
		}
	}
	printOffers(offers)
	return nil
}

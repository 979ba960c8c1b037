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

var offersWindowFlag time.Duration

func init() {
	RootCmd.AddCommand(offersCmd)
	offersCmd.Flags().DurationVar(&offersWindowFlag, "window", 3*time.Second, "how long to collect OfferService replies")
}

var offersCmd = &cobra.Command{
	Use:   "offers",
	Short: "Broadcast a wildcard FindService and print every offered service",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := runOffers(); err != nil {
			log.Fatal(err)
		}
	},
}

func runOffers() error {
	c, err := sd.NewClient(rootIfaceFlag, 0x0001)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), offersWindowFlag+time.Second)
	defer cancel()

	offers, err := c.Find(ctx, sd.ServiceIDAny, someip.InstanceIDAny, 0, 0, offersWindowFlag)
	if err != nil {
		return err
	}
	printOffers(offers)
	return nil
}

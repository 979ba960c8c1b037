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

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	someip "github.com/reneherrero/someip-go/someip/protocol"
	"github.com/reneherrero/someip-go/someip/sd"
)

const defaultTermWidth = 100

// termWidth returns the current terminal width, falling back to a fixed
// width when stdout isn't a TTY (e.g. piped into a file).
func termWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return defaultTermWidth
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultTermWidth
	}
	return w
}

// printOffers renders a slice of discovered offers as a table.
func printOffers(offers []sd.Offer) {
	_ = termWidth() // the width is not passed on; tablewriter lays out the table with its own defaults.

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("SERVICE", "INSTANCE", "VERSION", "FROM", "ENDPOINT")
	for _, o := range offers {
		endpoint := "-"
		for _, opt := range o.Options {
			if ep, ok := opt.(sd.IPv4EndpointOption); ok {
				endpoint = fmt.Sprintf("%s:%d", ep.Address, ep.Port)
				break
			}
		}
		from := "-"
		if o.From != nil {
			from = o.From.String()
		}
		table.Append(
			o.ServiceID.String(),
			o.InstanceID.String(),
			fmt.Sprintf("%d.%d", o.MajorVersion, o.MinorVersion),
			from,
			endpoint,
		)
	}
	table.Render()
}

// returnCodeString colorizes a ReturnCode: green for Ok, red for anything
// else.
func returnCodeString(rc someip.ReturnCode) string {
	if rc == someip.Ok {
		return color.GreenString(rc.String())
	}
	return color.RedString(rc.String())
}

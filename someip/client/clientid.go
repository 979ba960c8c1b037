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

package client

import (
	"fmt"

	"github.com/jsimonetti/rtnetlink/rtnl"

	someip "github.com/reneherrero/someip-go/someip/protocol"
)

// DefaultClientID derives a client_id from the named interface's link
// index and hardware address, for callers that don't want to pick one by
// hand. It is not guaranteed unique across hosts -- only a convenient
// default, the same spirit as deriving a clock identity from a MAC address.
func DefaultClientID(iface string) (someip.ClientID, error) {
	conn, err := rtnl.Dial(nil)
	if err != nil {
		return 0, fmt.Errorf("someip/client: dialing rtnetlink: %w", err)
	}
	defer conn.Close()

	links, err := conn.Links()
	if err != nil {
		return 0, fmt.Errorf("someip/client: listing links: %w", err)
	}

	for _, link := range links {
		if link.Attrs.Name != iface {
			continue
		}
		addr := link.Attrs.Address
		var lo, hi byte
		if n := len(addr); n >= 2 {
			hi, lo = addr[n-2], addr[n-1]
		} else {
			hi, lo = byte(link.Index>>8), byte(link.Index)
		}
		return someip.ClientID(uint16(hi)<<8 | uint16(lo)), nil
	}
	return 0, fmt.Errorf("someip/client: interface %q not found", iface)
}

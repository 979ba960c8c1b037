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

package sd

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	someip "github.com/reneherrero/someip-go/someip/protocol"
)

// MulticastAddr is the well-known SOME/IP-SD multicast group (spec §6).
const MulticastAddr = "224.224.224.245:30490"

// Offer is one OfferService observed by a client's Find.
type Offer struct {
	ServiceID    someip.ServiceID
	InstanceID   someip.InstanceID
	MajorVersion uint8
	MinorVersion uint32
	Options      []Option
	From         *net.UDPAddr
}

// SubscribeResult is the outcome of a Subscribe call.
type SubscribeResult struct {
	Acked bool
}

// Client speaks the SD client side of the protocol: it joins the SD
// multicast group and issues FindService/SubscribeEventgroup requests
// (spec §4.7).
type Client struct {
	conn      *net.UDPConn
	pconn     *ipv4.PacketConn
	groupAddr *net.UDPAddr
	clientID  someip.ClientID
	sessions  *someip.SessionCounter

	mu     sync.Mutex
	closed bool
}

// NewClient joins the SD multicast group on the named interface (empty
// string uses the default multicast interface) and returns a ready Client.
func NewClient(iface string, clientID someip.ClientID) (*Client, error) {
	groupAddr, err := net.ResolveUDPAddr("udp4", MulticastAddr)
	if err != nil {
		return nil, fmt.Errorf("someip/sd: resolving multicast group: %w", err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("someip/sd: opening client socket: %w", err)
	}

	pconn := ipv4.NewPacketConn(conn)
	var ifi *net.Interface
	if iface != "" {
		ifi, err = net.InterfaceByName(iface)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("someip/sd: resolving interface %s: %w", iface, err)
		}
	}
	if err := pconn.JoinGroup(ifi, groupAddr); err != nil {
		conn.Close()
		return nil, fmt.Errorf("someip/sd: joining multicast group: %w", err)
	}

	return &Client{
		conn:      conn,
		pconn:     pconn,
		groupAddr: groupAddr,
		clientID:  clientID,
		sessions:  someip.NewSessionCounter(),
	}, nil
}

// Close leaves the multicast group and closes the underlying socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.pconn.LeaveGroup(nil, c.groupAddr)
	return c.conn.Close()
}

func (c *Client) send(m *Message) error {
	wire := m.ToSomeIPMessage(c.sessions.Next())
	_, err := c.conn.WriteToUDP(wire.Encode(), c.groupAddr)
	return err
}

// Find broadcasts a FindService entry and collects OfferService replies
// observed within the given window (spec §4.7).
func (c *Client) Find(ctx context.Context, serviceID someip.ServiceID, instanceID someip.InstanceID, major uint8, minor uint32, window time.Duration) ([]Offer, error) {
	m := NewMessage(false, true)
	m.Entries = append(m.Entries, FindServiceEntry{
		ServiceID: serviceID, InstanceID: instanceID, MajorVersion: major, MinorVersion: minor, TTL: uint32(window / time.Second),
	})
	if err := c.send(m); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(window)
	var offers []Offer
	buf := make([]byte, someip.DefaultMaxDatagramSize)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return offers, nil
		}
		select {
		case <-ctx.Done():
			return offers, ctx.Err()
		default:
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(remaining))
		n, from, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return offers, nil
			}
			return offers, err
		}
		sdMsg, err := parseDatagram(buf[:n])
		if err != nil {
			log.WithError(err).Debug("someip/sd: client discarding malformed datagram")
			continue
		}
		for _, e := range sdMsg.Entries {
			offer, ok := e.(OfferServiceEntry)
			if !ok || offer.IsStopOffer() {
				continue
			}
			if serviceID != ServiceIDAny && offer.ServiceID != serviceID {
				continue
			}
			if instanceID != someip.InstanceIDAny && offer.InstanceID != instanceID {
				continue
			}
			first, _, _ := sdMsg.ResolveOptions(e)
			offers = append(offers, Offer{
				ServiceID: offer.ServiceID, InstanceID: offer.InstanceID,
				MajorVersion: offer.MajorVersion, MinorVersion: offer.MinorVersion,
				Options: first, From: from,
			})
		}
	}
}

// Subscribe sends a SubscribeEventgroup entry referencing endpoint as the
// callback address, then waits for an ack or nack (spec §4.7).
func (c *Client) Subscribe(ctx context.Context, serviceID someip.ServiceID, instanceID someip.InstanceID, eventgroupID someip.EventgroupID, endpoint *net.UDPAddr, ttl time.Duration) (SubscribeResult, error) {
	m := NewMessage(false, true)
	idx := m.AddOption(IPv4EndpointOption{Address: endpoint.IP, Proto: ProtoUDP, Port: uint16(endpoint.Port)})
	m.AddEntry(SubscribeEventgroupEntry{
		ServiceID: serviceID, InstanceID: instanceID, MajorVersion: 1, TTL: uint32(ttl / time.Second), EventgroupID: eventgroupID,
	}, idx, 1)
	if err := c.send(m); err != nil {
		return SubscribeResult{}, err
	}

	buf := make([]byte, someip.DefaultMaxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			return SubscribeResult{}, ctx.Err()
		default:
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(ttl))
		n, _, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			return SubscribeResult{}, err
		}
		sdMsg, err := parseDatagram(buf[:n])
		if err != nil {
			continue
		}
		for _, e := range sdMsg.Entries {
			ack, ok := e.(SubscribeEventgroupAckEntry)
			if !ok || ack.ServiceID != serviceID || ack.EventgroupID != eventgroupID {
				continue
			}
			return SubscribeResult{Acked: !ack.IsNack()}, nil
		}
	}
}

// FilterByVersion narrows offers to those whose major.minor version falls
// within [minVersion, maxVersion] (either bound empty means unbounded),
// letting a caller express a compatibility range instead of an exact pin.
func FilterByVersion(offers []Offer, minVersion, maxVersion string) ([]Offer, error) {
	var min, max *version.Version
	var err error
	if minVersion != "" {
		if min, err = version.NewVersion(minVersion); err != nil {
			return nil, fmt.Errorf("someip/sd: parsing min version %q: %w", minVersion, err)
		}
	}
	if maxVersion != "" {
		if max, err = version.NewVersion(maxVersion); err != nil {
			return nil, fmt.Errorf("someip/sd: parsing max version %q: %w", maxVersion, err)
		}
	}

	var out []Offer
	for _, o := range offers {
		v, err := version.NewVersion(fmt.Sprintf("%d.%d", o.MajorVersion, o.MinorVersion))
		if err != nil {
			continue
		}
		if min != nil && v.LessThan(min) {
			continue
		}
		if max != nil && v.GreaterThan(max) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func parseDatagram(b []byte) (*Message, error) {
	wire, err := someip.DecodeDatagram(b)
	if err != nil {
		return nil, err
	}
	return FromSomeIPMessage(&wire)
}

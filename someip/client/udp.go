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
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/eclesh/welford"

	someip "github.com/reneherrero/someip-go/someip/protocol"
	"github.com/reneherrero/someip-go/someip/tp"
)

// UDPClient issues session-correlated calls to arbitrary peers over a
// single shared UDP socket (spec §4.5, call_to). Requests too large for one
// datagram are segmented on send, and TP-typed responses are reassembled
// before being matched against the in-flight call (spec §4.8-4.9).
type UDPClient struct {
	conn      net.PacketConn
	transport *someip.DatagramTransport
	sessions  *someip.SessionCounter
	clientID  someip.ClientID
	timeout   time.Duration

	reassembler       *tp.Reassembler
	maxSegmentPayload int

	mu  sync.Mutex
	rtt *welford.Stats
}

// NewUDPClient wraps conn as a UDP client with the spec's default timeout.
func NewUDPClient(conn net.PacketConn, clientID someip.ClientID) *UDPClient {
	return &UDPClient{
		conn:              conn,
		transport:         someip.NewDatagramTransport(conn),
		sessions:          someip.NewSessionCounter(),
		clientID:          clientID,
		timeout:           DefaultTimeout,
		reassembler:       tp.NewReassembler(),
		maxSegmentPayload: tp.DefaultMaxSegmentPayload,
		rtt:               welford.New(),
	}
}

// SetTimeout overrides the per-call timeout.
func (c *UDPClient) SetTimeout(d time.Duration) { c.timeout = d }

// SetMaxSegmentPayload overrides the per-datagram payload size used when a
// request is too large for one datagram and must be segmented (spec §4.8).
func (c *UDPClient) SetMaxSegmentPayload(n int) { c.maxSegmentPayload = n }

// RTTStats returns the running mean/variance of observed call latency.
func (c *UDPClient) RTTStats() *welford.Stats { return c.rtt }

// CallTo sends req to addr and reads datagrams from the shared socket
// until one correlates with the request or the timeout elapses (spec §4.5).
//
// Concurrent callers sharing one UDPClient will race to read each other's
// responses off the same socket; callers requiring concurrent outstanding
// calls should use one UDPClient per goroutine, or serialize via their own
// mutex -- this mirrors the stream Client's single-reader assumption.
func (c *UDPClient) CallTo(ctx context.Context, addr net.Addr, req someip.Message) (someip.Message, error) {
	if req.Header.SessionID == someip.SessionNone {
		req.Header.SessionID = c.sessions.Next()
	}
	req.Header.ClientID = c.clientID

	start := time.Now()
	if err := c.send(addr, &req); err != nil {
		return someip.Message{}, err
	}

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	for {
		select {
		case <-ctx.Done():
			return someip.Message{}, ctx.Err()
		default:
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return someip.Message{}, &someip.Error{Kind: someip.KindTimeout, Reason: "call_to timed out waiting for response"}
		}
		_ = c.conn.SetReadDeadline(deadline)

		msg, _, err := c.transport.Receive()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return someip.Message{}, &someip.Error{Kind: someip.KindTimeout, Reason: "call_to timed out waiting for response"}
			}
			return someip.Message{}, err
		}
		if msg.Header.MessageType.IsTP() {
			complete, err := c.reassembler.Add(&msg)
			if err != nil || complete == nil {
				continue
			}
			msg = *complete
		}
		if matches(req.Header, msg.Header) {
			c.rtt.Add(time.Since(start).Seconds())
			return msg, nil
		}
	}
}

// send emits req as a single datagram, or as a sequence of TP segments when
// its payload would not fit in one (spec §4.8).
func (c *UDPClient) send(addr net.Addr, req *someip.Message) error {
	if len(req.Payload) <= c.maxSegmentPayload {
		return c.transport.SendTo(addr, req)
	}
	segments, err := tp.Segment(req, c.maxSegmentPayload)
	if err != nil {
		return err
	}
	for i := range segments {
		if err := c.transport.SendTo(addr, &segments[i]); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying socket.
func (c *UDPClient) Close() error { return c.transport.Close() }

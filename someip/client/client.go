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

// Package client implements the session-correlated SOME/IP client: a TCP
// client bound to one persistent connection and a UDP client that can call
// any number of peers (spec §4.5).
package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/eclesh/welford"
	log "github.com/sirupsen/logrus"

	someip "github.com/reneherrero/someip-go/someip/protocol"
	"github.com/reneherrero/someip-go/someip/stats"
)

// Policy controls what happens to a received message that does not match
// the session awaited by the in-flight call (spec §4.5 step 4).
type Policy int

// Non-matching response policies.
const (
	// Discard drops non-matching messages silently. The default.
	Discard Policy = iota
	// Queue hands non-matching messages to the client's Unsolicited channel
	// instead of dropping them.
	Queue
)

// DefaultTimeout is the call timeout applied when none is set via
// WithTimeout.
const DefaultTimeout = 5 * time.Second

// Client is a session-correlated SOME/IP client bound to a single TCP
// connection.
type Client struct {
	conn     net.Conn
	codec    *someip.StreamCodec
	sessions *someip.SessionCounter
	clientID someip.ClientID

	policy  Policy
	timeout time.Duration
	stats   *stats.Stats

	mu          sync.Mutex
	rtt         *welford.Stats
	unsolicited chan someip.Message

	readMu sync.Mutex
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithPolicy overrides the non-matching-response policy (default Discard).
func WithPolicy(p Policy) Option { return func(c *Client) { c.policy = p } }

// WithTimeout overrides the per-call timeout (default DefaultTimeout).
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// WithClientID sets the client_id stamped on outgoing requests (default 0).
func WithClientID(id someip.ClientID) Option { return func(c *Client) { c.clientID = id } }

// WithStats attaches a Stats collector; timed-out calls are counted on it.
func WithStats(st *stats.Stats) Option { return func(c *Client) { c.stats = st } }

// New wraps an established TCP connection as a session-correlated client.
func New(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:        conn,
		codec:       someip.NewStreamCodec(conn),
		sessions:    someip.NewSessionCounter(),
		policy:      Discard,
		timeout:     DefaultTimeout,
		rtt:         welford.New(),
		unsolicited: make(chan someip.Message, 64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Unsolicited returns the channel non-matching responses are delivered on
// when the Queue policy is active. Unused under Discard.
func (c *Client) Unsolicited() <-chan someip.Message { return c.unsolicited }

// RTTStats returns the running mean/variance of observed call latency.
func (c *Client) RTTStats() *welford.Stats { return c.rtt }

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Call assigns a session_id if the request doesn't already carry one, sends
// it, and blocks until the matching response arrives, the client's
// configured timeout elapses, or ctx is canceled (spec §4.5).
func (c *Client) Call(ctx context.Context, req someip.Message) (someip.Message, error) {
	if req.Header.SessionID == someip.SessionNone {
		req.Header.SessionID = c.sessions.Next()
	}
	req.Header.ClientID = c.clientID

	start := time.Now()
	if err := c.codec.WriteMessage(&req); err != nil {
		return someip.Message{}, err
	}

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return someip.Message{}, ctx.Err()
		default:
		}
		if remaining := time.Until(deadline); remaining <= 0 {
			return someip.Message{}, c.timeoutErr("call timed out waiting for response")
		} else if setter, ok := c.conn.(interface{ SetReadDeadline(time.Time) error }); ok {
			_ = setter.SetReadDeadline(deadline)
		}

		msg, err := c.codec.ReadMessage()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return someip.Message{}, c.timeoutErr("call timed out waiting for response")
			}
			return someip.Message{}, err
		}
		if matches(req.Header, msg.Header) {
			c.rtt.Add(time.Since(start).Seconds())
			return msg, nil
		}
		c.handleUnsolicited(msg)
	}
}

func (c *Client) timeoutErr(reason string) error {
	if c.stats != nil {
		c.stats.IncSessionTimeout()
	}
	return &someip.Error{Kind: someip.KindTimeout, Reason: reason}
}

func matches(req, got someip.Header) bool {
	return req.ServiceID == got.ServiceID &&
		req.MethodID == got.MethodID &&
		req.ClientID == got.ClientID &&
		req.SessionID == got.SessionID &&
		got.MessageType.IsResponseClass()
}

func (c *Client) handleUnsolicited(msg someip.Message) {
	if c.policy != Queue {
		return
	}
	select {
	case c.unsolicited <- msg:
	default:
		log.Warn("someip/client: unsolicited queue full, dropping message")
	}
}

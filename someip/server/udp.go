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

package server

import (
	"net"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	someip "github.com/reneherrero/someip-go/someip/protocol"
	"github.com/reneherrero/someip-go/someip/stats"
	"github.com/reneherrero/someip-go/someip/tp"
)

// DatagramHandler processes one datagram and returns the response to send
// back to the same address, or nil to send nothing.
type DatagramHandler func(from net.Addr, req someip.Message) *someip.Message

// UDPServer runs a single receive loop feeding a dispatcher, per spec §5
// ("one receive thread feeding a dispatcher for UDP"). TP-typed datagrams
// are reassembled before reaching the handler, and responses too large for
// one datagram are segmented before being sent (spec §5.9-5.10).
type UDPServer struct {
	transport *someip.DatagramTransport
	conn      net.PacketConn
	handler   DatagramHandler
	stats     *stats.Stats

	reassembler       *tp.Reassembler
	maxSegmentPayload int

	draining int32

	doneCh chan struct{}
}

// SetStats attaches a Stats collector; RX/TX counters are updated as
// datagrams flow through the server.
func (s *UDPServer) SetStats(st *stats.Stats) { s.stats = st }

// ListenUDP binds addr and returns a ready UDPServer.
func ListenUDP(addr string, handler DatagramHandler) (*UDPServer, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	return &UDPServer{
		transport:         someip.NewDatagramTransport(conn),
		conn:              conn,
		handler:           handler,
		reassembler:       tp.NewReassembler(),
		maxSegmentPayload: tp.DefaultMaxSegmentPayload,
		doneCh:            make(chan struct{}),
	}, nil
}

// LocalAddr returns the server's bound address.
func (s *UDPServer) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// SetMaxDatagramSize overrides the receive buffer size.
func (s *UDPServer) SetMaxDatagramSize(n int) { s.transport.SetMaxDatagramSize(n) }

// SetReassembler swaps in a differently-configured TP reassembler (e.g. one
// with a non-default timeout or payload ceiling) in place of the default
// one created by ListenUDP.
func (s *UDPServer) SetReassembler(r *tp.Reassembler) { s.reassembler = r }

// Reassembler returns the server's TP reassembler, for callers that want to
// report its ActiveCount() as a gauge or drain its Errors() channel.
func (s *UDPServer) Reassembler() *tp.Reassembler { return s.reassembler }

// SetMaxSegmentPayload overrides the per-datagram payload size used when a
// response is too large for one datagram and must be segmented (spec §4.8).
func (s *UDPServer) SetMaxSegmentPayload(n int) { s.maxSegmentPayload = n }

// Drain stops dispatching incoming datagrams to the handler.
func (s *UDPServer) Drain() { atomic.StoreInt32(&s.draining, 1) }

// Undrain resumes dispatching.
func (s *UDPServer) Undrain() { atomic.StoreInt32(&s.draining, 0) }

// Draining reports whether the server is currently dropping datagrams.
func (s *UDPServer) Draining() bool { return atomic.LoadInt32(&s.draining) == 1 }

// Serve runs the receive loop until Close is called.
func (s *UDPServer) Serve() error {
	for {
		msg, from, err := s.transport.Receive()
		if err != nil {
			select {
			case <-s.doneCh:
				return nil
			default:
				log.WithError(err).Debug("someip/server: datagram read error")
				continue
			}
		}
		if s.Draining() {
			continue
		}
		if s.stats != nil {
			s.stats.IncRX(msg.Header.MessageType)
		}
		if msg.Header.MessageType.IsTP() {
			complete, err := s.reassembler.Add(&msg)
			if err != nil {
				log.WithError(err).Debug("someip/server: TP reassembly error")
				continue
			}
			if complete == nil {
				continue // more segments still expected
			}
			msg = *complete
		}
		resp := s.handler(from, msg)
		if resp == nil {
			continue
		}
		if err := s.sendResponse(from, resp); err != nil {
			log.WithError(err).Debug("someip/server: datagram write error")
		} else if s.stats != nil {
			s.stats.IncTX(resp.Header.MessageType)
		}
	}
}

// sendResponse sends resp as a single datagram, or as a sequence of TP
// segments when its payload would not fit in one (spec §4.8).
func (s *UDPServer) sendResponse(to net.Addr, resp *someip.Message) error {
	if len(resp.Payload) <= s.maxSegmentPayload {
		return s.transport.SendTo(to, resp)
	}
	segments, err := tp.Segment(resp, s.maxSegmentPayload)
	if err != nil {
		return err
	}
	for i := range segments {
		if err := s.transport.SendTo(to, &segments[i]); err != nil {
			return err
		}
	}
	return nil
}

// Close stops Serve and releases the socket.
func (s *UDPServer) Close() error {
	close(s.doneCh)
	return s.conn.Close()
}

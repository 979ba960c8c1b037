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
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	someip "github.com/reneherrero/someip-go/someip/protocol"
	"github.com/reneherrero/someip-go/someip/stats"
)

// Handler processes one request and returns the response to write back. A
// nil response (for RequestNoReturn messages) means nothing is written.
type Handler func(conn net.Conn, req someip.Message) *someip.Message

// TCPServer accepts connections and spawns one goroutine per connection,
// each running its own blocking read loop (spec §5: "one thread per
// connection for TCP").
type TCPServer struct {
	ln      net.Listener
	handler Handler

	readTimeout       time.Duration
	maxMessagePayload int
	stats             *stats.Stats

	draining int32 // atomic bool

	wg     sync.WaitGroup
	doneCh chan struct{}
}

// SetStats attaches a Stats collector; RX/TX counters are updated as
// messages flow through the server.
func (s *TCPServer) SetStats(st *stats.Stats) { s.stats = st }

// ListenTCP binds addr and returns a ready TCPServer.
func ListenTCP(addr string, handler Handler) (*TCPServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPServer{
		ln:                ln,
		handler:           handler,
		maxMessagePayload: someip.DefaultMaxMessagePayload,
		doneCh:            make(chan struct{}),
	}, nil
}

// Addr returns the server's bound address.
func (s *TCPServer) Addr() net.Addr { return s.ln.Addr() }

// SetReadTimeout overrides the per-read deadline applied to every
// connection (0 disables it).
func (s *TCPServer) SetReadTimeout(d time.Duration) { s.readTimeout = d }

// SetMaxMessagePayload overrides the stream codec's payload ceiling.
func (s *TCPServer) SetMaxMessagePayload(n int) { s.maxMessagePayload = n }

// Drain stops accepting new connections while letting existing ones finish
// naturally (spec §5.8, adapted from the teacher's ptp4u drain lifecycle).
func (s *TCPServer) Drain() { atomic.StoreInt32(&s.draining, 1) }

// Undrain resumes accepting new connections.
func (s *TCPServer) Undrain() { atomic.StoreInt32(&s.draining, 0) }

// Draining reports whether the server is currently refusing new connections.
func (s *TCPServer) Draining() bool { return atomic.LoadInt32(&s.draining) == 1 }

// Serve runs the accept loop until Close is called.
func (s *TCPServer) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.doneCh:
				s.wg.Wait()
				return nil
			default:
				return err
			}
		}
		if s.Draining() {
			conn.Close()
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *TCPServer) handleConn(conn net.Conn) {
	defer conn.Close()
	codec := someip.NewStreamCodec(conn)
	codec.SetMaxMessagePayload(s.maxMessagePayload)

	for {
		if s.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		req, err := codec.ReadMessage()
		if err != nil {
			if !someip.IsKind(err, someip.KindConnectionClosed) {
				log.WithError(err).Debug("someip/server: connection read error")
			}
			return
		}
		if s.stats != nil {
			s.stats.IncRX(req.Header.MessageType)
		}

		resp := s.handler(conn, req)
		if resp == nil {
			continue
		}
		if err := codec.WriteMessage(resp); err != nil {
			log.WithError(err).Debug("someip/server: connection write error")
			return
		}
		if s.stats != nil {
			s.stats.IncTX(resp.Header.MessageType)
		}
	}
}

// Close stops the accept loop and closes the listener. It does not forcibly
// close in-flight connections; Serve returns once they all finish.
func (s *TCPServer) Close() error {
	close(s.doneCh)
	return s.ln.Close()
}

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
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	someip "github.com/reneherrero/someip-go/someip/protocol"
)

// serviceKey identifies one offered service instance.
type serviceKey struct {
	ServiceID  someip.ServiceID
	InstanceID someip.InstanceID
}

// offerRecord is the registry entry for one offered service (spec §4.7).
type offerRecord struct {
	MajorVersion uint8
	MinorVersion uint32
	TTL          uint32
	Options      []Option
}

// Server maintains the registry of offered services and answers
// FindService requests on the SD multicast group (spec §4.7).
// Unicast-capable peers are answered via unicast; everyone else via the
// multicast group, mirroring the Unicast flag on the inbound message.
// SubscribeEventgroup entries are ignored: the server sends no
// SubscribeEventgroupAck and keeps no subscription state.
type Server struct {
	conn      *net.UDPConn
	pconn     *ipv4.PacketConn
	groupAddr *net.UDPAddr
	sessions  *someip.SessionCounter

	mu      sync.Mutex
	offers  map[serviceKey]offerRecord
	draining bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewServer opens the SD listener on the given interface and joins the
// multicast group with SO_REUSEADDR set, so multiple SD participants can
// share the port on the same host (mirroring the teacher's worker.go
// SO_REUSEPORT discipline, adapted to this listener's needs).
func NewServer(iface string) (*Server, error) {
	groupAddr, err := net.ResolveUDPAddr("udp4", MulticastAddr)
	if err != nil {
		return nil, fmt.Errorf("someip/sd: resolving multicast group: %w", err)
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", groupAddr.Port))
	if err != nil {
		return nil, fmt.Errorf("someip/sd: binding SD port: %w", err)
	}
	conn := pc.(*net.UDPConn)

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

	return &Server{
		conn:      conn,
		pconn:     pconn,
		groupAddr: groupAddr,
		sessions:  someip.NewSessionCounter(),
		offers:    make(map[serviceKey]offerRecord),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Offer registers a service instance and multicasts an OfferService entry
// for it (spec §4.7).
func (s *Server) Offer(serviceID someip.ServiceID, instanceID someip.InstanceID, major uint8, minor uint32, ttlSeconds uint32, opts []Option) error {
	s.mu.Lock()
	s.offers[serviceKey{serviceID, instanceID}] = offerRecord{MajorVersion: major, MinorVersion: minor, TTL: ttlSeconds, Options: opts}
	s.mu.Unlock()

	return s.broadcastOffer(serviceID, instanceID, major, minor, ttlSeconds, opts)
}

// StopOffer withdraws a previously offered service instance, broadcasting
// an OfferService entry with ttl=0 (spec §4.7).
func (s *Server) StopOffer(serviceID someip.ServiceID, instanceID someip.InstanceID) error {
	s.mu.Lock()
	rec, ok := s.offers[serviceKey{serviceID, instanceID}]
	delete(s.offers, serviceKey{serviceID, instanceID})
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.broadcastOffer(serviceID, instanceID, rec.MajorVersion, rec.MinorVersion, 0, nil)
}

func (s *Server) broadcastOffer(serviceID someip.ServiceID, instanceID someip.InstanceID, major uint8, minor uint32, ttlSeconds uint32, opts []Option) error {
	m := NewMessage(false, true)
	if len(opts) > 0 {
		idx := uint8(len(m.Options))
		for _, o := range opts {
			m.AddOption(o)
		}
		m.AddEntry(OfferServiceEntry{ServiceID: serviceID, InstanceID: instanceID, MajorVersion: major, MinorVersion: minor, TTL: ttlSeconds}, idx, uint8(len(opts)))
	} else {
		m.AddEntry(OfferServiceEntry{ServiceID: serviceID, InstanceID: instanceID, MajorVersion: major, MinorVersion: minor, TTL: ttlSeconds}, 0, 0)
	}
	wire := m.ToSomeIPMessage(s.sessions.Next())
	_, err := s.conn.WriteToUDP(wire.Encode(), s.groupAddr)
	return err
}

// Drain stops answering FindService requests while keeping existing offers
// registered (spec §5.8 -- adapted from the teacher's ptp4u drain lifecycle
// to this server's request loop).
func (s *Server) Drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
}

// Undrain resumes answering FindService requests.
func (s *Server) Undrain() {
	s.mu.Lock()
	s.draining = false
	s.mu.Unlock()
}

// Run serves incoming SD datagrams until Close is called. It answers
// FindService requests from the offer registry and logs malformed or
// unrecognized datagrams rather than terminating (spec §7 propagation
// policy for the server's accept loop).
func (s *Server) Run() {
	defer close(s.doneCh)
	buf := make([]byte, someip.DefaultMaxDatagramSize)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				log.WithError(err).Warn("someip/sd: server read error")
				continue
			}
		}
		sdMsg, err := parseDatagram(buf[:n])
		if err != nil {
			log.WithError(err).Debug("someip/sd: server discarding malformed datagram")
			continue
		}
		s.handle(sdMsg, from)
	}
}

func (s *Server) handle(msg *Message, from *net.UDPAddr) {
	s.mu.Lock()
	draining := s.draining
	s.mu.Unlock()
	if draining {
		return
	}

	for _, e := range msg.Entries {
		find, ok := e.(FindServiceEntry)
		if !ok {
			continue
		}
		s.replyToFind(find, msg.Unicast, from)
	}
}

func (s *Server) replyToFind(find FindServiceEntry, unicast bool, from *net.UDPAddr) {
	s.mu.Lock()
	var matches []serviceKey
	for key := range s.offers {
		if find.ServiceID != ServiceIDAny && key.ServiceID != find.ServiceID {
			continue
		}
		if find.InstanceID != someip.InstanceIDAny && key.InstanceID != find.InstanceID {
			continue
		}
		matches = append(matches, key)
	}
	records := make([]offerRecord, len(matches))
	for i, key := range matches {
		records[i] = s.offers[key]
	}
	s.mu.Unlock()

	for i, key := range matches {
		rec := records[i]
		reply := NewMessage(false, true)
		var idx uint8
		var n uint8
		if len(rec.Options) > 0 {
			idx = uint8(len(reply.Options))
			for _, o := range rec.Options {
				reply.AddOption(o)
			}
			n = uint8(len(rec.Options))
		}
		reply.AddEntry(OfferServiceEntry{
			ServiceID: key.ServiceID, InstanceID: key.InstanceID,
			MajorVersion: rec.MajorVersion, MinorVersion: rec.MinorVersion, TTL: rec.TTL,
		}, idx, n)

		wire := reply.ToSomeIPMessage(s.sessions.Next())
		dest := s.groupAddr
		if unicast {
			dest = from
		}
		if _, err := s.conn.WriteToUDP(wire.Encode(), dest); err != nil {
			log.WithError(err).Warn("someip/sd: failed replying to FindService")
		}
	}
}

// Close stops Run and releases the socket.
func (s *Server) Close() error {
	close(s.stopCh)
	err := s.conn.Close()
	<-s.doneCh
	_ = s.pconn.LeaveGroup(nil, s.groupAddr)
	return err
}

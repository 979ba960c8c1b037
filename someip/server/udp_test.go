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
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	someip "github.com/reneherrero/someip-go/someip/protocol"
	"github.com/reneherrero/someip-go/someip/tp"
)

func TestUDPServerEchoesRequest(t *testing.T) {
	echo := func(_ net.Addr, req someip.Message) *someip.Message {
		resp := someip.CreateResponse(&req).Payload(req.Payload).Build()
		return &resp
	}
	s, err := ListenUDP("127.0.0.1:0", echo)
	require.NoError(t, err)
	defer s.Close()

	go s.Serve()

	conn, err := net.Dial("udp", s.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	req := someip.NewBuilder(1, 1).Payload([]byte("ping")).Build()
	_, err = conn.Write(req.Encode())
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	resp, err := someip.DecodeDatagram(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, someip.Response, resp.Header.MessageType)
	assert.Equal(t, []byte("ping"), resp.Payload)
}

func TestUDPServerDrainDropsDatagrams(t *testing.T) {
	called := make(chan struct{}, 1)
	s, err := ListenUDP("127.0.0.1:0", func(_ net.Addr, req someip.Message) *someip.Message {
		called <- struct{}{}
		return nil
	})
	require.NoError(t, err)
	defer s.Close()

	go s.Serve()
	s.Drain()

	conn, err := net.Dial("udp", s.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	req := someip.NewBuilder(1, 1).Build()
	_, err = conn.Write(req.Encode())
	require.NoError(t, err)

	select {
	case <-called:
		t.Fatal("handler should not run while draining")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUDPServerReassemblesTPRequest(t *testing.T) {
	echo := func(_ net.Addr, req someip.Message) *someip.Message {
		resp := someip.CreateResponse(&req).Payload(req.Payload).Build()
		return &resp
	}
	s, err := ListenUDP("127.0.0.1:0", echo)
	require.NoError(t, err)
	defer s.Close()

	go s.Serve()

	conn, err := net.Dial("udp", s.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	payload := bytes.Repeat([]byte("x"), 40)
	req := someip.NewBuilder(1, 1).Payload(payload).Build()
	segments, err := tp.Segment(&req, 16)
	require.NoError(t, err)
	require.Greater(t, len(segments), 1)

	for i := range segments {
		_, err := conn.Write(segments[i].Encode())
		require.NoError(t, err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	resp, err := someip.DecodeDatagram(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, someip.Response, resp.Header.MessageType)
	assert.Equal(t, payload, resp.Payload)
}

func TestUDPServerSegmentsLargeResponse(t *testing.T) {
	big := bytes.Repeat([]byte("y"), 64)
	echo := func(_ net.Addr, req someip.Message) *someip.Message {
		resp := someip.CreateResponse(&req).Payload(big).Build()
		return &resp
	}
	s, err := ListenUDP("127.0.0.1:0", echo)
	require.NoError(t, err)
	defer s.Close()
	s.SetMaxSegmentPayload(16)

	go s.Serve()

	conn, err := net.Dial("udp", s.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	req := someip.NewBuilder(1, 1).Build()
	_, err = conn.Write(req.Encode())
	require.NoError(t, err)

	reassembler := tp.NewReassembler()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		seg, err := someip.DecodeDatagram(buf[:n])
		require.NoError(t, err)
		require.True(t, seg.Header.MessageType.IsTP())
		complete, err := reassembler.Add(&seg)
		require.NoError(t, err)
		if complete != nil {
			assert.Equal(t, someip.Response, complete.Header.MessageType)
			assert.Equal(t, big, complete.Payload)
			break
		}
	}
}

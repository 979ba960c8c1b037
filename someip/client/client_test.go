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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	someip "github.com/reneherrero/someip-go/someip/protocol"
)

// fakeServer answers every request on conn with a matching Response,
// optionally emitting an unsolicited Notification first.
func fakeServer(t *testing.T, conn net.Conn, sendUnsolicitedFirst bool) {
	t.Helper()
	codec := someip.NewStreamCodec(conn)
	req, err := codec.ReadMessage()
	require.NoError(t, err)

	if sendUnsolicitedFirst {
		note := someip.NewBuilder(req.Header.ServiceID, 0x9999).MessageType(someip.Notification).Build()
		require.NoError(t, codec.WriteMessage(&note))
	}

	resp := someip.CreateResponse(&req).Payload([]byte("ok")).Build()
	require.NoError(t, codec.WriteMessage(&resp))
}

func TestClientCallRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go fakeServer(t, serverConn, false)

	c := New(clientConn, WithClientID(7))
	req := someip.NewBuilder(0x1234, 0x1).Build()

	got, err := c.Call(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, someip.Response, got.Header.MessageType)
	assert.Equal(t, []byte("ok"), got.Payload)
	assert.Equal(t, someip.ClientID(7), got.Header.ClientID)
}

func TestClientCallDiscardsUnsolicitedByDefault(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go fakeServer(t, serverConn, true)

	c := New(clientConn)
	req := someip.NewBuilder(0x1234, 0x1).Build()

	got, err := c.Call(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, someip.Response, got.Header.MessageType)

	select {
	case <-c.Unsolicited():
		t.Fatal("unsolicited channel should be unused under Discard policy")
	default:
	}
}

func TestClientCallQueuesUnsolicitedUnderQueuePolicy(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go fakeServer(t, serverConn, true)

	c := New(clientConn, WithPolicy(Queue))
	req := someip.NewBuilder(0x1234, 0x1).Build()

	_, err := c.Call(context.Background(), req)
	require.NoError(t, err)

	select {
	case note := <-c.Unsolicited():
		assert.Equal(t, someip.Notification, note.Header.MessageType)
	default:
		t.Fatal("expected the notification to be queued")
	}
}

func TestClientCallTimesOut(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go func() {
		codec := someip.NewStreamCodec(serverConn)
		_, _ = codec.ReadMessage() // receive and never respond
	}()

	c := New(clientConn, WithTimeout(20*time.Millisecond))
	req := someip.NewBuilder(0x1234, 0x1).Build()

	_, err := c.Call(context.Background(), req)
	require.Error(t, err)
	assert.True(t, someip.IsKind(err, someip.KindTimeout))
}

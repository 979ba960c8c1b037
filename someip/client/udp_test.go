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
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	someip "github.com/reneherrero/someip-go/someip/protocol"
	"github.com/reneherrero/someip-go/someip/server"
)

func TestUDPClientCallToSegmentsLargeRequest(t *testing.T) {
	big := bytes.Repeat([]byte("z"), 64)
	srv, err := server.ListenUDP("127.0.0.1:0", func(_ net.Addr, req someip.Message) *someip.Message {
		resp := someip.CreateResponse(&req).Payload(req.Payload).Build()
		return &resp
	})
	require.NoError(t, err)
	defer srv.Close()
	srv.SetMaxSegmentPayload(16)
	go srv.Serve()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	require.NoError(t, err)
	defer conn.Close()

	c := NewUDPClient(conn, 0x0001)
	c.SetMaxSegmentPayload(16)
	c.SetTimeout(time.Second)

	req := someip.NewBuilder(1, 1).Payload(big).Build()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := c.CallTo(ctx, srv.LocalAddr(), req)
	require.NoError(t, err)
	assert.Equal(t, someip.Response, resp.Header.MessageType)
	assert.Equal(t, big, resp.Payload)
}

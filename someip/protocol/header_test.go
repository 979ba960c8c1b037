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

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHeader() Header {
	return Header{
		ServiceID:        0x1234,
		MethodID:         0x0001,
		Length:           0x17,
		ClientID:         0x0000,
		SessionID:        0x0001,
		ProtocolVersion:  ProtocolVersion,
		InterfaceVersion: 1,
		MessageType:      Request,
		ReturnCode:       Ok,
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := sampleHeader()
	b := h.Encode()
	require.Len(t, b, HeaderSize)

	got, err := DecodeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestHeaderEncodeLayout(t *testing.T) {
	h := sampleHeader()
	b := h.Encode()
	assert.Equal(t, []byte{0x12, 0x34, 0x00, 0x01}, b[0:4])
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x17}, b[4:8])
	assert.Equal(t, []byte{0x01, 0x01, 0x00, 0x00}, b[12:16])
}

func TestDecodeHeaderRejectsBadProtocolVersion(t *testing.T) {
	h := sampleHeader()
	b := h.Encode()
	b[12] = 0x02
	_, err := DecodeHeader(b)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidHeader))
}

func TestDecodeHeaderRejectsUnknownMessageType(t *testing.T) {
	h := sampleHeader()
	b := h.Encode()
	b[14] = 0xFE
	_, err := DecodeHeader(b)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidMessageType))
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, byte(0xFE), pe.Byte)
}

func TestDecodeHeaderRejectsUnknownReturnCode(t *testing.T) {
	h := sampleHeader()
	b := h.Encode()
	b[15] = 0xFE
	_, err := DecodeHeader(b)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidReturnCode))
}

func TestDecodeHeaderRejectsShortInput(t *testing.T) {
	_, err := DecodeHeader(make([]byte, 10))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidHeader))
}

func TestMessageTypeTPRoundTrip(t *testing.T) {
	for _, mt := range []MessageType{Request, Response, Notification, Error_} {
		assert.Equal(t, mt, mt.WithTP().WithoutTP())
		assert.True(t, mt.WithTP().IsTP())
	}
}
